package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/repository"
	"github.com/iliyamo/library-lending/internal/utils"
)

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long: `Creates an admin user. Registration over HTTP only creates members, so the
first admin is bootstrapped here. Without --password the password is read
from the terminal without echo, or from LIBCTL_ADMIN_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(adminName)
		email := strings.ToLower(strings.TrimSpace(adminEmail))
		if name == "" || email == "" {
			return errors.New("--name and --email are required")
		}

		password := adminPassword
		if password == "" {
			password = os.Getenv("LIBCTL_ADMIN_PASSWORD")
		}
		if password == "" {
			p, err := readPassword("Admin password: ")
			if err != nil {
				return err
			}
			password = p
		}
		if err := utils.ValidatePassword(password); err != nil {
			return err
		}

		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		users := repository.NewUserRepo(db)
		id, err := users.Create(cmd.Context(), name, email, password, model.RoleAdmin, storeConfig().BcryptCost)
		if errors.Is(err, repository.ErrDuplicateKey) {
			return fmt.Errorf("a user with email %s already exists", email)
		}
		if err != nil {
			return err
		}
		Success("admin %s <%s> created with id %d", name, email, id)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "password (prompted when omitted)")
}

// readPassword reads a password from the terminal without echo.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal for the password prompt; pass --password or LIBCTL_ADMIN_PASSWORD")
	}
	fmt.Fprint(statusOut, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(statusOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
