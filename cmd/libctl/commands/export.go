package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/library-lending/internal/export"
	"github.com/iliyamo/library-lending/internal/lending"
	"github.com/iliyamo/library-lending/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as CSV",
}

var exportBooksCmd = &cobra.Command{
	Use:   "books",
	Short: "Export the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		engine := lending.NewEngine(db)
		books, err := lending.NewCatalog(db, engine.Ledger()).List(cmd.Context())
		if err != nil {
			return err
		}
		return writeTo(exportOut, func(w io.Writer) error { return export.WriteBooks(w, books) }, len(books), "books")
	},
}

var exportHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Export every loan with overdue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		// libctl acts with store access, which is an admin's view.
		system := model.Caller{Role: model.RoleAdmin}
		recs, err := lending.NewHistory(db, lending.SystemClock{}).All(cmd.Context(), system)
		if err != nil {
			return err
		}
		return writeTo(exportOut, func(w io.Writer) error { return export.WriteHistory(w, recs) }, len(recs), "loans")
	},
}

func init() {
	exportCmd.PersistentFlags().StringVarP(&exportOut, "out", "o", "-", "output file, - for stdout")
	exportCmd.AddCommand(exportBooksCmd, exportHistoryCmd)
}

func writeTo(path string, write func(io.Writer) error, n int, what string) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	Success("wrote %d %s to %s", n, what, path)
	return nil
}
