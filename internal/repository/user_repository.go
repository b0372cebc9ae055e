package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/utils"
)

const userColumns = "id, name, email, password_hash, role, active, created_at"

// userRow mirrors the 'users' table; role is stored by name.
type userRow struct {
	ID           uint64    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toModel() (model.User, error) {
	role, err := model.ParseRole(r.Role)
	if err != nil {
		return model.User{}, fmt.Errorf("user %d: %w", r.ID, err)
	}
	return model.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         role,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt.UTC(),
	}, nil
}

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes password and inserts the user, returning its ID.  The
// email is normalized to lower case.
func (r *UserRepo) Create(ctx context.Context, name, email, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, active, created_at) VALUES (?,?,?,?,1,?)",
		strings.TrimSpace(name), email, hash, role.String(), time.Now().UTC())
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("inserting user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email)
}

// GetByLogin fetches a user by email or, failing that, by display name.
// Names are not unique; the oldest account wins.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	u, err := r.GetByEmail(ctx, login)
	if !errors.Is(err, ErrNotFound) {
		return u, err
	}
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE name = ? ORDER BY id LIMIT 1", login)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (model.User, error) {
	var row userRow
	err := r.DB.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("loading user: %w", err)
	}
	return row.toModel()
}

// ActiveTx reports whether user id may still borrow.
func (r *UserRepo) ActiveTx(ctx context.Context, tx *sqlx.Tx, id uint64) (bool, error) {
	var active bool
	err := tx.GetContext(ctx, &active, "SELECT active FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("loading user %d: %w", id, err)
	}
	return active, nil
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := r.DB.SelectContext(ctx, &rows, "SELECT "+userColumns+" FROM users ORDER BY id"); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		u, err := row.toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// SetActive enables or disables login for a user.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, "UPDATE users SET active = ? WHERE id = ?", active, id); err != nil {
		return fmt.Errorf("updating user %d: %w", id, err)
	}
	return nil
}

// Delete removes a user who holds no open loan.  Closed loans keep their
// history with the user reference nulled.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	return database.InTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		return r.DeleteTx(ctx, tx, id)
	})
}

// DeleteTx locks the user row, then deletes it only while no open loan
// references it.  The row lock blocks a concurrent borrow's foreign-key
// check on MySQL; the guard inside the DELETE keeps the check and the
// delete a single statement.
func (r *UserRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, id uint64) error {
	lock := " FOR UPDATE"
	if r.DB.DriverName() == database.DriverSQLite {
		lock = ""
	}
	var found uint64
	err := tx.GetContext(ctx, &found, "SELECT id FROM users WHERE id = ?"+lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking user %d: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?
		AND NOT EXISTS (SELECT 1 FROM loans WHERE loans.user_id = ? AND loans.returned = 0)`, id, id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}
