package database

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// InTx runs fn inside a transaction.  The transaction commits when fn
// returns nil and is rolled back otherwise, so every write fn made is
// undone on failure.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
