package lending

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/repository"
)

// Ledger owns the stock counter of every book.  Each method is a single
// conditional row update, so concurrent callers never oversell a title.
type Ledger struct {
	db    *sqlx.DB
	books *repository.BookRepo
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db, books: repository.NewBookRepo(db)}
}

// TryReserve takes one copy of bookID inside tx and returns the book as
// left by the update.
func (l *Ledger) TryReserve(ctx context.Context, tx *sqlx.Tx, bookID uint64) (model.Book, error) {
	b, err := l.books.TryReserveTx(ctx, tx, bookID)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, repository.ErrNotFound):
		return model.Book{}, ErrBookNotFound
	case errors.Is(err, repository.ErrNoStock):
		return model.Book{}, ErrOutOfStock
	}
	return model.Book{}, storageErr("reserve", err)
}

// Release returns one copy of bookID inside tx.
func (l *Ledger) Release(ctx context.Context, tx *sqlx.Tx, bookID uint64) (model.Book, error) {
	b, err := l.books.ReleaseTx(ctx, tx, bookID)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, repository.ErrNotFound):
		return model.Book{}, ErrBookNotFound
	}
	return model.Book{}, storageErr("release", err)
}

// Adjust changes the shelf count by delta in its own transaction, for
// restocking or writing off copies.  Stock never goes below zero.
func (l *Ledger) Adjust(ctx context.Context, bookID uint64, delta int) (model.Book, error) {
	var out model.Book
	err := database.Retry(ctx, func(ctx context.Context) error {
		return database.InTx(ctx, l.db, func(tx *sqlx.Tx) error {
			b, err := l.books.AdjustStockTx(ctx, tx, bookID, delta)
			switch {
			case err == nil:
				out = b
				return nil
			case errors.Is(err, repository.ErrNotFound):
				return ErrBookNotFound
			case errors.Is(err, repository.ErrNegativeStock):
				return invalid("stock cannot go below zero")
			}
			return err
		})
	})
	if err != nil {
		return model.Book{}, classify("adjust stock", err)
	}
	return out, nil
}

// classify leaves domain errors alone and wraps anything else as a
// storage failure.
func classify(op string, err error) error {
	if CategoryOf(err) == CategoryInternal {
		return storageErr(op, err)
	}
	return err
}
