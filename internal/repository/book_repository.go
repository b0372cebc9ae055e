package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/model"
)

const bookColumns = "id, title, author, category, isbn, stock, available"

// BookRepo persists the catalog and its stock counters.
type BookRepo struct{ DB *sqlx.DB }

func NewBookRepo(db *sqlx.DB) *BookRepo { return &BookRepo{DB: db} }

// BookPatch carries the metadata fields an admin may edit.  Nil fields
// are left untouched.  Stock is changed only through AdjustStockTx.
type BookPatch struct {
	Title    *string
	Author   *string
	Category *string
	ISBN     *string
}

// Create inserts b and returns its ID.  Available is derived from Stock.
func (r *BookRepo) Create(ctx context.Context, b model.Book) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO books (title, author, category, isbn, stock, available) VALUES (?,?,?,?,?,?)",
		b.Title, b.Author, b.Category, b.ISBN, b.Stock, b.Stock > 0)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("inserting book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a book by id.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	return getBook(ctx, r.DB, id)
}

// GetByIDTx is GetByID inside tx.
func (r *BookRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Book, error) {
	return getBook(ctx, tx, id)
}

func getBook(ctx context.Context, q sqlx.QueryerContext, id uint64) (model.Book, error) {
	var b model.Book
	err := sqlx.GetContext(ctx, q, &b, "SELECT "+bookColumns+" FROM books WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Book{}, ErrNotFound
	}
	if err != nil {
		return model.Book{}, fmt.Errorf("loading book %d: %w", id, err)
	}
	return b, nil
}

// List returns the whole catalog ordered by id.
func (r *BookRepo) List(ctx context.Context) ([]model.Book, error) {
	books := []model.Book{}
	if err := r.DB.SelectContext(ctx, &books, "SELECT "+bookColumns+" FROM books ORDER BY id"); err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return books, nil
}

// Search returns books whose title, author, category or isbn contains
// term, ignoring case.  An empty term matches every book.
func (r *BookRepo) Search(ctx context.Context, term string) ([]model.Book, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	ds := r.catalog()
	if term != "" {
		ds = ds.Where(goqu.Or(
			goqu.L("INSTR(LOWER(title), ?) > 0", term),
			goqu.L("INSTR(LOWER(author), ?) > 0", term),
			goqu.L("INSTR(LOWER(category), ?) > 0", term),
			goqu.L("INSTR(LOWER(isbn), ?) > 0", term),
		))
	}
	return r.selectBooks(ctx, ds)
}

// Filter returns books whose category equals category, ignoring case.
func (r *BookRepo) Filter(ctx context.Context, category string) ([]model.Book, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	return r.selectBooks(ctx, r.catalog().Where(goqu.L("LOWER(category) = ?", category)))
}

func (r *BookRepo) catalog() *goqu.SelectDataset {
	return database.Builder(r.DB).
		From("books").
		Select("id", "title", "author", "category", "isbn", "stock", "available").
		Order(goqu.C("id").Asc()).
		Prepared(true)
}

func (r *BookRepo) selectBooks(ctx context.Context, ds *goqu.SelectDataset) ([]model.Book, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building catalog query: %w", err)
	}
	books := []model.Book{}
	if err := r.DB.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	return books, nil
}

// Update applies patch to the book's metadata and returns the stored row.
func (r *BookRepo) Update(ctx context.Context, id uint64, patch BookPatch) (model.Book, error) {
	rec := goqu.Record{}
	if patch.Title != nil {
		rec["title"] = *patch.Title
	}
	if patch.Author != nil {
		rec["author"] = *patch.Author
	}
	if patch.Category != nil {
		rec["category"] = *patch.Category
	}
	if patch.ISBN != nil {
		rec["isbn"] = *patch.ISBN
	}
	if len(rec) > 0 {
		query, args, err := database.Builder(r.DB).
			Update("books").Set(rec).Where(goqu.C("id").Eq(int64(id))).Prepared(true).ToSQL()
		if err != nil {
			return model.Book{}, fmt.Errorf("building book update: %w", err)
		}
		if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
			if database.IsDuplicateKey(err) {
				return model.Book{}, ErrDuplicateKey
			}
			return model.Book{}, fmt.Errorf("updating book %d: %w", id, err)
		}
	}
	// MySQL reports zero affected rows for unchanged values, so existence
	// is decided by reading the row back.
	return r.GetByID(ctx, id)
}

// TryReserveTx takes one copy off the shelf.  The row update is the
// availability check: it matches only while stock > 0.  The available
// flag is assigned first because MySQL evaluates assignments left to
// right against already-updated columns.
func (r *BookRepo) TryReserveTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Book, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE books SET available = (stock > 1), stock = stock - 1 WHERE id = ? AND stock > 0", id)
	if err != nil {
		return model.Book{}, fmt.Errorf("reserving book %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := getBook(ctx, tx, id); err != nil {
			return model.Book{}, err
		}
		return model.Book{}, ErrNoStock
	}
	return getBook(ctx, tx, id)
}

// ReleaseTx puts one copy back on the shelf.
func (r *BookRepo) ReleaseTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Book, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE books SET available = 1, stock = stock + 1 WHERE id = ?", id)
	if err != nil {
		return model.Book{}, fmt.Errorf("releasing book %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Book{}, ErrNotFound
	}
	return getBook(ctx, tx, id)
}

// AdjustStockTx adds delta (which may be negative) to the shelf count.
// The update refuses to drive stock below zero and recomputes available
// from the old stock plus delta.
func (r *BookRepo) AdjustStockTx(ctx context.Context, tx *sqlx.Tx, id uint64, delta int) (model.Book, error) {
	if delta == 0 {
		return getBook(ctx, tx, id)
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE books SET available = (stock + ? > 0), stock = stock + ? WHERE id = ? AND stock + ? >= 0",
		delta, delta, id, delta)
	if err != nil {
		return model.Book{}, fmt.Errorf("adjusting stock of book %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := getBook(ctx, tx, id); err != nil {
			return model.Book{}, err
		}
		return model.Book{}, ErrNegativeStock
	}
	return getBook(ctx, tx, id)
}

// DeleteCascadeTx removes every loan of the book, then the book itself.
// It returns the number of loans removed.
func (r *BookRepo) DeleteCascadeTx(ctx context.Context, tx *sqlx.Tx, id uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM loans WHERE book_id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("deleting loans of book %d: %w", id, err)
	}
	loans, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("deleting book %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	return loans, nil
}
