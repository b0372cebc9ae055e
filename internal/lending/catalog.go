package lending

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/repository"
)

// Catalog manages book metadata.  Stock changes go through the Ledger.
type Catalog struct {
	db     *sqlx.DB
	books  *repository.BookRepo
	ledger *Ledger
}

func NewCatalog(db *sqlx.DB, ledger *Ledger) *Catalog {
	return &Catalog{db: db, books: repository.NewBookRepo(db), ledger: ledger}
}

// NewBook is the input of AddBook.
type NewBook struct {
	Title    string
	Author   string
	Category string
	ISBN     string
	Stock    int
}

// AddBook validates and stores a new title with its initial stock.
func (c *Catalog) AddBook(ctx context.Context, in NewBook) (model.Book, error) {
	b := model.Book{
		Title:    strings.TrimSpace(in.Title),
		Author:   strings.TrimSpace(in.Author),
		Category: strings.TrimSpace(in.Category),
		ISBN:     strings.TrimSpace(in.ISBN),
		Stock:    in.Stock,
	}
	if b.Title == "" || b.Author == "" || b.Category == "" || b.ISBN == "" {
		return model.Book{}, invalid("title, author, category and isbn are required")
	}
	if b.Stock < 0 {
		return model.Book{}, invalid("stock must not be negative")
	}
	id, err := c.books.Create(ctx, b)
	if errors.Is(err, repository.ErrDuplicateKey) {
		return model.Book{}, ErrDuplicateKey
	}
	if err != nil {
		return model.Book{}, storageErr("add book", err)
	}
	return c.Get(ctx, id)
}

// Get returns one book.
func (c *Catalog) Get(ctx context.Context, id uint64) (model.Book, error) {
	b, err := c.books.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Book{}, ErrBookNotFound
	}
	if err != nil {
		return model.Book{}, storageErr("get book", err)
	}
	return b, nil
}

// List returns every book.
func (c *Catalog) List(ctx context.Context) ([]model.Book, error) {
	books, err := c.books.List(ctx)
	if err != nil {
		return nil, storageErr("list books", err)
	}
	return books, nil
}

// Search matches term against title, author, category and isbn.
func (c *Catalog) Search(ctx context.Context, term string) ([]model.Book, error) {
	if strings.TrimSpace(term) == "" {
		return nil, invalid("search term is required")
	}
	books, err := c.books.Search(ctx, term)
	if err != nil {
		return nil, storageErr("search books", err)
	}
	return books, nil
}

// Filter lists the books of one category.
func (c *Catalog) Filter(ctx context.Context, category string) ([]model.Book, error) {
	if strings.TrimSpace(category) == "" {
		return nil, invalid("category is required")
	}
	books, err := c.books.Filter(ctx, category)
	if err != nil {
		return nil, storageErr("filter books", err)
	}
	return books, nil
}

// UpdateBook edits metadata.  Set fields must not be blank.
func (c *Catalog) UpdateBook(ctx context.Context, id uint64, patch repository.BookPatch) (model.Book, error) {
	for _, f := range []*string{patch.Title, patch.Author, patch.Category, patch.ISBN} {
		if f == nil {
			continue
		}
		*f = strings.TrimSpace(*f)
		if *f == "" {
			return model.Book{}, invalid("fields must not be blank")
		}
	}
	b, err := c.books.Update(ctx, id, patch)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, repository.ErrNotFound):
		return model.Book{}, ErrBookNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		return model.Book{}, ErrDuplicateKey
	}
	return model.Book{}, storageErr("update book", err)
}

// DeleteBook removes the book and all of its loans in one transaction and
// reports how many loans went with it.
func (c *Catalog) DeleteBook(ctx context.Context, id uint64) (int64, error) {
	var removed int64
	err := database.InTx(ctx, c.db, func(tx *sqlx.Tx) error {
		n, err := c.books.DeleteCascadeTx(ctx, tx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrBookNotFound
		}
		removed = n
		return err
	})
	if err != nil {
		return 0, classify("delete book", err)
	}
	return removed, nil
}

// AdjustStock restocks (delta > 0) or writes off (delta < 0) copies.
func (c *Catalog) AdjustStock(ctx context.Context, id uint64, delta int) (model.Book, error) {
	return c.ledger.Adjust(ctx, id, delta)
}
