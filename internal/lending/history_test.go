package lending_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-lending/internal/lending"
	"github.com/iliyamo/library-lending/internal/model"
)

func Test_UserHistory_AccessRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, root := e.member(t, "a"), e.member(t, "b"), e.admin(t)
	book := e.book(t, "1", 1)
	_, err := e.engine.Borrow(ctx, a, book.ID, week())
	require.NoError(t, err)

	_, err = e.history.UserHistory(ctx, b, a.ID)
	assert.ErrorIs(t, err, lending.ErrForbidden)

	byAdmin, err := e.history.UserHistory(ctx, root, a.ID)
	require.NoError(t, err)
	assert.Len(t, byAdmin, 1)

	unknown, err := e.history.UserHistory(ctx, root, 9999)
	require.NoError(t, err)
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

func Test_UserHistory_NewestFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.member(t, "a")
	first, second := e.book(t, "1", 1), e.book(t, "2", 1)
	_, err := e.engine.Borrow(ctx, a, first.ID, week())
	require.NoError(t, err)
	e.clock.Advance(time.Hour)
	_, err = e.engine.Borrow(ctx, a, second.ID, week())
	require.NoError(t, err)

	hist, err := e.history.UserHistory(ctx, a, a.ID)

	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, second.Title, hist[0].Title)
	assert.Equal(t, first.Title, hist[1].Title)
}

func Test_BookHistory_AdminOnlyAndEmptyWithoutLoans(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, root := e.member(t, "a"), e.admin(t)
	book := e.book(t, "1", 1)

	_, err := e.history.BookHistory(ctx, a, book.ID)
	assert.ErrorIs(t, err, lending.ErrForbidden)

	h, err := e.history.BookHistory(ctx, root, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, h.BookID)
	assert.Equal(t, book.Title, h.Title)
	assert.NotNil(t, h.Entries)
	assert.Empty(t, h.Entries)

	_, err = e.history.BookHistory(ctx, root, 999)
	assert.ErrorIs(t, err, lending.ErrBookNotFound)
}

func Test_BookHistory_TombstonesDeletedUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, root := e.member(t, "a"), e.admin(t)
	book := e.book(t, "1", 1)
	_, err := e.engine.Borrow(ctx, a, book.ID, week())
	require.NoError(t, err)
	_, err = e.engine.Return(ctx, a, book.ID, nil)
	require.NoError(t, err)
	require.NoError(t, e.users.Delete(ctx, a.ID))

	h, err := e.history.BookHistory(ctx, root, book.ID)
	require.NoError(t, err)
	require.Len(t, h.Entries, 1)
	assert.True(t, h.Entries[0].User.Deleted)

	raw, err := json.Marshal(h.Entries[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"user":"deleted"`)
}

func Test_UserHistory_TombstonesDeletedBook(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.member(t, "a")
	book := e.book(t, "1", 1)
	_, err := e.engine.Borrow(ctx, a, book.ID, week())
	require.NoError(t, err)
	// a row removed outside the catalog keeps its loans with a null book
	_, err = e.db.Exec("DELETE FROM books WHERE id = ?", book.ID)
	require.NoError(t, err)

	hist, err := e.history.UserHistory(ctx, a, a.ID)

	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Nil(t, hist[0].BookID)
	assert.Equal(t, lending.Tombstone, hist[0].Title)
	raw, err := json.Marshal(hist[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"book_id":null`)
}

func Test_History_OverdueComparesInstants(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, root := e.member(t, "a"), e.member(t, "b"), e.admin(t)
	book := e.book(t, "1", 2)
	due := t0.Add(time.Hour)
	_, err := e.engine.Borrow(ctx, a, book.ID, due)
	require.NoError(t, err)
	_, err = e.engine.Borrow(ctx, b, book.ID, due)
	require.NoError(t, err)

	e.clock.Set(due.Add(time.Second))
	_, err = e.engine.Return(ctx, a, book.ID, nil)
	require.NoError(t, err)
	e.clock.Set(due)

	records, err := e.history.All(ctx, root)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, records[0].Returned)
	assert.True(t, records[0].Overdue, "returned one second late")
	assert.False(t, records[1].Returned)
	assert.False(t, records[1].Overdue, "open and exactly at due time")

	e.clock.Advance(time.Nanosecond)
	records, err = e.history.All(ctx, root)
	require.NoError(t, err)
	assert.True(t, records[1].Overdue)

	_, err = e.history.All(ctx, a)
	assert.ErrorIs(t, err, lending.ErrForbidden)
}

func Test_Borrower_MarshalsObjectWhenPresent(t *testing.T) {
	raw, err := json.Marshal(lending.Borrower{ID: 3, Name: "Ann", Email: "ann@example.com"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"name":"Ann","email":"ann@example.com"}`, string(raw))
}

func Test_Catalog_ValidationAndDuplicates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.book(t, "1", 1)

	_, err := e.catalog.AddBook(ctx, lending.NewBook{Title: "x", Author: "y", Category: "z", ISBN: "1"})
	assert.ErrorIs(t, err, lending.ErrDuplicateKey)

	_, err = e.catalog.AddBook(ctx, lending.NewBook{Title: " ", Author: "y", Category: "z", ISBN: "2"})
	assert.ErrorIs(t, err, lending.ErrInvalidInput)

	_, err = e.catalog.AddBook(ctx, lending.NewBook{Title: "x", Author: "y", Category: "z", ISBN: "3", Stock: -1})
	assert.ErrorIs(t, err, lending.ErrInvalidInput)

	_, err = e.catalog.Search(ctx, "  ")
	assert.ErrorIs(t, err, lending.ErrInvalidInput)

	_, err = e.catalog.DeleteBook(ctx, 999)
	assert.ErrorIs(t, err, lending.ErrBookNotFound)
}

func Test_Catalog_AdjustStockKeepsInvariant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	book := e.book(t, "1", 0)

	b, err := e.catalog.AdjustStock(ctx, book.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StockSnapshot{Stock: 2, Available: true}, b.Snapshot())

	_, err = e.catalog.AdjustStock(ctx, book.ID, -3)
	assert.ErrorIs(t, err, lending.ErrInvalidInput)

	b, err = e.catalog.AdjustStock(ctx, book.ID, -2)
	require.NoError(t, err)
	assert.Equal(t, model.StockSnapshot{Stock: 0, Available: false}, b.Snapshot())

	_, err = e.catalog.AdjustStock(ctx, 999, 1)
	assert.ErrorIs(t, err, lending.ErrBookNotFound)
}

func Test_Catalog_UpdateBook(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	book := e.book(t, "1", 1)
	e.book(t, "2", 1)
	blank, dup, title := " ", "2", "  New title "

	_, err := e.catalog.UpdateBook(ctx, book.ID, lendingPatch(&blank, nil))
	assert.ErrorIs(t, err, lending.ErrInvalidInput)

	_, err = e.catalog.UpdateBook(ctx, book.ID, lendingPatch(nil, &dup))
	assert.ErrorIs(t, err, lending.ErrDuplicateKey)

	b, err := e.catalog.UpdateBook(ctx, book.ID, lendingPatch(&title, nil))
	require.NoError(t, err)
	assert.Equal(t, "New title", b.Title)
}
