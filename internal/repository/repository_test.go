package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/model"
)

type fixture struct {
	db     *sqlx.DB
	books  *BookRepo
	loans  *LoanRepo
	users  *UserRepo
	tokens *TokenRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := database.NewTestDB(t)
	return fixture{
		db:     db,
		books:  NewBookRepo(db),
		loans:  NewLoanRepo(db),
		users:  NewUserRepo(db),
		tokens: NewTokenRepo(db),
	}
}

func (f fixture) addBook(t *testing.T, isbn string, stock int) uint64 {
	t.Helper()
	id, err := f.books.Create(context.Background(), model.Book{
		Title: "Title " + isbn, Author: "Author", Category: "Fiction", ISBN: isbn, Stock: stock,
	})
	require.NoError(t, err)
	return id
}

func (f fixture) addUser(t *testing.T, name, email string) uint64 {
	t.Helper()
	id, err := f.users.Create(context.Background(), name, email, "secret123", model.RoleMember, 4)
	require.NoError(t, err)
	return id
}

func (f fixture) tx(t *testing.T, fn func(tx *sqlx.Tx) error) error {
	t.Helper()
	return database.InTx(context.Background(), f.db, fn)
}

func Test_BookRepo_CreateDerivesAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stocked := f.addBook(t, "111", 2)
	empty := f.addBook(t, "222", 0)

	b, err := f.books.GetByID(ctx, stocked)
	require.NoError(t, err)
	assert.True(t, b.Available)
	assert.Equal(t, 2, b.Stock)

	b, err = f.books.GetByID(ctx, empty)
	require.NoError(t, err)
	assert.False(t, b.Available)
}

func Test_BookRepo_CreateRejectsDuplicateISBN(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "111", 1)

	_, err := f.books.Create(context.Background(), model.Book{Title: "x", Author: "y", Category: "z", ISBN: "111"})

	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func Test_BookRepo_GetByIDMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.books.GetByID(context.Background(), 42)

	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_BookRepo_TryReserveDrainsStockThenRefuses(t *testing.T) {
	f := newFixture(t)
	id := f.addBook(t, "111", 2)

	var first, second model.Book
	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		var err error
		first, err = f.books.TryReserveTx(context.Background(), tx, id)
		return err
	}))
	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		var err error
		second, err = f.books.TryReserveTx(context.Background(), tx, id)
		return err
	}))
	err := f.tx(t, func(tx *sqlx.Tx) error {
		_, err := f.books.TryReserveTx(context.Background(), tx, id)
		return err
	})

	assert.Equal(t, model.StockSnapshot{Stock: 1, Available: true}, first.Snapshot())
	assert.Equal(t, model.StockSnapshot{Stock: 0, Available: false}, second.Snapshot())
	assert.ErrorIs(t, err, ErrNoStock)
}

func Test_BookRepo_TryReserveMissingBook(t *testing.T) {
	f := newFixture(t)

	err := f.tx(t, func(tx *sqlx.Tx) error {
		_, err := f.books.TryReserveTx(context.Background(), tx, 99)
		return err
	})

	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_BookRepo_ReleaseRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	id := f.addBook(t, "111", 0)

	var b model.Book
	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		var err error
		b, err = f.books.ReleaseTx(context.Background(), tx, id)
		return err
	}))

	assert.Equal(t, model.StockSnapshot{Stock: 1, Available: true}, b.Snapshot())
}

func Test_BookRepo_AdjustStockKeepsInvariant(t *testing.T) {
	f := newFixture(t)
	id := f.addBook(t, "111", 1)
	ctx := context.Background()

	var b model.Book
	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		var err error
		b, err = f.books.AdjustStockTx(ctx, tx, id, -1)
		return err
	}))
	assert.Equal(t, model.StockSnapshot{Stock: 0, Available: false}, b.Snapshot())

	err := f.tx(t, func(tx *sqlx.Tx) error {
		_, err := f.books.AdjustStockTx(ctx, tx, id, -1)
		return err
	})
	assert.ErrorIs(t, err, ErrNegativeStock)

	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		var err error
		b, err = f.books.AdjustStockTx(ctx, tx, id, 3)
		return err
	}))
	assert.Equal(t, model.StockSnapshot{Stock: 3, Available: true}, b.Snapshot())
}

func Test_BookRepo_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.books.Create(ctx, model.Book{Title: "The Hobbit", Author: "Tolkien", Category: "Fantasy", ISBN: "1", Stock: 1})
	require.NoError(t, err)
	_, err = f.books.Create(ctx, model.Book{Title: "Dune", Author: "Herbert", Category: "Science Fiction", ISBN: "2", Stock: 1})
	require.NoError(t, err)

	byTitle, err := f.books.Search(ctx, "hOBB")
	require.NoError(t, err)
	byCategory, err := f.books.Search(ctx, "fiction")
	require.NoError(t, err)
	all, err := f.books.Search(ctx, "  ")
	require.NoError(t, err)
	none, err := f.books.Search(ctx, "%")
	require.NoError(t, err)

	require.Len(t, byTitle, 1)
	assert.Equal(t, "The Hobbit", byTitle[0].Title)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Dune", byCategory[0].Title)
	assert.Len(t, all, 2)
	assert.Empty(t, none)
}

func Test_BookRepo_FilterMatchesWholeCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.books.Create(ctx, model.Book{Title: "A", Author: "a", Category: "Fantasy", ISBN: "1"})
	require.NoError(t, err)
	_, err = f.books.Create(ctx, model.Book{Title: "B", Author: "b", Category: "Fantasy Epic", ISBN: "2"})
	require.NoError(t, err)

	got, err := f.books.Filter(ctx, "FANTASY")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)
}

func Test_BookRepo_UpdatePatchesMetadataOnly(t *testing.T) {
	f := newFixture(t)
	id := f.addBook(t, "111", 2)
	f.addBook(t, "222", 1)
	title := "Renamed"
	taken := "222"

	b, err := f.books.Update(context.Background(), id, BookPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", b.Title)
	assert.Equal(t, 2, b.Stock)

	_, err = f.books.Update(context.Background(), id, BookPatch{ISBN: &taken})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = f.books.Update(context.Background(), 999, BookPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_BookRepo_DeleteCascadeRemovesLoans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "111", 2)
	userID := f.addUser(t, "ann", "ann@example.com")
	now := time.Now().UTC()
	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		_, err := f.loans.CreateTx(ctx, tx, model.Loan{BookID: bookID, UserID: userID, BorrowDate: now, DueDate: now.Add(time.Hour)})
		return err
	}))

	var removed int64
	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		var err error
		removed, err = f.books.DeleteCascadeTx(ctx, tx, bookID)
		return err
	}))

	assert.EqualValues(t, 1, removed)
	_, err := f.books.GetByID(ctx, bookID)
	assert.ErrorIs(t, err, ErrNotFound)
	rows, err := f.loans.HistoryAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = f.tx(t, func(tx *sqlx.Tx) error {
		_, err := f.books.DeleteCascadeTx(ctx, tx, bookID)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_LoanRepo_CreateRejectsUnknownUser(t *testing.T) {
	f := newFixture(t)
	bookID := f.addBook(t, "111", 1)
	now := time.Now().UTC()

	err := f.tx(t, func(tx *sqlx.Tx) error {
		_, err := f.loans.CreateTx(context.Background(), tx, model.Loan{BookID: bookID, UserID: 77, BorrowDate: now, DueDate: now})
		return err
	})

	assert.ErrorIs(t, err, ErrMissingReference)
}

func Test_LoanRepo_CloseIsCompareAndSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "111", 1)
	userID := f.addUser(t, "ann", "ann@example.com")
	borrowed := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	returned := borrowed.Add(48 * time.Hour)

	var loanID uint64
	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		var err error
		loanID, err = f.loans.CreateTx(ctx, tx, model.Loan{BookID: bookID, UserID: userID, BorrowDate: borrowed, DueDate: borrowed.Add(24 * time.Hour)})
		return err
	}))

	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		open, err := f.loans.HasOpenTx(ctx, tx, bookID, userID)
		require.NoError(t, err)
		assert.True(t, open)
		return f.loans.CloseTx(ctx, tx, loanID, returned)
	}))
	err := f.tx(t, func(tx *sqlx.Tx) error { return f.loans.CloseTx(ctx, tx, loanID, returned) })
	assert.ErrorIs(t, err, ErrLoanClosed)
	err = f.tx(t, func(tx *sqlx.Tx) error { return f.loans.CloseTx(ctx, tx, 999, returned) })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		l, err := f.loans.GetByIDTx(ctx, tx, loanID)
		require.NoError(t, err)
		assert.True(t, l.Returned)
		require.NotNil(t, l.ReturnDate)
		assert.True(t, returned.Equal(*l.ReturnDate))
		assert.True(t, borrowed.Equal(l.BorrowDate))

		open, err := f.loans.OpenByBookTx(ctx, tx, bookID)
		require.NoError(t, err)
		assert.Empty(t, open)
		return nil
	}))
}

func Test_LoanRepo_HistoryTombstonesMissingRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "111", 2)
	keptBook := f.addBook(t, "222", 1)
	userID := f.addUser(t, "ann", "ann@example.com")
	now := time.Now().UTC()

	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		for _, b := range []uint64{bookID, keptBook} {
			id, err := f.loans.CreateTx(ctx, tx, model.Loan{BookID: b, UserID: userID, BorrowDate: now, DueDate: now})
			if err != nil {
				return err
			}
			if err := f.loans.CloseTx(ctx, tx, id, now); err != nil {
				return err
			}
		}
		return nil
	}))
	_, err := f.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", bookID)
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(ctx, userID))

	rows, err := f.loans.HistoryAll(ctx)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].BookID.Valid)
	assert.False(t, rows[0].Title.Valid)
	assert.False(t, rows[0].UserID.Valid)
	assert.True(t, rows[1].BookID.Valid)
	assert.Equal(t, "Title 222", rows[1].Title.String)
	assert.False(t, rows[1].UserName.Valid)
}

func Test_UserRepo_CreateAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addUser(t, "Ann", "  Ann@Example.COM ")

	byEmail, err := f.users.GetByLogin(ctx, "ann@example.com")
	require.NoError(t, err)
	byName, err := f.users.GetByLogin(ctx, "Ann")
	require.NoError(t, err)
	_, err = f.users.GetByLogin(ctx, "nobody")

	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, "ann@example.com", byEmail.Email)
	assert.Equal(t, model.RoleMember, byEmail.Role)
	assert.True(t, byEmail.Active)
	assert.Equal(t, id, byName.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.users.Create(ctx, "Other", "ANN@example.com", "secret123", model.RoleMember, 4)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func Test_UserRepo_SetActiveAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addUser(t, "ann", "ann@example.com")

	require.NoError(t, f.users.SetActive(ctx, id, false))
	assert.ErrorIs(t, f.users.SetActive(ctx, 999, false), ErrNotFound)

	users, err := f.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.False(t, users[0].Active)
}

func Test_UserRepo_DeleteRefusedWhileLoanOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "111", 1)
	userID := f.addUser(t, "ann", "ann@example.com")
	now := time.Now().UTC()
	require.NoError(t, f.tx(t, func(tx *sqlx.Tx) error {
		_, err := f.loans.CreateTx(ctx, tx, model.Loan{BookID: bookID, UserID: userID, BorrowDate: now, DueDate: now})
		return err
	}))

	assert.ErrorIs(t, f.users.Delete(ctx, userID), ErrConflict)
	assert.ErrorIs(t, f.users.Delete(ctx, 999), ErrNotFound)
}

func Test_UserRepo_DeleteTxGuardsOpenLoanInSameTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, "111", 1)
	userID := f.addUser(t, "ann", "ann@example.com")
	now := time.Now().UTC()

	err := f.tx(t, func(tx *sqlx.Tx) error {
		if _, err := f.loans.CreateTx(ctx, tx, model.Loan{BookID: bookID, UserID: userID, BorrowDate: now, DueDate: now}); err != nil {
			return err
		}
		return f.users.DeleteTx(ctx, tx, userID)
	})
	require.ErrorIs(t, err, ErrConflict)

	// Rolled back as a whole: the user survives and no loan was orphaned.
	_, err = f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	var orphaned int
	require.NoError(t, f.db.Get(&orphaned, "SELECT COUNT(*) FROM loans WHERE user_id IS NULL"))
	assert.Zero(t, orphaned)

	require.NoError(t, f.users.Delete(ctx, userID))
	_, err = f.users.GetByID(ctx, userID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_TokenRepo_ValidateAndRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.addUser(t, "ann", "ann@example.com")

	require.NoError(t, f.tokens.StoreRefresh(ctx, userID, "live", time.Now().Add(time.Hour)))
	require.NoError(t, f.tokens.StoreRefresh(ctx, userID, "stale", time.Now().Add(-time.Hour)))

	got, err := f.tokens.ValidateRefresh(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = f.tokens.ValidateRefresh(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.tokens.RevokeAllForUser(ctx, userID))
	_, err = f.tokens.ValidateRefresh(ctx, "live")
	assert.ErrorIs(t, err, ErrNotFound)
}
