package lending

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/repository"
	"github.com/iliyamo/library-lending/internal/utils"
)

// Tombstone replaces the name of a book or user that no longer exists.
const Tombstone = "deleted"

// UserLoan is one row of a user's borrowing history.  BookID is nil when
// the book was deleted.
type UserLoan struct {
	LoanID     uint64     `json:"loan_id"`
	BookID     *uint64    `json:"book_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	BorrowedOn time.Time  `json:"borrowed_on"`
	DueDate    time.Time  `json:"due_date"`
	Returned   bool       `json:"returned"`
	ReturnedOn *time.Time `json:"returned_on"`
	Overdue    bool       `json:"overdue"`
}

// Borrower identifies the user of a loan, or is a tombstone.
type Borrower struct {
	Deleted bool
	ID      uint64
	Name    string
	Email   string
}

// MarshalJSON renders a deleted borrower as the string "deleted".
func (b Borrower) MarshalJSON() ([]byte, error) {
	if b.Deleted {
		return utils.JSON.Marshal(Tombstone)
	}
	return utils.JSON.Marshal(struct {
		ID    uint64 `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}{b.ID, b.Name, b.Email})
}

// BookLoan is one row of a book's lending history.
type BookLoan struct {
	LoanID     uint64     `json:"loan_id"`
	User       Borrower   `json:"user"`
	BorrowedOn time.Time  `json:"borrowed_on"`
	DueDate    time.Time  `json:"due_date"`
	Returned   bool       `json:"returned"`
	ReturnedOn *time.Time `json:"returned_on"`
	Overdue    bool       `json:"overdue"`
}

// BookHistory is the lending history of one book.
type BookHistory struct {
	BookID  uint64     `json:"book_id"`
	Title   string     `json:"title"`
	Author  string     `json:"author"`
	Entries []BookLoan `json:"entries"`
}

// LoanRecord is a flat loan row for exports.
type LoanRecord struct {
	LoanID     uint64
	BookID     *uint64
	BookTitle  string
	User       Borrower
	BorrowedOn time.Time
	DueDate    time.Time
	Returned   bool
	ReturnedOn *time.Time
	Overdue    bool
}

// History derives borrowing history with overdue status.  Each call reads
// the clock once so every row of one answer is judged at the same instant.
type History struct {
	loans *repository.LoanRepo
	books *repository.BookRepo
	clock Clock
}

func NewHistory(db *sqlx.DB, clock Clock) *History {
	if clock == nil {
		clock = SystemClock{}
	}
	return &History{loans: repository.NewLoanRepo(db), books: repository.NewBookRepo(db), clock: clock}
}

// UserHistory lists the loans of userID, newest first.  Members may only
// read their own history.  An unknown user has an empty history.
func (h *History) UserHistory(ctx context.Context, caller model.Caller, userID uint64) ([]UserLoan, error) {
	if !caller.CanReadUserHistory(userID) {
		return nil, ErrForbidden
	}
	now := h.clock.Now()
	rows, err := h.loans.HistoryByUser(ctx, userID)
	if err != nil {
		return nil, storageErr("user history", err)
	}
	out := make([]UserLoan, 0, len(rows))
	for _, r := range rows {
		bookID, title := bookRef(r)
		out = append(out, UserLoan{
			LoanID:     r.LoanID,
			BookID:     bookID,
			Title:      title,
			Author:     r.Author.String,
			BorrowedOn: r.BorrowDate.UTC(),
			DueDate:    r.DueDate.UTC(),
			Returned:   r.Returned,
			ReturnedOn: returnedOn(r),
			Overdue:    overdue(r, now),
		})
	}
	return out, nil
}

// BookHistory lists the loans of bookID, newest first.  Admin only.
func (h *History) BookHistory(ctx context.Context, caller model.Caller, bookID uint64) (BookHistory, error) {
	if !caller.IsAdmin() {
		return BookHistory{}, ErrForbidden
	}
	now := h.clock.Now()
	b, err := h.books.GetByID(ctx, bookID)
	if errors.Is(err, repository.ErrNotFound) {
		return BookHistory{}, ErrBookNotFound
	}
	if err != nil {
		return BookHistory{}, storageErr("book history", err)
	}
	rows, err := h.loans.HistoryByBook(ctx, bookID)
	if err != nil {
		return BookHistory{}, storageErr("book history", err)
	}
	out := BookHistory{BookID: b.ID, Title: b.Title, Author: b.Author, Entries: make([]BookLoan, 0, len(rows))}
	for _, r := range rows {
		out.Entries = append(out.Entries, BookLoan{
			LoanID:     r.LoanID,
			User:       borrower(r),
			BorrowedOn: r.BorrowDate.UTC(),
			DueDate:    r.DueDate.UTC(),
			Returned:   r.Returned,
			ReturnedOn: returnedOn(r),
			Overdue:    overdue(r, now),
		})
	}
	return out, nil
}

// All lists every loan, oldest first.  Admin only.
func (h *History) All(ctx context.Context, caller model.Caller) ([]LoanRecord, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	now := h.clock.Now()
	rows, err := h.loans.HistoryAll(ctx)
	if err != nil {
		return nil, storageErr("loan history", err)
	}
	out := make([]LoanRecord, 0, len(rows))
	for _, r := range rows {
		bookID, title := bookRef(r)
		out = append(out, LoanRecord{
			LoanID:     r.LoanID,
			BookID:     bookID,
			BookTitle:  title,
			User:       borrower(r),
			BorrowedOn: r.BorrowDate.UTC(),
			DueDate:    r.DueDate.UTC(),
			Returned:   r.Returned,
			ReturnedOn: returnedOn(r),
			Overdue:    overdue(r, now),
		})
	}
	return out, nil
}

func bookRef(r repository.HistoryRow) (*uint64, string) {
	if !r.BookID.Valid {
		return nil, Tombstone
	}
	id := uint64(r.BookID.Int64)
	return &id, r.Title.String
}

func borrower(r repository.HistoryRow) Borrower {
	if !r.UserID.Valid {
		return Borrower{Deleted: true}
	}
	return Borrower{ID: uint64(r.UserID.Int64), Name: r.UserName.String, Email: r.UserEmail.String}
}

func returnedOn(r repository.HistoryRow) *time.Time {
	if !r.ReturnDate.Valid {
		return nil
	}
	t := r.ReturnDate.Time.UTC()
	return &t
}

func overdue(r repository.HistoryRow, now time.Time) bool {
	return model.Overdue(r.DueDate, r.Returned, returnedOn(r), now)
}
