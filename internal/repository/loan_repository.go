package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/model"
)

const loanColumns = "id, book_id, user_id, borrow_date, due_date, returned, return_date"

// loanRow mirrors the 'loans' table.  The book and user references are
// nullable because deleting a parent row nulls them.
type loanRow struct {
	ID         uint64        `db:"id"`
	BookID     sql.NullInt64 `db:"book_id"`
	UserID     sql.NullInt64 `db:"user_id"`
	BorrowDate time.Time     `db:"borrow_date"`
	DueDate    time.Time     `db:"due_date"`
	Returned   bool          `db:"returned"`
	ReturnDate sql.NullTime  `db:"return_date"`
}

func (r loanRow) toModel() model.Loan {
	l := model.Loan{
		ID:         r.ID,
		BookID:     uint64(r.BookID.Int64),
		UserID:     uint64(r.UserID.Int64),
		BorrowDate: r.BorrowDate.UTC(),
		DueDate:    r.DueDate.UTC(),
		Returned:   r.Returned,
	}
	if r.ReturnDate.Valid {
		t := r.ReturnDate.Time.UTC()
		l.ReturnDate = &t
	}
	return l
}

// HistoryRow is one loan joined with its book and user.  Book and user
// columns are NULL when the referenced row no longer exists.
type HistoryRow struct {
	LoanID     uint64         `db:"loan_id"`
	BookID     sql.NullInt64  `db:"book_id"`
	Title      sql.NullString `db:"title"`
	Author     sql.NullString `db:"author"`
	UserID     sql.NullInt64  `db:"user_id"`
	UserName   sql.NullString `db:"user_name"`
	UserEmail  sql.NullString `db:"user_email"`
	BorrowDate time.Time      `db:"borrow_date"`
	DueDate    time.Time      `db:"due_date"`
	Returned   bool           `db:"returned"`
	ReturnDate sql.NullTime   `db:"return_date"`
}

const historySelect = `SELECT l.id AS loan_id, b.id AS book_id, b.title AS title, b.author AS author,
       u.id AS user_id, u.name AS user_name, u.email AS user_email,
       l.borrow_date AS borrow_date, l.due_date AS due_date,
       l.returned AS returned, l.return_date AS return_date
  FROM loans l
  LEFT JOIN books b ON b.id = l.book_id
  LEFT JOIN users u ON u.id = l.user_id`

// LoanRepo persists loans.
type LoanRepo struct{ DB *sqlx.DB }

func NewLoanRepo(db *sqlx.DB) *LoanRepo { return &LoanRepo{DB: db} }

// CreateTx inserts an open loan and returns its ID.  A loan for an unknown
// book or user fails with ErrMissingReference.
func (r *LoanRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, l model.Loan) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO loans (book_id, user_id, borrow_date, due_date, returned) VALUES (?,?,?,?,0)",
		l.BookID, l.UserID, l.BorrowDate.UTC(), l.DueDate.UTC())
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, ErrMissingReference
		}
		return 0, fmt.Errorf("inserting loan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByIDTx fetches a loan inside tx.
func (r *LoanRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Loan, error) {
	var row loanRow
	err := tx.GetContext(ctx, &row, "SELECT "+loanColumns+" FROM loans WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Loan{}, ErrNotFound
	}
	if err != nil {
		return model.Loan{}, fmt.Errorf("loading loan %d: %w", id, err)
	}
	return row.toModel(), nil
}

// OpenByBookTx lists the open loans of a book, oldest first.
func (r *LoanRepo) OpenByBookTx(ctx context.Context, tx *sqlx.Tx, bookID uint64) ([]model.Loan, error) {
	var rows []loanRow
	if err := tx.SelectContext(ctx, &rows,
		"SELECT "+loanColumns+" FROM loans WHERE book_id = ? AND returned = 0 ORDER BY id", bookID); err != nil {
		return nil, fmt.Errorf("listing open loans of book %d: %w", bookID, err)
	}
	loans := make([]model.Loan, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, row.toModel())
	}
	return loans, nil
}

// HasOpenTx reports whether userID already holds an open loan of bookID.
func (r *LoanRepo) HasOpenTx(ctx context.Context, tx *sqlx.Tx, bookID, userID uint64) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM loans WHERE book_id = ? AND user_id = ? AND returned = 0", bookID, userID); err != nil {
		return false, fmt.Errorf("counting open loans: %w", err)
	}
	return n > 0, nil
}

// CloseTx marks an open loan returned at `at`.  The update only matches an
// open loan, so of two concurrent returns exactly one succeeds; the other
// gets ErrLoanClosed.
func (r *LoanRepo) CloseTx(ctx context.Context, tx *sqlx.Tx, id uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE loans SET returned = 1, return_date = ? WHERE id = ? AND returned = 0", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("closing loan %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByIDTx(ctx, tx, id); err != nil {
			return err
		}
		return ErrLoanClosed
	}
	return nil
}

// HistoryByUser lists the loans of userID, newest first.
func (r *LoanRepo) HistoryByUser(ctx context.Context, userID uint64) ([]HistoryRow, error) {
	return r.history(ctx, historySelect+" WHERE l.user_id = ? ORDER BY l.id DESC", userID)
}

// HistoryByBook lists the loans of bookID, newest first.
func (r *LoanRepo) HistoryByBook(ctx context.Context, bookID uint64) ([]HistoryRow, error) {
	return r.history(ctx, historySelect+" WHERE l.book_id = ? ORDER BY l.id DESC", bookID)
}

// HistoryAll lists every loan, oldest first.
func (r *LoanRepo) HistoryAll(ctx context.Context) ([]HistoryRow, error) {
	return r.history(ctx, historySelect+" ORDER BY l.id")
}

func (r *LoanRepo) history(ctx context.Context, query string, args ...any) ([]HistoryRow, error) {
	rows := []HistoryRow{}
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying loan history: %w", err)
	}
	return rows, nil
}
