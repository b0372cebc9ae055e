// Package lending implements the lending state machine: the stock ledger,
// borrow and return with their authorization rules, and the derived
// borrowing history.
package lending

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/repository"
)

// BorrowResult is the outcome of a successful borrow.
type BorrowResult struct {
	Loan model.Loan `json:"loan"`
	Book model.Book `json:"book"`
}

// ReturnReceipt is the outcome of a successful return.
type ReturnReceipt struct {
	Book       model.Book `json:"book"`
	ReturnedOn time.Time  `json:"returned_on"`
	Loan       model.Loan `json:"loan"`
}

// Engine runs borrows and returns.  Each operation is one transaction
// over the ledger and the loan table; a failure anywhere rolls back the
// stock change with it.
type Engine struct {
	db     *sqlx.DB
	ledger *Ledger
	books  *repository.BookRepo
	loans  *repository.LoanRepo
	users  *repository.UserRepo
	clock  Clock
	pub    Publisher
	log    *slog.Logger
	retry  []database.RetryOption
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.pub = p } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithRetry(opts ...database.RetryOption) Option {
	return func(e *Engine) { e.retry = opts }
}

func NewEngine(db *sqlx.DB, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		ledger: NewLedger(db),
		books:  repository.NewBookRepo(db),
		loans:  repository.NewLoanRepo(db),
		users:  repository.NewUserRepo(db),
		clock:  SystemClock{},
		pub:    NopPublisher{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger exposes the engine's stock ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Borrow lends one copy of bookID to the calling member until dueDate.
func (e *Engine) Borrow(ctx context.Context, caller model.Caller, bookID uint64, dueDate time.Time) (BorrowResult, error) {
	if !caller.CanBorrow() {
		return BorrowResult{}, ErrForbidden
	}
	now := e.clock.Now().UTC()
	if dueDate.IsZero() {
		return BorrowResult{}, invalid("due date is required")
	}
	if dueDate.Before(now) {
		return BorrowResult{}, invalid("due date is in the past")
	}

	var res BorrowResult
	err := e.run(ctx, "borrow", func(ctx context.Context, tx *sqlx.Tx) error {
		book, err := e.ledger.TryReserve(ctx, tx, bookID)
		if err != nil {
			return err
		}
		// Access tokens outlive deactivation; the account flag is authoritative.
		switch active, err := e.users.ActiveTx(ctx, tx, caller.ID); {
		case errors.Is(err, repository.ErrNotFound):
			return ErrUserNotFound
		case err != nil:
			return storageErr("borrow", err)
		case !active:
			return ErrUserInactive
		}
		held, err := e.loans.HasOpenTx(ctx, tx, bookID, caller.ID)
		if err != nil {
			return storageErr("borrow", err)
		}
		if held {
			return ErrAlreadyBorrowed
		}
		loan := model.Loan{
			BookID:     bookID,
			UserID:     caller.ID,
			BorrowDate: now,
			DueDate:    dueDate.UTC(),
		}
		id, err := e.loans.CreateTx(ctx, tx, loan)
		if errors.Is(err, repository.ErrMissingReference) {
			return ErrUserNotFound
		}
		if err != nil {
			return storageErr("borrow", err)
		}
		loan.ID = id
		res = BorrowResult{Loan: loan, Book: book}
		return nil
	})
	if err != nil {
		e.log.DebugContext(ctx, "borrow rejected", "book_id", bookID, "user_id", caller.ID, "error", err)
		return BorrowResult{}, err
	}

	e.log.InfoContext(ctx, "book borrowed",
		"loan_id", res.Loan.ID, "book_id", bookID, "user_id", caller.ID, "stock", res.Book.Stock)
	e.publish(ctx, Event{Type: EventBorrowed, Loan: res.Loan, Book: res.Book, OccurredAt: now})
	return res, nil
}

// Return closes an open loan of bookID and puts the copy back on the
// shelf.  loanID selects the loan explicitly; without it a member returns
// their own loan and an admin the only open one.
func (e *Engine) Return(ctx context.Context, caller model.Caller, bookID uint64, loanID *uint64) (ReturnReceipt, error) {
	if caller.Role != model.RoleMember && caller.Role != model.RoleAdmin {
		return ReturnReceipt{}, ErrForbidden
	}
	now := e.clock.Now().UTC()

	var rec ReturnReceipt
	err := e.run(ctx, "return", func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := e.books.GetByIDTx(ctx, tx, bookID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookNotFound
			}
			return storageErr("return", err)
		}
		open, err := e.loans.OpenByBookTx(ctx, tx, bookID)
		if err != nil {
			return storageErr("return", err)
		}
		if len(open) == 0 {
			return ErrNotCurrentlyBorrowed
		}
		loan, err := e.selectLoan(ctx, tx, caller, open, loanID)
		if err != nil {
			return err
		}

		switch err := e.loans.CloseTx(ctx, tx, loan.ID, now); {
		case errors.Is(err, repository.ErrLoanClosed), errors.Is(err, repository.ErrNotFound):
			return ErrNotCurrentlyBorrowed
		case err != nil:
			return storageErr("return", err)
		}
		book, err := e.ledger.Release(ctx, tx, bookID)
		if err != nil {
			return err
		}

		loan.Returned = true
		loan.ReturnDate = &now
		rec = ReturnReceipt{Book: book, ReturnedOn: now, Loan: loan}
		return nil
	})
	if err != nil {
		e.log.DebugContext(ctx, "return rejected", "book_id", bookID, "user_id", caller.ID, "error", err)
		return ReturnReceipt{}, err
	}

	e.log.InfoContext(ctx, "book returned",
		"loan_id", rec.Loan.ID, "book_id", bookID, "by", caller.ID, "stock", rec.Book.Stock)
	e.publish(ctx, Event{Type: EventReturned, Loan: rec.Loan, Book: rec.Book, OccurredAt: now})
	return rec, nil
}

// selectLoan picks the loan to close among the open loans of one book and
// checks that caller may close it.
func (e *Engine) selectLoan(ctx context.Context, tx *sqlx.Tx, caller model.Caller, open []model.Loan, loanID *uint64) (model.Loan, error) {
	if loanID != nil {
		for _, l := range open {
			if l.ID == *loanID {
				if !caller.CanReturn(l.UserID) {
					return model.Loan{}, ErrForbidden
				}
				return l, nil
			}
		}
		// Not open for this book: tell a missing loan from a closed one.
		if _, err := e.loans.GetByIDTx(ctx, tx, *loanID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Loan{}, ErrLoanNotFound
			}
			return model.Loan{}, storageErr("return", err)
		}
		return model.Loan{}, ErrNotCurrentlyBorrowed
	}

	if caller.IsAdmin() {
		if len(open) > 1 {
			return model.Loan{}, ErrAmbiguousLoan
		}
		return open[0], nil
	}
	for _, l := range open {
		if l.UserID == caller.ID {
			return l, nil
		}
	}
	return model.Loan{}, ErrForbidden
}

// run executes fn in a transaction, retrying transient driver failures.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	err := database.Retry(ctx, func(ctx context.Context) error {
		return database.InTx(ctx, e.db, func(tx *sqlx.Tx) error { return fn(ctx, tx) })
	}, e.retry...)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.WarnContext(ctx, "publishing loan event failed",
			"type", string(ev.Type), "loan_id", ev.Loan.ID, "error", err)
	}
}
