// Package repository holds the SQL persistence for books, loans, users and
// refresh tokens.  Its sentinel values let the lending layer tell expected
// outcomes apart from storage failures.  For example, ErrNoStock means the
// conditional stock update matched nothing, while ErrLoanClosed signals that
// a concurrent return already closed the loan.
package repository

import "errors"

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned when an insert or update collides with a
// unique column such as books.isbn or users.email.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrNoStock is returned by TryReserveTx when the book exists but has no
// copy on the shelf.
var ErrNoStock = errors.New("no stock")

// ErrLoanClosed is returned by CloseTx when the loan was already returned.
var ErrLoanClosed = errors.New("loan already closed")

// ErrMissingReference is returned when a row points at a parent that does
// not exist (for example a loan for an unknown user).
var ErrMissingReference = errors.New("missing reference")

// ErrConflict is returned when a delete cannot proceed because dependent
// rows are still active, such as deleting a user holding open loans.
var ErrConflict = errors.New("conflict")

// ErrNegativeStock is returned when a stock adjustment would go below zero.
var ErrNegativeStock = errors.New("stock would become negative")
