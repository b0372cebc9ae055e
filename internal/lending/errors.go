package lending

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors.  Callers test for them with errors.Is; Category groups
// them for transport mapping.
var (
	ErrBookNotFound         = errors.New("book not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrOutOfStock           = errors.New("book is out of stock")
	ErrAlreadyBorrowed      = errors.New("book already borrowed by this user")
	ErrNotCurrentlyBorrowed = errors.New("book is not currently borrowed")
	ErrDuplicateKey         = errors.New("duplicate key")
	ErrForbidden            = errors.New("forbidden")
	ErrUserInactive         = errors.New("user is deactivated")
	ErrInvalidInput         = errors.New("invalid input")
	ErrAmbiguousLoan        = errors.New("several open loans; loan_id required")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// Category is the coarse class of an error.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryNotFound
	CategoryConflict
	CategoryForbidden
	CategoryBadInput
	CategoryUnavailable
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryNotFound:
		return "not_found"
	case CategoryConflict:
		return "conflict"
	case CategoryForbidden:
		return "forbidden"
	case CategoryBadInput:
		return "bad_input"
	case CategoryUnavailable:
		return "unavailable"
	}
	return "internal"
}

// CategoryOf classifies err.  Errors outside the domain taxonomy are
// internal.
func CategoryOf(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrLoanNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrOutOfStock), errors.Is(err, ErrAlreadyBorrowed),
		errors.Is(err, ErrNotCurrentlyBorrowed), errors.Is(err, ErrDuplicateKey):
		return CategoryConflict
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUserInactive):
		return CategoryForbidden
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrAmbiguousLoan):
		return CategoryBadInput
	case errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CategoryUnavailable
	}
	return CategoryInternal
}

// storageErr wraps a driver or repository failure of op.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
