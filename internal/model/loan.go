package model

import "time"

// Loan records one user borrowing one copy of a book.  A loan is open
// while Returned is false; it is closed exactly once by a return.
type Loan struct {
	ID         uint64     `json:"id"`                    // loans.id
	BookID     uint64     `json:"book_id"`               // loans.book_id
	UserID     uint64     `json:"user_id"`               // loans.user_id
	BorrowDate time.Time  `json:"borrow_date"`           // loans.borrow_date
	DueDate    time.Time  `json:"due_date"`              // loans.due_date
	Returned   bool       `json:"returned"`              // loans.returned
	ReturnDate *time.Time `json:"return_date,omitempty"` // loans.return_date (nullable)
}

// Overdue compares instants: a returned loan is overdue when it came back
// after its due date, an open loan when now is past the due date.
func Overdue(dueDate time.Time, returned bool, returnDate *time.Time, now time.Time) bool {
	if returned {
		return returnDate != nil && returnDate.After(dueDate)
	}
	return now.After(dueDate)
}
