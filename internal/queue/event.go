// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/library-lending/internal/lending"
)

// LoanEventsQueue is the durable queue carrying LoanEvent messages.
const LoanEventsQueue = "loan.events"

// LoanEvent is published after a borrow or return commits.  It carries
// enough to log or notify without querying the primary database.
type LoanEvent struct {
	EventID    string  `json:"event_id"`
	Type       string  `json:"type"`
	LoanID     uint64  `json:"loan_id"`
	BookID     uint64  `json:"book_id"`
	UserID     uint64  `json:"user_id"`
	BookTitle  string  `json:"book_title"`
	DueDate    string  `json:"due_date"`
	ReturnDate *string `json:"return_date,omitempty"`
	Stock      int     `json:"stock"`
	Available  bool    `json:"available"`
	OccurredAt string  `json:"occurred_at"`
}

// NewLoanEvent converts a committed lending event into its wire form with
// a fresh event id.  Times are RFC 3339 in UTC.
func NewLoanEvent(ev lending.Event) LoanEvent {
	out := LoanEvent{
		EventID:    uuid.NewString(),
		Type:       string(ev.Type),
		LoanID:     ev.Loan.ID,
		BookID:     ev.Loan.BookID,
		UserID:     ev.Loan.UserID,
		BookTitle:  ev.Book.Title,
		DueDate:    ev.Loan.DueDate.UTC().Format(time.RFC3339),
		Stock:      ev.Book.Stock,
		Available:  ev.Book.Available,
		OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339),
	}
	if ev.Loan.ReturnDate != nil {
		s := ev.Loan.ReturnDate.UTC().Format(time.RFC3339)
		out.ReturnDate = &s
	}
	return out
}
