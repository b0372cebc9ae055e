package lending

import (
	"context"
	"time"

	"github.com/iliyamo/library-lending/internal/model"
)

// EventType names a lending state change.
type EventType string

const (
	EventBorrowed EventType = "loan.borrowed"
	EventReturned EventType = "loan.returned"
)

// Event is emitted after a borrow or return has committed.  Book carries
// the stock snapshot written by the same transaction.
type Event struct {
	Type       EventType
	Loan       model.Loan
	Book       model.Book
	OccurredAt time.Time
}

// Publisher delivers events to interested parties.  Delivery is best
// effort: a failed publish never undoes the committed change.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
