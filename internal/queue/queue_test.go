package queue

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-lending/internal/lending"
	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/utils"
)

func returnedEvent() lending.Event {
	due := time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC)
	back := due.Add(-time.Hour)
	return lending.Event{
		Type:       lending.EventReturned,
		Loan:       model.Loan{ID: 7, BookID: 3, UserID: 5, DueDate: due, Returned: true, ReturnDate: &back},
		Book:       model.Book{ID: 3, Title: "Dune", Stock: 1, Available: true},
		OccurredAt: back,
	}
}

func Test_NewLoanEvent_MapsFields(t *testing.T) {
	ev := NewLoanEvent(returnedEvent())

	assert.Len(t, ev.EventID, 36)
	assert.Equal(t, "loan.returned", ev.Type)
	assert.EqualValues(t, 7, ev.LoanID)
	assert.Equal(t, "Dune", ev.BookTitle)
	assert.Equal(t, "2026-03-17T12:00:00Z", ev.DueDate)
	require.NotNil(t, ev.ReturnDate)
	assert.Equal(t, "2026-03-17T11:00:00Z", *ev.ReturnDate)
	assert.True(t, ev.Available)
}

func Test_NewLoanEvent_BorrowHasNoReturnDate(t *testing.T) {
	src := returnedEvent()
	src.Type = lending.EventBorrowed
	src.Loan.ReturnDate = nil

	raw, err := utils.JSON.Marshal(NewLoanEvent(src))

	require.NoError(t, err)
	assert.NotContains(t, string(raw), "return_date")
	assert.Contains(t, string(raw), `"type":"loan.borrowed"`)
}

func Test_Consumer_HandleAppendsLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := &Consumer{LogDir: dir, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	body, err := utils.JSON.Marshal(NewLoanEvent(returnedEvent()))
	require.NoError(t, err)

	require.NoError(t, c.Handle(body))
	require.NoError(t, c.Handle(body))

	data, err := os.ReadFile(filepath.Join(dir, LoanLogFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Book returned | loan_id=7 | book_id=3 | user_id=5")
	assert.Contains(t, lines[0], `title="Dune"`)
	assert.Contains(t, lines[0], "stock=1 | available=true")
}

func Test_Consumer_HandleRejectsBadPayloads(t *testing.T) {
	c := &Consumer{LogDir: t.TempDir()}

	assert.Error(t, c.Handle([]byte("{")))
	assert.Error(t, c.Handle([]byte(`{"type":"loan.borrowed"}`)))
}
