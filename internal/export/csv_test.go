package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-lending/internal/lending"
	"github.com/iliyamo/library-lending/internal/model"
)

func Test_WriteBooks_QuotesFields(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBooks(&buf, []model.Book{
		{ID: 1, Title: `Say "Hi", World`, Author: "A", Category: "C", ISBN: "i-1", Stock: 2, Available: true},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"ID,Title,Author,Category,ISBN,Available,Stock\n"+
			`1,"Say ""Hi"", World",A,C,i-1,true,2`+"\n",
		buf.String())
}

func Test_WriteHistory_TombstonesAndDates(t *testing.T) {
	borrowed := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	due := time.Date(2026, 1, 9, 23, 59, 59, 0, time.UTC)
	back := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	err := WriteHistory(&buf, []lending.LoanRecord{
		{LoanID: 1, BookTitle: lending.Tombstone, User: lending.Borrower{Deleted: true},
			BorrowedOn: borrowed, DueDate: due, Returned: true, ReturnedOn: &back, Overdue: true},
		{LoanID: 2, BookTitle: "Dune", User: lending.Borrower{ID: 3, Name: "Ann", Email: "ann@x.io"},
			BorrowedOn: borrowed, DueDate: due},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"LoanID,Book Title,User Name,User Email,Borrowed On,Due Date,Returned,Returned On,Overdue\n"+
			"1,deleted,deleted,deleted,2026-01-02,2026-01-09,Yes,2026-01-12,Yes\n"+
			"2,Dune,Ann,ann@x.io,2026-01-02,2026-01-09,No,,No\n",
		buf.String())
}
