// Package export renders the catalog and the loan history as CSV for the
// admin HTTP export and for libctl.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/iliyamo/library-lending/internal/lending"
	"github.com/iliyamo/library-lending/internal/model"
)

var (
	BooksHeader   = []string{"ID", "Title", "Author", "Category", "ISBN", "Available", "Stock"}
	HistoryHeader = []string{"LoanID", "Book Title", "User Name", "User Email", "Borrowed On", "Due Date", "Returned", "Returned On", "Overdue"}
)

// WriteBooks writes one row per book after the header.
func WriteBooks(w io.Writer, books []model.Book) error {
	rows := make([][]string, 0, len(books)+1)
	rows = append(rows, BooksHeader)
	for _, b := range books {
		rows = append(rows, []string{
			strconv.FormatUint(b.ID, 10),
			b.Title,
			b.Author,
			b.Category,
			b.ISBN,
			strconv.FormatBool(b.Available),
			strconv.Itoa(b.Stock),
		})
	}
	return csv.NewWriter(w).WriteAll(rows)
}

// WriteHistory writes one row per loan after the header.  Dates are
// calendar days in UTC; a deleted user shows as "deleted" in both the name
// and email columns.
func WriteHistory(w io.Writer, recs []lending.LoanRecord) error {
	rows := make([][]string, 0, len(recs)+1)
	rows = append(rows, HistoryHeader)
	for _, r := range recs {
		name, email := lending.Tombstone, lending.Tombstone
		if !r.User.Deleted {
			name, email = r.User.Name, r.User.Email
		}
		returnedOn := ""
		if r.ReturnedOn != nil {
			returnedOn = r.ReturnedOn.Format(time.DateOnly)
		}
		rows = append(rows, []string{
			strconv.FormatUint(r.LoanID, 10),
			r.BookTitle,
			name,
			email,
			r.BorrowedOn.Format(time.DateOnly),
			r.DueDate.Format(time.DateOnly),
			yesNo(r.Returned),
			returnedOn,
			yesNo(r.Overdue),
		})
	}
	return csv.NewWriter(w).WriteAll(rows)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
