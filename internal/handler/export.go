package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/export"
	"github.com/iliyamo/library-lending/internal/lending"
)

// ExportHandler streams the catalog and the loan history as CSV.
type ExportHandler struct {
	Catalog *lending.Catalog
	Loans   *lending.History
}

func NewExportHandler(catalog *lending.Catalog, history *lending.History) *ExportHandler {
	return &ExportHandler{Catalog: catalog, Loans: history}
}

// Books handles GET /v1/export/books.
func (h *ExportHandler) Books(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	books, err := h.Catalog.List(ctx)
	if err != nil {
		return respondErr(c, err)
	}
	attachCSV(c, "books_export.csv")
	return export.WriteBooks(c.Response(), books)
}

// History handles GET /v1/export/history.
func (h *ExportHandler) History(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Loans.All(ctx, who)
	if err != nil {
		return respondErr(c, err)
	}
	attachCSV(c, "borrow_history.csv")
	return export.WriteHistory(c.Response(), recs)
}

func attachCSV(c echo.Context, filename string) {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	res.WriteHeader(http.StatusOK)
}
