package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/lending"
)

// LendingHandler exposes borrow and return.
type LendingHandler struct {
	Engine *lending.Engine
}

func NewLendingHandler(engine *lending.Engine) *LendingHandler {
	if engine == nil {
		panic("nil engine passed to NewLendingHandler")
	}
	return &LendingHandler{Engine: engine}
}

type borrowReq struct {
	DueDate string `json:"due_date"`
}

type returnReq struct {
	LoanID *uint64 `json:"loan_id"`
}

// parseDueDate accepts RFC 3339 or a bare YYYY-MM-DD, which means the end
// of that day in UTC.
func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d.Add(24*time.Hour - time.Nanosecond), true
	}
	return time.Time{}, false
}

// Borrow handles POST /v1/books/:id/borrow.
func (h *LendingHandler) Borrow(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	bookID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	var req borrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	due, ok := parseDueDate(req.DueDate)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "due_date must be RFC3339 or YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Engine.Borrow(ctx, who, bookID, due)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Return handles POST /v1/books/:id/return.  The body is optional; loan_id
// picks one loan when several are open.
func (h *LendingHandler) Return(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	bookID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	var req returnReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Engine.Return(ctx, who, bookID, req.LoanID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
