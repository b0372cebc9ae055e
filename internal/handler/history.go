package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/lending"
)

// HistoryHandler serves borrowing history.
type HistoryHandler struct {
	History *lending.History
}

func NewHistoryHandler(h *lending.History) *HistoryHandler {
	return &HistoryHandler{History: h}
}

// User handles GET /v1/history/users/:id.
func (h *HistoryHandler) User(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	userID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	loans, err := h.History.UserHistory(ctx, who, userID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": userID, "count": len(loans), "loans": loans})
}

// Book handles GET /v1/history/books/:id.
func (h *HistoryHandler) Book(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	bookID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hist, err := h.History.BookHistory(ctx, who, bookID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, hist)
}
