package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/repository"
)

// UsersHandler serves user administration.  All routes are admin only.
type UsersHandler struct {
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewUsersHandler(u *repository.UserRepo, t *repository.TokenRepo) *UsersHandler {
	return &UsersHandler{Users: u, Tokens: t}
}

type activeReq struct {
	Active *bool `json:"active"`
}

// List handles GET /v1/users.
func (h *UsersHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list users failed"})
	}
	out := make([]userPart, 0, len(users))
	for _, u := range users {
		out = append(out, toUserPart(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "users": out})
}

// SetActive handles PATCH /v1/users/:id/active.  Deactivating a user also
// revokes their refresh tokens.
func (h *UsersHandler) SetActive(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req activeReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SetActive(ctx, id, *req.Active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update user failed"})
	}
	if !*req.Active {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke sessions failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "active": *req.Active})
}

// Delete handles DELETE /v1/users/:id.  A user holding an open loan cannot
// be deleted; past loans keep a tombstone in place of the user.
func (h *UsersHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.Users.Delete(ctx, id); {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "user has books on loan"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete user failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
