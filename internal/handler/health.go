package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// Health reports liveness.  Load balancers poll it.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready additionally pings the database.
func Ready(db *sqlx.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database unreachable"})
		}
		return c.String(http.StatusOK, "ready")
	}
}
