package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxCaller = "caller"
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the resolved caller in the request context.  Handlers read it
// back with CallerFrom; "user_id" (uint64) and "role" (model.Role) are
// also set for logging and rate-limit keys.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			caller, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(ctxCaller, caller)
			c.Set(ctxUserID, caller.ID)
			c.Set(ctxRole, caller.Role)
			return next(c)
		}
	}
}

// CallerFrom returns the caller stored by JWTAuth.
func CallerFrom(c echo.Context) (model.Caller, bool) {
	caller, ok := c.Get(ctxCaller).(model.Caller)
	return caller, ok
}
