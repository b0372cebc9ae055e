package middleware

// identity.go holds the caller lookups shared by the rate limiter and the
// request logger.  They never fail: anonymous requests get a placeholder.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userKey returns the caller id as a string, or anon when the request is
// not authenticated (yet).
func userKey(c echo.Context) string {
	if caller, ok := CallerFrom(c); ok && caller.ID != 0 {
		return strconv.FormatUint(caller.ID, 10)
	}
	return "anon"
}

// roleName returns the caller role, or guest.
func roleName(c echo.Context) string {
	if caller, ok := CallerFrom(c); ok {
		return caller.Role.String()
	}
	return "guest"
}
