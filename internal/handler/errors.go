package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/lending"
	"github.com/iliyamo/library-lending/internal/middleware"
	"github.com/iliyamo/library-lending/internal/model"
)

var errBadID = errors.New("invalid id")

// statusOf maps a lending error to its HTTP status.
func statusOf(err error) int {
	switch lending.CategoryOf(err) {
	case lending.CategoryNone:
		return http.StatusOK
	case lending.CategoryNotFound:
		return http.StatusNotFound
	case lending.CategoryConflict:
		return http.StatusConflict
	case lending.CategoryForbidden:
		return http.StatusForbidden
	case lending.CategoryBadInput:
		return http.StatusBadRequest
	case lending.CategoryUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondErr writes err as {"error": ...}.  Storage and internal failures
// are reported without the driver detail, which goes to the log instead.
func respondErr(c echo.Context, err error) error {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		c.Logger().Errorf("storage failure: %v", err)
		msg = "service temporarily unavailable"
	case http.StatusInternalServerError:
		c.Logger().Errorf("internal failure: %v", err)
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errBadID
	}
	return id, nil
}

// caller returns the identity resolved by JWTAuth.
func caller(c echo.Context) (model.Caller, bool) {
	return middleware.CallerFrom(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
