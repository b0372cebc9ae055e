package utils

import (
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
)

// JSON is the json-iterator configuration shared by HTTP responses and
// broker messages.  It is a drop-in for encoding/json.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONSerializer plugs json-iterator into Echo's c.JSON and c.Bind.
type JSONSerializer struct{}

// Serialize encodes i into the response writer.
func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := JSON.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize decodes the request body into i.
func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := JSON.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err)).SetInternal(err)
	}
	return nil
}
