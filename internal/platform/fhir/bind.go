package fhir

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
)

const maxResourceBody = 4 << 20

// BindResource decodes a JSON resource body into v. Both application/json
// and application/fhir+json are accepted, which echo's default binder does
// not do. Decode failures are ValidationErrors.
func BindResource(c echo.Context, v interface{}) error {
	body := io.LimitReader(c.Request().Body, maxResourceBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return NewValidationError("request body is empty", nil)
		}
		return NewValidationError(fmt.Sprintf("malformed resource: %v", err), nil)
	}
	return nil
}

// WriteResource renders v with the FHIR media type.
func WriteResource(c echo.Context, status int, v interface{}) error {
	c.Response().Header().Set(echo.HeaderContentType, FHIRMediaType)
	return c.JSON(status, v)
}
