package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/resourceaccess/internal/platform/auth"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}
	_ = RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/conditions/c1", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "u1"))
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "rid-1")

	_ = Logger(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["level"] != "info" || line["request_id"] != "rid-1" || line["user_id"] != "u1" {
		t.Errorf("unexpected log line: %v", line)
	}
	if line["status"] != float64(200) || line["path"] != "/api/v1/conditions/c1" {
		t.Errorf("unexpected log line: %v", line)
	}
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		err   error
		level string
	}{
		{fhir.NewNotFoundError("missing"), "warn"},
		{fhir.Wrap(errors.New("db"), 0, "boom"), "error"},
		{echo.NewHTTPError(http.StatusMethodNotAllowed), "warn"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		_ = Logger(zerolog.New(&buf))(func(echo.Context) error { return tt.err })(c)
		if !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
			t.Errorf("%v: expected level %s, got %s", tt.err, tt.level, buf.String())
		}
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := Recovery(zerolog.New(&buf))(func(echo.Context) error {
		panic("kaboom")
	})(c)

	if fhir.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", err)
	}
	if !strings.Contains(buf.String(), "kaboom") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "fine")
	})(c)
	if err != nil || rec.Code != http.StatusOK {
		t.Errorf("err=%v code=%d", err, rec.Code)
	}
}

func TestErrorHandler_RendersOutcome(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		diag   string
	}{
		{"validation", fhir.NewValidationError("code is required", nil), 400, fhir.IssueTypeInvalid, "code is required"},
		{"validation issues", fhir.NewValidationError("invalid", []string{"a", "b"}), 400, fhir.IssueTypeInvalid, "a"},
		{"unauthenticated", fhir.NewAuthenticationError("missing token"), 401, fhir.IssueTypeLogin, "missing token"},
		{"forbidden", fhir.NewAuthorizationError("denied"), 403, fhir.IssueTypeForbidden, "denied"},
		{"not found", fhir.NewNotFoundError("Condition/x not found"), 404, fhir.IssueTypeNotFound, "Condition/x not found"},
		{"echo route", echo.ErrNotFound, 404, fhir.IssueTypeNotFound, "Not Found"},
		{"untyped", errors.New("password=hunter2"), 500, fhir.IssueTypeException, "internal error"},
		{"bad gateway", fhir.Wrap(errors.New("dial tcp"), 502, "upstream unavailable"), 502, fhir.IssueTypeException, "upstream unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get(echo.HeaderContentType); ct != fhir.FHIRMediaType {
				t.Errorf("content type = %q", ct)
			}
			var oo fhir.OperationOutcome
			if err := json.Unmarshal(rec.Body.Bytes(), &oo); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if oo.ResourceType != "OperationOutcome" || len(oo.Issue) == 0 {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
			if oo.Issue[0].Code != tt.code || oo.Issue[0].Diagnostics != tt.diag {
				t.Errorf("issue = %+v", oo.Issue[0])
			}
			if strings.Contains(rec.Body.String(), "hunter2") {
				t.Error("internal cause leaked to client")
			}
		})
	}
}
