package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/resourceaccess/internal/platform/auth"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

type allowAll struct{}

func (allowAll) HasPermission(context.Context, string, string, string) bool { return true }

func newTestHandler() (*Handler, *ReportService, *recordingLogger) {
	svc, _, audit := newTestService()
	return NewHandler(svc, audit, allowAll{}), svc, audit
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, fhir.FHIRMediaType)
	}
	req = req.WithContext(auth.WithUser(req.Context(), "lab-1"))
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestHandler_SaveReport(t *testing.T) {
	h, _, audit := newTestHandler()
	body := `{
		"resourceType": "DiagnosticReport",
		"status": "preliminary",
		"subject": {"reference": "Patient/p1"},
		"code": {"text": "CBC"},
		"effectiveDateTime": "2024-03-02"
	}`
	c, rec := newContext(http.MethodPost, "/api/v1/diagnostic-reports", body)

	if err := h.SaveReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var saved fhirmodels.DiagnosticReport
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" || saved.Status != "preliminary" {
		t.Errorf("saved = %+v", saved)
	}
	if audit.count() != 1 {
		t.Errorf("expected 1 audit entry, got %d", audit.count())
	}
}

func TestHandler_SaveReport_Malformed(t *testing.T) {
	h, _, _ := newTestHandler()
	c, _ := newContext(http.MethodPost, "/", `{"resourceType":`)
	if err := h.SaveReport(c); !fhir.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_ReportSummary(t *testing.T) {
	h, svc, _ := newTestHandler()
	r := lipidPanel("p1")
	r.EffectiveDateTime = "2024-03-02"
	saved, err := svc.SaveDiagnosticReport(context.Background(), r, "u1")
	if err != nil {
		t.Fatal(err)
	}

	c, rec := newContext(http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(saved.ID)
	if err := h.GetReportSummary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sum reportSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Status != "Final" || sum.Date != "Mar 2, 2024" || sum.Results != 2 || sum.Code != "Lipid panel" {
		t.Errorf("summary = %+v", sum)
	}
}

func TestHandler_GetReport_NotFound(t *testing.T) {
	h, _, audit := newTestHandler()
	c, _ := newContext(http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("nope")
	if err := h.GetReport(c); !fhir.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if audit.count() != 0 {
		t.Error("miss should not be audited")
	}
}

func TestHandler_SearchReportsFHIR(t *testing.T) {
	h, svc, audit := newTestHandler()
	if _, err := svc.SaveDiagnosticReport(context.Background(), lipidPanel("p1"), "u1"); err != nil {
		t.Fatal(err)
	}
	c, rec := newContext(http.MethodGet, "/fhir/DiagnosticReport?patient=Patient/p1", "")
	if err := h.SearchReportsFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if audit.actions[len(audit.actions)-1] != fhirmodels.AuditSearch {
		t.Errorf("last audit = %v", audit.actions)
	}
}
