package diagnostics

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/resourceaccess/internal/domain/auditevent"
	"github.com/ehr/resourceaccess/internal/platform/auth"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
	"github.com/ehr/resourceaccess/pkg/pagination"
)

type Handler struct {
	svc   *ReportService
	audit auditevent.ActionLogger
	perms auth.PermissionChecker
}

func NewHandler(svc *ReportService, audit auditevent.ActionLogger, perms auth.PermissionChecker) *Handler {
	return &Handler{svc: svc, audit: audit, perms: perms}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := auth.RequirePermission(h.perms, fhirmodels.ResourceDiagnosticReport, auditevent.PermissionRead)
	write := auth.RequirePermission(h.perms, fhirmodels.ResourceDiagnosticReport, auditevent.PermissionWrite)

	api.POST("/diagnostic-reports", h.SaveReport, write)
	api.GET("/diagnostic-reports/:id", h.GetReport, read)
	api.GET("/diagnostic-reports/:id/summary", h.GetReportSummary, read)
	api.GET("/patients/:patientId/diagnostic-reports", h.ListPatientReports, read)

	fhirGroup.GET("/DiagnosticReport/:id", h.GetReport, read)
	fhirGroup.GET("/DiagnosticReport", h.SearchReportsFHIR, read)
	fhirGroup.PUT("/DiagnosticReport/:id", h.UpdateReportFHIR, write)
}

func (h *Handler) SaveReport(c echo.Context) error {
	report := fhirmodels.NewDiagnosticReport()
	if err := fhir.BindResource(c, report); err != nil {
		return err
	}
	ctx := c.Request().Context()
	saved, err := h.svc.SaveDiagnosticReport(ctx, report, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, saved)
}

func (h *Handler) UpdateReportFHIR(c echo.Context) error {
	report := fhirmodels.NewDiagnosticReport()
	if err := fhir.BindResource(c, report); err != nil {
		return err
	}
	if report.ID != "" && report.ID != c.Param("id") {
		return fhir.NewValidationError("resource id does not match URL", nil)
	}
	report.ID = c.Param("id")
	ctx := c.Request().Context()
	saved, err := h.svc.SaveDiagnosticReport(ctx, report, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, saved)
}

func (h *Handler) loadReport(c echo.Context) (*fhirmodels.DiagnosticReport, error) {
	ctx := c.Request().Context()
	id := c.Param("id")
	report, err := h.svc.GetDiagnosticReportByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fhir.NewNotFoundError(fhirmodels.FormatReference(fhirmodels.ResourceDiagnosticReport, id) + " not found")
	}
	h.audit.LogAction(ctx, auth.UserIDFromContext(ctx), fhirmodels.AuditRead, fhirmodels.ResourceDiagnosticReport, id, nil)
	return report, nil
}

func (h *Handler) GetReport(c echo.Context) error {
	report, err := h.loadReport(c)
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, report)
}

type reportSummary struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	Conclusion  string `json:"conclusion,omitempty"`
	Results     int    `json:"results"`
	Attachments int    `json:"attachments"`
}

func (h *Handler) GetReportSummary(c echo.Context) error {
	report, err := h.loadReport(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reportSummary{
		ID:          report.ID,
		Code:        report.Code.Label(),
		Status:      fhirmodels.DiagnosticReportStatusDisplay(report.Status),
		Date:        fhirmodels.ReportDate(report),
		Conclusion:  report.Conclusion,
		Results:     len(report.Result),
		Attachments: len(report.PresentedForm),
	})
}

func (h *Handler) listForPatient(c echo.Context, patientID string) ([]*fhirmodels.DiagnosticReport, error) {
	ctx := c.Request().Context()
	items, err := h.svc.GetDiagnosticReportsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	h.audit.LogAction(ctx, auth.UserIDFromContext(ctx), fhirmodels.AuditSearch, fhirmodels.ResourcePatient, patientID,
		map[string]interface{}{"resource_type": fhirmodels.ResourceDiagnosticReport, "count": len(items)})
	return items, nil
}

func (h *Handler) ListPatientReports(c echo.Context) error {
	items, err := h.listForPatient(c, c.Param("patientId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SearchReportsFHIR(c echo.Context) error {
	patientID := c.QueryParam("patient")
	if _, id, err := fhirmodels.ParseReference(patientID); err == nil {
		patientID = id
	}
	items, err := h.listForPatient(c, patientID)
	if err != nil {
		return err
	}
	resources := make([]interface{}, len(items))
	for i, item := range items {
		resources[i] = item
	}
	return fhir.WriteResource(c, http.StatusOK, fhir.NewPagedSearchBundle(resources, pagination.FromContext(c), "/fhir", c.Request().URL.Path, c.QueryParams()))
}
