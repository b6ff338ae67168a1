package medication

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
	svc   *RequestService
	audit auditevent.ActionLogger
	perms auth.PermissionChecker
}

func NewHandler(svc *RequestService, audit auditevent.ActionLogger, perms auth.PermissionChecker) *Handler {
	return &Handler{svc: svc, audit: audit, perms: perms}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := auth.RequirePermission(h.perms, fhirmodels.ResourceMedicationRequest, auditevent.PermissionRead)
	write := auth.RequirePermission(h.perms, fhirmodels.ResourceMedicationRequest, auditevent.PermissionWrite)

	api.POST("/medication-requests", h.SaveRequest, write)
	api.GET("/medication-requests/:id", h.GetRequest, read)
	api.GET("/medication-requests/:id/summary", h.GetRequestSummary, read)
	api.GET("/patients/:patientId/medication-requests", h.ListPatientRequests, read)

	fhirGroup.GET("/MedicationRequest/:id", h.GetRequest, read)
	fhirGroup.GET("/MedicationRequest", h.SearchRequestsFHIR, read)
	fhirGroup.PUT("/MedicationRequest/:id", h.UpdateRequestFHIR, write)
}

func (h *Handler) SaveRequest(c echo.Context) error {
	req := fhirmodels.NewMedicationRequest()
	if err := fhir.BindResource(c, req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	saved, err := h.svc.SaveMedicationRequest(ctx, req, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, saved)
}

func (h *Handler) UpdateRequestFHIR(c echo.Context) error {
	req := fhirmodels.NewMedicationRequest()
	if err := fhir.BindResource(c, req); err != nil {
		return err
	}
	if req.ID != "" && req.ID != c.Param("id") {
		return fhir.NewValidationError("resource id does not match URL", nil)
	}
	req.ID = c.Param("id")
	ctx := c.Request().Context()
	saved, err := h.svc.SaveMedicationRequest(ctx, req, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, saved)
}

func (h *Handler) loadRequest(c echo.Context) (*fhirmodels.MedicationRequest, error) {
	ctx := c.Request().Context()
	id := c.Param("id")
	req, err := h.svc.GetMedicationRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fhir.NewNotFoundError(fhirmodels.FormatReference(fhirmodels.ResourceMedicationRequest, id) + " not found")
	}
	h.audit.LogAction(ctx, auth.UserIDFromContext(ctx), fhirmodels.AuditRead, fhirmodels.ResourceMedicationRequest, id, nil)
	return req, nil
}

func (h *Handler) GetRequest(c echo.Context) error {
	req, err := h.loadRequest(c)
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, req)
}

type requestSummary struct {
	ID         string   `json:"id"`
	Medication string   `json:"medication"`
	Status     string   `json:"status"`
	Intent     string   `json:"intent"`
	AuthoredOn string   `json:"authored_on,omitempty"`
	Dosage     []string `json:"dosage,omitempty"`
	Refills    *int     `json:"refills,omitempty"`
}

func (h *Handler) GetRequestSummary(c echo.Context) error {
	req, err := h.loadRequest(c)
	if err != nil {
		return err
	}
	sum := requestSummary{
		ID:         req.ID,
		Medication: req.Medication().Label(),
		Status:     fhirmodels.MedicationRequestStatusDisplay(req.Status),
		Intent:     req.Intent,
	}
	if sum.Medication == "" && req.MedicationReference != nil {
		sum.Medication = req.MedicationReference.Reference
	}
	if d := req.AuthoredDate(); d != nil {
		sum.AuthoredOn = d.Format("2006-01-02")
	}
	for _, d := range req.DosageInstruction {
		if d.Text != "" {
			sum.Dosage = append(sum.Dosage, d.Text)
		}
	}
	if req.DispenseRequest != nil {
		sum.Refills = req.DispenseRequest.NumberOfRepeatsAllowed
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) listForPatient(c echo.Context, patientID string) ([]*fhirmodels.MedicationRequest, error) {
	ctx := c.Request().Context()
	items, err := h.svc.GetMedicationRequestsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	h.audit.LogAction(ctx, auth.UserIDFromContext(ctx), fhirmodels.AuditSearch, fhirmodels.ResourcePatient, patientID,
		map[string]interface{}{"resource_type": fhirmodels.ResourceMedicationRequest, "count": len(items)})
	return items, nil
}

func (h *Handler) ListPatientRequests(c echo.Context) error {
	items, err := h.listForPatient(c, c.Param("patientId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SearchRequestsFHIR(c echo.Context) error {
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
