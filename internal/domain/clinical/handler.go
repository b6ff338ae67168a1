package clinical

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/resourceaccess/internal/domain/auditevent"
	"github.com/ehr/resourceaccess/internal/platform/auth"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
	"github.com/ehr/resourceaccess/pkg/pagination"
)

type Handler struct {
	conditions   *ConditionService
	observations *ObservationService
	audit        auditevent.ActionLogger
	perms        auth.PermissionChecker
}

func NewHandler(conditions *ConditionService, observations *ObservationService, audit auditevent.ActionLogger, perms auth.PermissionChecker) *Handler {
	return &Handler{conditions: conditions, observations: observations, audit: audit, perms: perms}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	condRead := auth.RequirePermission(h.perms, fhirmodels.ResourceCondition, auditevent.PermissionRead)
	condWrite := auth.RequirePermission(h.perms, fhirmodels.ResourceCondition, auditevent.PermissionWrite)
	obsRead := auth.RequirePermission(h.perms, fhirmodels.ResourceObservation, auditevent.PermissionRead)
	obsWrite := auth.RequirePermission(h.perms, fhirmodels.ResourceObservation, auditevent.PermissionWrite)

	api.POST("/conditions", h.SaveCondition, condWrite)
	api.GET("/conditions/:id", h.GetCondition, condRead)
	api.GET("/conditions/:id/summary", h.GetConditionSummary, condRead)
	api.GET("/patients/:patientId/conditions", h.ListPatientConditions, condRead)

	api.POST("/observations", h.SaveObservation, obsWrite)
	api.GET("/observations/:id", h.GetObservation, obsRead)
	api.GET("/observations/:id/summary", h.GetObservationSummary, obsRead)
	api.GET("/patients/:patientId/observations", h.ListPatientObservations, obsRead)

	fhirGroup.GET("/Condition/:id", h.GetCondition, condRead)
	fhirGroup.GET("/Condition", h.SearchConditionsFHIR, condRead)
	fhirGroup.PUT("/Condition/:id", h.UpdateConditionFHIR, condWrite)
	fhirGroup.GET("/Observation/:id", h.GetObservation, obsRead)
	fhirGroup.GET("/Observation", h.SearchObservationsFHIR, obsRead)
	fhirGroup.PUT("/Observation/:id", h.UpdateObservationFHIR, obsWrite)
}

// auditRead records a sensitive read by the current user.
func (h *Handler) auditRead(ctx context.Context, resourceType, id string) {
	h.audit.LogAction(ctx, auth.UserIDFromContext(ctx), fhirmodels.AuditRead, resourceType, id, nil)
}

func (h *Handler) auditSearch(ctx context.Context, resourceType, patientID string, count int) {
	h.audit.LogAction(ctx, auth.UserIDFromContext(ctx), fhirmodels.AuditSearch, fhirmodels.ResourcePatient, patientID,
		map[string]interface{}{"resource_type": resourceType, "count": count})
}

// -- Condition Handlers --

func (h *Handler) SaveCondition(c echo.Context) error {
	cond := fhirmodels.NewCondition()
	if err := fhir.BindResource(c, cond); err != nil {
		return err
	}
	ctx := c.Request().Context()
	saved, err := h.conditions.SaveCondition(ctx, cond, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, saved)
}

func (h *Handler) UpdateConditionFHIR(c echo.Context) error {
	cond := fhirmodels.NewCondition()
	if err := fhir.BindResource(c, cond); err != nil {
		return err
	}
	if cond.ID != "" && cond.ID != c.Param("id") {
		return fhir.NewValidationError("resource id does not match URL", nil)
	}
	cond.ID = c.Param("id")
	ctx := c.Request().Context()
	saved, err := h.conditions.SaveCondition(ctx, cond, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, saved)
}

func (h *Handler) loadCondition(c echo.Context) (*fhirmodels.Condition, error) {
	ctx := c.Request().Context()
	id := c.Param("id")
	cond, err := h.conditions.GetConditionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cond == nil {
		return nil, fhir.NewNotFoundError(fhirmodels.FormatReference(fhirmodels.ResourceCondition, id) + " not found")
	}
	h.auditRead(ctx, fhirmodels.ResourceCondition, id)
	return cond, nil
}

func (h *Handler) GetCondition(c echo.Context) error {
	cond, err := h.loadCondition(c)
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, cond)
}

type conditionSummary struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Status  string `json:"status"`
	Onset   string `json:"onset,omitempty"`
	Patient string `json:"patient_id"`
}

func (h *Handler) GetConditionSummary(c echo.Context) error {
	cond, err := h.loadCondition(c)
	if err != nil {
		return err
	}
	sum := conditionSummary{
		ID:      cond.ID,
		Code:    cond.Code.Label(),
		Status:  fhirmodels.ConditionStatusDisplay(cond),
		Patient: fhirmodels.PatientIDFromSubject(cond.Subject),
	}
	if d := cond.OnsetDate(); d != nil {
		sum.Onset = d.Format("2006-01-02")
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) ListPatientConditions(c echo.Context) error {
	ctx := c.Request().Context()
	patientID := c.Param("patientId")
	items, err := h.conditions.GetConditionsByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	h.auditSearch(ctx, fhirmodels.ResourceCondition, patientID, len(items))
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SearchConditionsFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	patientID := patientParam(c)
	items, err := h.conditions.GetConditionsByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	h.auditSearch(ctx, fhirmodels.ResourceCondition, patientID, len(items))
	resources := make([]interface{}, len(items))
	for i, item := range items {
		resources[i] = item
	}
	return fhir.WriteResource(c, http.StatusOK, fhir.NewPagedSearchBundle(resources, pagination.FromContext(c), "/fhir", c.Request().URL.Path, c.QueryParams()))
}

// -- Observation Handlers --

func (h *Handler) SaveObservation(c echo.Context) error {
	obs := fhirmodels.NewObservation()
	if err := fhir.BindResource(c, obs); err != nil {
		return err
	}
	ctx := c.Request().Context()
	saved, err := h.observations.SaveObservation(ctx, obs, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, saved)
}

func (h *Handler) UpdateObservationFHIR(c echo.Context) error {
	obs := fhirmodels.NewObservation()
	if err := fhir.BindResource(c, obs); err != nil {
		return err
	}
	if obs.ID != "" && obs.ID != c.Param("id") {
		return fhir.NewValidationError("resource id does not match URL", nil)
	}
	obs.ID = c.Param("id")
	ctx := c.Request().Context()
	saved, err := h.observations.SaveObservation(ctx, obs, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, saved)
}

func (h *Handler) loadObservation(c echo.Context) (*fhirmodels.Observation, error) {
	ctx := c.Request().Context()
	id := c.Param("id")
	obs, err := h.observations.GetObservationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, fhir.NewNotFoundError(fhirmodels.FormatReference(fhirmodels.ResourceObservation, id) + " not found")
	}
	h.auditRead(ctx, fhirmodels.ResourceObservation, id)
	return obs, nil
}

func (h *Handler) GetObservation(c echo.Context) error {
	obs, err := h.loadObservation(c)
	if err != nil {
		return err
	}
	return fhir.WriteResource(c, http.StatusOK, obs)
}

type observationSummary struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Value    string `json:"value"`
	Date     string `json:"date"`
	Abnormal bool   `json:"abnormal"`
	Status   string `json:"status"`
}

func (h *Handler) GetObservationSummary(c echo.Context) error {
	obs, err := h.loadObservation(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, observationSummary{
		ID:       obs.ID,
		Code:     obs.Code.Label(),
		Value:    fhirmodels.FormatObservationValue(obs),
		Date:     fhirmodels.ObservationDate(obs),
		Abnormal: fhirmodels.IsAbnormalObservation(obs),
		Status:   obs.Status,
	})
}

func (h *Handler) ListPatientObservations(c echo.Context) error {
	ctx := c.Request().Context()
	patientID := c.Param("patientId")
	items, err := h.observations.GetObservationsByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	h.auditSearch(ctx, fhirmodels.ResourceObservation, patientID, len(items))
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SearchObservationsFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	patientID := patientParam(c)
	items, err := h.observations.GetObservationsByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	h.auditSearch(ctx, fhirmodels.ResourceObservation, patientID, len(items))
	resources := make([]interface{}, len(items))
	for i, item := range items {
		resources[i] = item
	}
	return fhir.WriteResource(c, http.StatusOK, fhir.NewPagedSearchBundle(resources, pagination.FromContext(c), "/fhir", c.Request().URL.Path, c.QueryParams()))
}

// patientParam reads ?patient= (or ?subject=) and accepts either a bare id
// or a Patient/<id> reference.
func patientParam(c echo.Context) string {
	v := c.QueryParam("patient")
	if v == "" {
		v = c.QueryParam("subject")
	}
	if id := fhirmodels.PatientIDFromSubject(fhirmodels.Reference{Reference: v}); id != "" {
		return id
	}
	return v
}
