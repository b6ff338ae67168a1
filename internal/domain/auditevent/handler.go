package auditevent

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/resourceaccess/internal/platform/auth"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
	"github.com/ehr/resourceaccess/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := auth.RequirePermission(h.svc, fhirmodels.ResourceAuditEvent, PermissionRead)

	api.GET("/audit-logs/users/:userId", h.ListUserAuditLogs, read)
	api.GET("/audit-logs/:type/:id", h.ListResourceAuditLogs, read)
	api.GET("/permissions/check", h.CheckPermission)

	admin := auth.RequireRole(auth.RoleAdmin)
	api.GET("/permissions/users/:userId", h.ListPermissions, admin)
	api.POST("/permissions", h.GrantPermission, admin)
	api.DELETE("/permissions", h.RevokePermission, admin)

	fhirGroup.GET("/AuditEvent", h.SearchAuditEventsFHIR, read)
}

func (h *Handler) ListResourceAuditLogs(c echo.Context) error {
	items, err := h.svc.GetAuditLogs(c.Request().Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) ListUserAuditLogs(c echo.Context) error {
	items, err := h.svc.GetAuditLogsByUser(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

// CheckPermission answers for the caller unless user_id names someone else,
// which only admins may ask about.
func (h *Handler) CheckPermission(c echo.Context) error {
	ctx := c.Request().Context()
	caller := auth.UserIDFromContext(ctx)
	if caller == "" {
		return fhir.NewAuthenticationError("authentication required")
	}
	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = caller
	}
	if userID != caller && auth.RoleFromContext(ctx) != auth.RoleAdmin {
		return fhir.NewAuthorizationError("only admins may check other users' permissions")
	}
	resourceType := c.QueryParam("resource_type")
	permission := c.QueryParam("permission")
	if resourceType == "" || permission == "" {
		return fhir.NewValidationError("resource_type and permission are required", nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"resource_type": resourceType,
		"permission":    permission,
		"allowed":       h.svc.HasPermission(ctx, userID, resourceType, permission),
	})
}

func (h *Handler) ListPermissions(c echo.Context) error {
	items, err := h.svc.ListPermissions(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*PermissionGrant{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GrantPermission(c echo.Context) error {
	var g PermissionGrant
	if err := c.Bind(&g); err != nil {
		return fhir.NewValidationError("invalid request body", nil)
	}
	ctx := c.Request().Context()
	if err := h.svc.GrantPermission(ctx, &g); err != nil {
		return err
	}
	h.svc.LogAction(ctx, auth.UserIDFromContext(ctx), fhirmodels.AuditCreate, "PermissionGrant", g.UserID,
		map[string]interface{}{"resource_type": g.ResourceType, "permission": g.Permission})
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) RevokePermission(c echo.Context) error {
	var g PermissionGrant
	if err := c.Bind(&g); err != nil {
		return fhir.NewValidationError("invalid request body", nil)
	}
	ctx := c.Request().Context()
	if err := h.svc.RevokePermission(ctx, &g); err != nil {
		return err
	}
	h.svc.LogAction(ctx, auth.UserIDFromContext(ctx), fhirmodels.AuditDelete, "PermissionGrant", g.UserID,
		map[string]interface{}{"resource_type": g.ResourceType, "permission": g.Permission})
	return c.NoContent(http.StatusNoContent)
}

// SearchAuditEventsFHIR serves GET /fhir/AuditEvent?entity-type=&entity-id=
// or ?agent=<userId>.
func (h *Handler) SearchAuditEventsFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		items []*AuditLog
		err   error
	)
	switch {
	case c.QueryParam("agent") != "":
		items, err = h.svc.GetAuditLogsByUser(ctx, c.QueryParam("agent"))
	case c.QueryParam("entity-type") != "" || c.QueryParam("entity-id") != "":
		items, err = h.svc.GetAuditLogs(ctx, c.QueryParam("entity-type"), c.QueryParam("entity-id"))
	default:
		return fhir.NewValidationError("entity-type and entity-id, or agent, are required", nil)
	}
	if err != nil {
		return err
	}
	resources := make([]interface{}, len(items))
	for i, item := range items {
		resources[i] = item.ToFHIR(h.svc.Source())
	}
	return c.JSON(http.StatusOK, fhir.NewPagedSearchBundle(resources, pagination.FromContext(c), "/fhir", c.Request().URL.Path, c.QueryParams()))
}

func nonNil(items []*AuditLog) []*AuditLog {
	if items == nil {
		return []*AuditLog{}
	}
	return items
}
