package auditevent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// ActionLogger records best-effort audit entries. It has no error return:
// a failed audit write must never fail the operation being audited.
type ActionLogger interface {
	LogAction(ctx context.Context, userID string, action fhirmodels.AuditAction, resourceType, resourceID string, details map[string]interface{})
}

// PermissionChecker answers whether a user holds a permission on a resource
// type. Implementations fail closed.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, resourceType, permission string) bool
}

type Service struct {
	audits      AuditRepository
	permissions PermissionRepository
	logger      zerolog.Logger
	source      string
	now         func() time.Time
}

// NewService builds the audit and permission service. source identifies this
// system as the observer on rendered AuditEvents.
func NewService(audits AuditRepository, permissions PermissionRepository, source string, logger zerolog.Logger) *Service {
	if source == "" {
		source = "resource-server"
	}
	return &Service{
		audits:      audits,
		permissions: permissions,
		logger:      logger.With().Str("component", "audit").Logger(),
		source:      source,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Source() string { return s.source }

// LogAction appends one audit entry. Storage failures are logged and
// dropped.
func (s *Service) LogAction(ctx context.Context, userID string, action fhirmodels.AuditAction, resourceType, resourceID string, details map[string]interface{}) {
	entry := &AuditLog{
		ID:           uuid.New(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		RecordedAt:   s.now(),
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("action", string(action)).
			Str("resource_type", resourceType).
			Str("resource_id", resourceID).
			Msg("audit write failed")
	}
}

// GetAuditLogs returns the entries for one resource, most recent first.
func (s *Service) GetAuditLogs(ctx context.Context, resourceType, resourceID string) ([]*AuditLog, error) {
	if resourceType == "" || resourceID == "" {
		return nil, fhir.NewValidationError("resource type and id are required", nil)
	}
	items, err := s.audits.ListByResource(ctx, resourceType, resourceID)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load audit logs")
	}
	return items, nil
}

// GetAuditLogsByUser returns the entries recorded for userID, most recent
// first.
func (s *Service) GetAuditLogsByUser(ctx context.Context, userID string) ([]*AuditLog, error) {
	if userID == "" {
		return nil, fhir.NewValidationError("user id is required", nil)
	}
	items, err := s.audits.ListByUser(ctx, userID)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load audit logs")
	}
	return items, nil
}

// HasPermission reports whether an exact grant exists. Any storage error
// counts as no permission.
func (s *Service) HasPermission(ctx context.Context, userID, resourceType, permission string) bool {
	if userID == "" {
		return false
	}
	ok, err := s.permissions.Exists(ctx, userID, resourceType, permission)
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("resource_type", resourceType).
			Str("permission", permission).
			Msg("permission check failed, denying")
		return false
	}
	return ok
}

func validateGrant(g *PermissionGrant) error {
	if g.UserID == "" || g.ResourceType == "" || g.Permission == "" {
		return fhir.NewValidationError("user id, resource type and permission are required", nil)
	}
	return nil
}

func (s *Service) GrantPermission(ctx context.Context, g *PermissionGrant) error {
	if err := validateGrant(g); err != nil {
		return err
	}
	if err := s.permissions.Grant(ctx, g); err != nil {
		return fhir.Wrap(err, 0, "failed to grant permission")
	}
	return nil
}

func (s *Service) RevokePermission(ctx context.Context, g *PermissionGrant) error {
	if err := validateGrant(g); err != nil {
		return err
	}
	if err := s.permissions.Revoke(ctx, g); err != nil {
		return fhir.Wrap(err, 0, "failed to revoke permission")
	}
	return nil
}

func (s *Service) ListPermissions(ctx context.Context, userID string) ([]*PermissionGrant, error) {
	if userID == "" {
		return nil, fhir.NewValidationError("user id is required", nil)
	}
	items, err := s.permissions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load permissions")
	}
	return items, nil
}
