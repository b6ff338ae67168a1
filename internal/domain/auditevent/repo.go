package auditevent

import (
	"context"
)

// AuditRepository stores audit entries. Entries are never updated or
// deleted.
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditLog) error
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditLog, error)
	ListByUser(ctx context.Context, userID string) ([]*AuditLog, error)
}

type PermissionRepository interface {
	Exists(ctx context.Context, userID, resourceType, permission string) (bool, error)
	Grant(ctx context.Context, g *PermissionGrant) error
	Revoke(ctx context.Context, g *PermissionGrant) error
	ListByUser(ctx context.Context, userID string) ([]*PermissionGrant, error)
}
