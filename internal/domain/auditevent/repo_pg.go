package auditevent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/resourceaccess/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type auditRepoPG struct {
	pool *pgxpool.Pool
}

func NewAuditRepoPG(pool *pgxpool.Pool) AuditRepository {
	return &auditRepoPG{pool: pool}
}

func (r *auditRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const auditCols = `id, user_id, action, resource_type, resource_id, details, recorded_at`

func scanAuditLog(row pgx.Row) (*AuditLog, error) {
	var a AuditLog
	var details []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.Action, &a.ResourceType, &a.ResourceID, &details, &a.RecordedAt); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
	}
	return &a, nil
}

func (r *auditRepoPG) Append(ctx context.Context, a *AuditLog) error {
	var details []byte
	if len(a.Details) > 0 {
		var err error
		if details, err = json.Marshal(a.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_log (id, user_id, action, resource_type, resource_id, details, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, string(a.Action), a.ResourceType, a.ResourceID, details, a.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *auditRepoPG) list(ctx context.Context, where string, args ...interface{}) ([]*AuditLog, error) {
	q := fmt.Sprintf("SELECT %s FROM audit_log WHERE %s ORDER BY recorded_at DESC", auditCols, where)
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var items []*AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *auditRepoPG) ListByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditLog, error) {
	return r.list(ctx, "resource_type = $1 AND resource_id = $2", resourceType, resourceID)
}

func (r *auditRepoPG) ListByUser(ctx context.Context, userID string) ([]*AuditLog, error) {
	return r.list(ctx, "user_id = $1", userID)
}

type permissionRepoPG struct {
	pool *pgxpool.Pool
}

func NewPermissionRepoPG(pool *pgxpool.Pool) PermissionRepository {
	return &permissionRepoPG{pool: pool}
}

func (r *permissionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *permissionRepoPG) Exists(ctx context.Context, userID, resourceType, permission string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM permission_grant
			WHERE user_id = $1 AND resource_type = $2 AND permission = $3
		)`, userID, resourceType, permission).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query permission grant: %w", err)
	}
	return exists, nil
}

func (r *permissionRepoPG) Grant(ctx context.Context, g *PermissionGrant) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO permission_grant (user_id, resource_type, permission)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, resource_type, permission) DO NOTHING`,
		g.UserID, g.ResourceType, g.Permission)
	if err != nil {
		return fmt.Errorf("insert permission grant: %w", err)
	}
	return nil
}

func (r *permissionRepoPG) Revoke(ctx context.Context, g *PermissionGrant) error {
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM permission_grant
		WHERE user_id = $1 AND resource_type = $2 AND permission = $3`,
		g.UserID, g.ResourceType, g.Permission)
	if err != nil {
		return fmt.Errorf("delete permission grant: %w", err)
	}
	return nil
}

func (r *permissionRepoPG) ListByUser(ctx context.Context, userID string) ([]*PermissionGrant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT user_id, resource_type, permission FROM permission_grant
		WHERE user_id = $1 ORDER BY resource_type, permission`, userID)
	if err != nil {
		return nil, fmt.Errorf("query permission grants: %w", err)
	}
	defer rows.Close()

	var items []*PermissionGrant
	for rows.Next() {
		var g PermissionGrant
		if err := rows.Scan(&g.UserID, &g.ResourceType, &g.Permission); err != nil {
			return nil, fmt.Errorf("scan permission grant: %w", err)
		}
		items = append(items, &g)
	}
	return items, rows.Err()
}
