package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/resourceaccess/internal/domain/auditevent"
	"github.com/ehr/resourceaccess/internal/platform/db"
)

type grantStore struct {
	grants map[string]bool
	inTx   bool
}

func grantKey(g *auditevent.PermissionGrant) string {
	return g.UserID + "|" + g.ResourceType + "|" + g.Permission
}

func (s *grantStore) Exists(_ context.Context, userID, resourceType, permission string) (bool, error) {
	return s.grants[userID+"|"+resourceType+"|"+permission], nil
}

func (s *grantStore) Grant(ctx context.Context, g *auditevent.PermissionGrant) error {
	s.inTx = s.inTx || db.TxFromContext(ctx) != nil
	s.grants[grantKey(g)] = true
	return nil
}

func (s *grantStore) Revoke(ctx context.Context, g *auditevent.PermissionGrant) error {
	s.inTx = s.inTx || db.TxFromContext(ctx) != nil
	delete(s.grants, grantKey(g))
	return nil
}

func (s *grantStore) ListByUser(context.Context, string) ([]*auditevent.PermissionGrant, error) {
	return nil, nil
}

// brokenAuditLog fails every insert, like an audit table that is missing.
type brokenAuditLog struct {
	attempts int
	inTx     bool
}

func (b *brokenAuditLog) Append(ctx context.Context, _ *auditevent.AuditLog) error {
	b.attempts++
	b.inTx = b.inTx || db.TxFromContext(ctx) != nil
	return errors.New(`relation "audit_log" does not exist`)
}

func (b *brokenAuditLog) ListByResource(context.Context, string, string) ([]*auditevent.AuditLog, error) {
	return nil, nil
}

func (b *brokenAuditLog) ListByUser(context.Context, string) ([]*auditevent.AuditLog, error) {
	return nil, nil
}

func TestGrantPermission_SurvivesAuditFailure(t *testing.T) {
	store := &grantStore{grants: map[string]bool{}}
	audits := &brokenAuditLog{}
	svc := auditevent.NewService(audits, store, "test", zerolog.Nop())
	g := grantFromArgs([]string{"u1", "Condition", "read"})

	var out bytes.Buffer
	if err := grantPermission(context.Background(), svc, g, &out); err != nil {
		t.Fatalf("grant should succeed despite the audit failure: %v", err)
	}
	if !svc.HasPermission(context.Background(), "u1", "Condition", "read") {
		t.Error("grant was lost")
	}
	if audits.attempts != 1 {
		t.Errorf("audit attempts = %d, want 1", audits.attempts)
	}
	if store.inTx || audits.inTx {
		t.Error("grant and audit must not share a transaction")
	}
	if !strings.Contains(out.String(), "Granted read on Condition to u1") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRevokePermission_SurvivesAuditFailure(t *testing.T) {
	store := &grantStore{grants: map[string]bool{"u1|Condition|read": true}}
	audits := &brokenAuditLog{}
	svc := auditevent.NewService(audits, store, "test", zerolog.Nop())

	var out bytes.Buffer
	if err := revokePermission(context.Background(), svc, grantFromArgs([]string{"u1", "Condition", "read"}), &out); err != nil {
		t.Fatalf("revoke should succeed despite the audit failure: %v", err)
	}
	if svc.HasPermission(context.Background(), "u1", "Condition", "read") {
		t.Error("revoke was lost")
	}
	if audits.attempts != 1 || store.inTx || audits.inTx {
		t.Errorf("attempts=%d storeInTx=%t auditInTx=%t", audits.attempts, store.inTx, audits.inTx)
	}
}

func TestGrantPermission_Invalid(t *testing.T) {
	store := &grantStore{grants: map[string]bool{}}
	audits := &brokenAuditLog{}
	svc := auditevent.NewService(audits, store, "test", zerolog.Nop())

	var out bytes.Buffer
	if err := grantPermission(context.Background(), svc, grantFromArgs([]string{"u1", "", "read"}), &out); err == nil {
		t.Fatal("expected validation error")
	}
	if audits.attempts != 0 || out.Len() != 0 {
		t.Errorf("a rejected grant must not be audited or reported (attempts=%d out=%q)", audits.attempts, out.String())
	}
}
