package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/resourceaccess/internal/platform/fhir"
)

type stubStrategy struct {
	name  string
	role  string
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) ResolveRole(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.role, s.err
}

func TestRoleResolver_FirstSuccessWins(t *testing.T) {
	claims := &stubStrategy{name: "claims", err: ErrRoleNotFound}
	users := &stubStrategy{name: "users", role: "physician"}
	profiles := &stubStrategy{name: "profiles", role: "nurse"}
	r := NewRoleResolver(RoleResolverConfig{}, zerolog.Nop(), claims, users, profiles)

	role, err := r.Resolve(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != "physician" {
		t.Errorf("role = %q, want physician", role)
	}
	if profiles.calls != 0 {
		t.Error("later strategies must not run after a success")
	}
}

func TestRoleResolver_ErrorsFallThrough(t *testing.T) {
	users := &stubStrategy{name: "users", err: errors.New("relation does not exist")}
	profiles := &stubStrategy{name: "profiles", role: "nurse"}
	r := NewRoleResolver(RoleResolverConfig{}, zerolog.Nop(), users, profiles)

	role, err := r.Resolve(context.Background(), "u1")
	if err != nil || role != "nurse" {
		t.Errorf("Resolve = %q, %v", role, err)
	}
}

func TestRoleResolver_Cached(t *testing.T) {
	users := &stubStrategy{name: "users", role: "physician"}
	r := NewRoleResolver(RoleResolverConfig{}, zerolog.Nop(), users)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "u1"); err != nil {
			t.Fatal(err)
		}
	}
	if users.calls != 1 {
		t.Errorf("strategy called %d times, want 1", users.calls)
	}
	r.Invalidate("u1")
	_, _ = r.Resolve(context.Background(), "u1")
	if users.calls != 2 {
		t.Errorf("after invalidate strategy called %d times, want 2", users.calls)
	}
}

func TestRoleResolver_StartEvictsExpiredRoles(t *testing.T) {
	users := &stubStrategy{name: "users", role: "physician"}
	r := NewRoleResolver(RoleResolverConfig{CacheTTL: 20 * time.Millisecond}, zerolog.Nop(), users)

	done := make(chan struct{})
	go func() {
		r.Start()
		close(done)
	}()

	for _, id := range []string{"u1", "u2", "u3"} {
		if _, err := r.Resolve(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.cache.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := r.cache.Len(); n != 0 {
		t.Errorf("cache still holds %d roles after their TTL", n)
	}

	r.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestRoleResolver_Default(t *testing.T) {
	none := &stubStrategy{name: "users", err: ErrRoleNotFound}
	r := NewRoleResolver(RoleResolverConfig{DefaultRole: "guest"}, zerolog.Nop(), none)
	role, err := r.Resolve(context.Background(), "u1")
	if err != nil || role != "guest" {
		t.Errorf("Resolve = %q, %v", role, err)
	}

	r = NewRoleResolver(RoleResolverConfig{}, zerolog.Nop())
	if role, _ := r.Resolve(context.Background(), "u1"); role != RolePatient {
		t.Errorf("default role = %q, want %q", role, RolePatient)
	}
}

func TestRoleResolver_Strict(t *testing.T) {
	none := &stubStrategy{name: "users", err: errors.New("boom")}
	r := NewRoleResolver(RoleResolverConfig{Strict: true}, zerolog.Nop(), none)
	_, err := r.Resolve(context.Background(), "u1")
	if !fhir.IsAuthorization(err) {
		t.Errorf("expected authorization error, got %v", err)
	}
}

func TestRoleResolver_AnonymousRejected(t *testing.T) {
	r := NewRoleResolver(RoleResolverConfig{}, zerolog.Nop())
	if _, err := r.Resolve(context.Background(), ""); fhir.StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestClaimsRoleStrategy(t *testing.T) {
	s := ClaimsRoleStrategy{}
	tests := []struct {
		name   string
		claims *Claims
		user   string
		want   string
		err    error
	}{
		{"no claims", nil, "u1", "", ErrRoleNotFound},
		{"app metadata", &Claims{AppMetadata: map[string]interface{}{"role": "admin"}, UserMetadata: map[string]interface{}{"role": "nurse"}}, "u1", "admin", nil},
		{"user metadata", &Claims{UserMetadata: map[string]interface{}{"role": "nurse"}}, "u1", "nurse", nil},
		{"token roles", &Claims{Roles: []string{"physician", "nurse"}}, "u1", "physician", nil},
		{"other subject", &Claims{Roles: []string{"admin"}}, "u2", "", ErrRoleNotFound},
		{"nothing", &Claims{}, "u1", "", ErrRoleNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.claims != nil {
				tt.claims.Subject = "u1"
				ctx = WithClaims(ctx, tt.claims)
			}
			got, err := s.ResolveRole(ctx, tt.user)
			if !errors.Is(err, tt.err) || got != tt.want {
				t.Errorf("ResolveRole = %q, %v; want %q, %v", got, err, tt.want, tt.err)
			}
		})
	}
}

type fakeRow struct {
	role *string
	err  error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(**string)) = r.role
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	query string
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...interface{}) pgx.Row {
	q.query = sql
	return q.row
}

func TestTableRoleStrategy(t *testing.T) {
	nurse := "nurse"
	empty := ""
	tests := []struct {
		name    string
		row     fakeRow
		want    string
		notFind bool
		fails   bool
	}{
		{"found", fakeRow{role: &nurse}, "nurse", false, false},
		{"no rows", fakeRow{err: pgx.ErrNoRows}, "", true, false},
		{"null role", fakeRow{}, "", true, false},
		{"empty role", fakeRow{role: &empty}, "", true, false},
		{"query error", fakeRow{err: errors.New("boom")}, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{row: tt.row}
			s := NewTableRoleStrategy(q, "profiles")
			got, err := s.ResolveRole(context.Background(), "u1")
			if got != tt.want {
				t.Errorf("role = %q, want %q", got, tt.want)
			}
			if errors.Is(err, ErrRoleNotFound) != tt.notFind {
				t.Errorf("err = %v, not-found expected %v", err, tt.notFind)
			}
			if tt.fails && (err == nil || errors.Is(err, ErrRoleNotFound)) {
				t.Errorf("expected query failure, got %v", err)
			}
			if q.query != `SELECT role FROM "profiles" WHERE id = $1` {
				t.Errorf("query = %s", q.query)
			}
		})
	}
	if NewTableRoleStrategy(&fakeQuerier{}, "users").Name() != "users" {
		t.Error("strategy should be named after its table")
	}
}

func TestResolveRoleMiddleware(t *testing.T) {
	r := NewRoleResolver(RoleResolverConfig{}, zerolog.Nop(), &stubStrategy{name: "users", role: "nurse"})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), "u1"))
	c := e.NewContext(req, httptest.NewRecorder())

	var role string
	err := ResolveRoleMiddleware(r)(func(c echo.Context) error {
		role = RoleFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil || role != "nurse" {
		t.Errorf("role = %q, err = %v", role, err)
	}
}
