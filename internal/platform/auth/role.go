package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/resourceaccess/internal/platform/fhir"
)

const (
	RoleAdmin   = "admin"
	RolePatient = "patient"
)

// ErrRoleNotFound is returned by a strategy that has no role for the user.
var ErrRoleNotFound = errors.New("role not found")

// RoleStrategy is one source of a user's role.
type RoleStrategy interface {
	Name() string
	ResolveRole(ctx context.Context, userID string) (string, error)
}

// ClaimsRoleStrategy reads the role from the verified token on ctx:
// app_metadata.role, then user_metadata.role, then the first token role.
type ClaimsRoleStrategy struct{}

func (ClaimsRoleStrategy) Name() string { return "claims" }

func (ClaimsRoleStrategy) ResolveRole(ctx context.Context, userID string) (string, error) {
	claims := ClaimsFromContext(ctx)
	if claims == nil || claims.Subject != userID {
		return "", ErrRoleNotFound
	}
	for _, md := range []map[string]interface{}{claims.AppMetadata, claims.UserMetadata} {
		if role, ok := md["role"].(string); ok && role != "" {
			return role, nil
		}
	}
	if len(claims.Roles) > 0 && claims.Roles[0] != "" {
		return claims.Roles[0], nil
	}
	return "", ErrRoleNotFound
}

// RowQuerier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TableRoleStrategy looks the role up in the role column of a table keyed
// by id, such as users or profiles.
type TableRoleStrategy struct {
	db    RowQuerier
	table string
	query string
}

func NewTableRoleStrategy(db RowQuerier, table string) *TableRoleStrategy {
	return &TableRoleStrategy{
		db:    db,
		table: table,
		query: fmt.Sprintf("SELECT role FROM %s WHERE id = $1", pgx.Identifier{table}.Sanitize()),
	}
}

func (s *TableRoleStrategy) Name() string { return s.table }

func (s *TableRoleStrategy) ResolveRole(ctx context.Context, userID string) (string, error) {
	var role *string
	err := s.db.QueryRow(ctx, s.query, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrRoleNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query %s role: %w", s.table, err)
	}
	if role == nil || *role == "" {
		return "", ErrRoleNotFound
	}
	return *role, nil
}

type RoleResolverConfig struct {
	DefaultRole string
	// Strict makes an unresolved role an authorization error instead of
	// falling back to DefaultRole.
	Strict   bool
	CacheTTL time.Duration
}

// RoleResolver evaluates its strategies in order. The first role found is
// cached per user.
type RoleResolver struct {
	strategies []RoleStrategy
	cfg        RoleResolverConfig
	cache      *ttlcache.Cache[string, string]
	logger     zerolog.Logger
}

func NewRoleResolver(cfg RoleResolverConfig, logger zerolog.Logger, strategies ...RoleStrategy) *RoleResolver {
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = RolePatient
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &RoleResolver{
		strategies: strategies,
		cfg:        cfg,
		cache:      ttlcache.New[string, string](ttlcache.WithTTL[string, string](cfg.CacheTTL)),
		logger:     logger.With().Str("component", "role-resolver").Logger(),
	}
}

func (r *RoleResolver) Resolve(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fhir.NewAuthenticationError("authentication required")
	}
	if item := r.cache.Get(userID); item != nil {
		return item.Value(), nil
	}

	for _, s := range r.strategies {
		role, err := s.ResolveRole(ctx, userID)
		if err == nil {
			r.cache.Set(userID, role, ttlcache.DefaultTTL)
			return role, nil
		}
		if !errors.Is(err, ErrRoleNotFound) {
			r.logger.Warn().Err(err).Str("strategy", s.Name()).Str("user_id", userID).Msg("role strategy failed")
		}
	}

	if r.cfg.Strict {
		return "", fhir.NewAuthorizationError("no role could be resolved for user")
	}
	r.logger.Warn().Str("user_id", userID).Str("role", r.cfg.DefaultRole).Msg("no role resolved, using default")
	return r.cfg.DefaultRole, nil
}

// Start runs the cache's expiry loop, dropping roles whose TTL has passed.
// It blocks until Stop is called.
func (r *RoleResolver) Start() {
	r.cache.Start()
}

// Stop ends the loop begun by Start. It must only be called while Start is
// running.
func (r *RoleResolver) Stop() {
	r.cache.Stop()
}

// Invalidate drops the cached role for userID.
func (r *RoleResolver) Invalidate(userID string) {
	r.cache.Delete(userID)
}

// ResolveRoleMiddleware resolves the authenticated user's role and stores
// it on the request context. Anonymous requests pass through unchanged.
func ResolveRoleMiddleware(r *RoleResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID := UserIDFromContext(ctx)
			if userID == "" || RoleFromContext(ctx) != "" {
				return next(c)
			}
			role, err := r.Resolve(ctx, userID)
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(WithRole(ctx, role)))
			return next(c)
		}
	}
}
