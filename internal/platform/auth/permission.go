package auth

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/ehr/resourceaccess/internal/platform/fhir"
)

// PermissionChecker answers grant lookups. Implementations fail closed.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, resourceType, permission string) bool
}

// RequirePermission admits admins and users holding an explicit grant of
// permission on resourceType.
func RequirePermission(checker PermissionChecker, resourceType, permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				return fhir.NewAuthenticationError("authentication required")
			}
			if RoleFromContext(ctx) == RoleAdmin {
				return next(c)
			}
			if checker.HasPermission(ctx, userID, resourceType, permission) {
				return next(c)
			}
			return fhir.NewAuthorizationError(fmt.Sprintf("%s permission on %s required", permission, resourceType))
		}
	}
}

// RequireRole admits users whose resolved role is one of roles. Admins are
// always admitted.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == RoleAdmin {
				return next(c)
			}
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return fhir.NewAuthorizationError(fmt.Sprintf("role %q may not access this endpoint", role))
		}
	}
}
