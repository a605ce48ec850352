package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequireRole rejects callers whose role is not listed. ADMIN always passes.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if p.IsAdmin() {
				return next(c)
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}

// AuthorizeDoctor allows ADMIN, or a DOCTOR acting on their own doctor id.
func AuthorizeDoctor(ctx context.Context, doctorID uuid.UUID) error {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if !p.Owns(doctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to act for this doctor")
	}
	return nil
}

// ResolveDoctor returns the doctor a request is scoped to. Doctors default to
// themselves when raw is empty; admins must name one explicitly unless
// optional is set, in which case uuid.Nil means "all doctors".
func ResolveDoctor(ctx context.Context, raw string, optional bool) (uuid.UUID, error) {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if raw == "" {
		if p.Role == RoleDoctor {
			return p.DoctorID, nil
		}
		if optional {
			return uuid.Nil, nil
		}
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "doctorId is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid doctorId")
	}
	if err := AuthorizeDoctor(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
