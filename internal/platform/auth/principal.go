package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const principalKey contextKey = "principal"

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleDoctor Role = "DOCTOR"
)

// Principal is the authenticated caller. DoctorID is set only for doctors.
type Principal struct {
	UserID   string
	Role     Role
	DoctorID uuid.UUID
	TenantID string
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// Owns reports whether the caller may act on doctorID's data.
func (p *Principal) Owns(doctorID uuid.UUID) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	return p.Role == RoleDoctor && p.DoctorID != uuid.Nil && p.DoctorID == doctorID
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

func UserIDFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return ""
}
