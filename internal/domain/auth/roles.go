package auth

import (
	"context"
	"time"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleHR         Role = "hr"
	RoleEmployee   Role = "employee"
)

var Roles = []Role{RoleSuperAdmin, RoleHR, RoleEmployee}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleHR, RoleEmployee:
		return true
	}
	return false
}

// CanApprove reports whether the role may decide on other people's leave.
func (r Role) CanApprove() bool {
	return r == RoleHR || r == RoleSuperAdmin
}

// Principal is the verified caller of a domain operation.
type Principal struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
