package rbac

import (
	"context"
	"strings"
)

// Checker answers "may this role do this?" against a role-permission table.
// The zero table means the built-in learner/staff/admin rules.
type Checker struct {
	perms map[string][]string
}

func NewChecker(perms map[string][]string) *Checker {
	if perms == nil {
		perms = RolePermissions
	}
	return &Checker{perms: perms}
}

// Allows reports whether role holds perm. "*" grants everything and a
// trailing "*" in a granted permission matches by prefix, so "grade:*"
// covers both grade:view-own and grade:view-all.
func (c *Checker) Allows(role, perm string) bool {
	for _, granted := range c.perms[role] {
		if match(granted, perm) {
			return true
		}
	}
	return false
}

// AllowsAny reports whether role holds at least one of perms.
func (c *Checker) AllowsAny(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Allows(role, p) {
			return true
		}
	}
	return false
}

func match(granted, perm string) bool {
	if granted == "*" || granted == perm {
		return true
	}
	if strings.HasSuffix(granted, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(granted, "*"))
	}
	return false
}

// ---- role in context ----

type ctxKey struct{}

var ctxKeyRole = ctxKey{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyRole); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
