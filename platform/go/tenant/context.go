package tenant

import (
	"context"
)

// Status values of a tenant.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusTrial    = "trial"
)

// Space captures the tenant the current session is scoped to.
// Middleware attaches it to the context once the tenant claim has been resolved.
type Space struct {
	ID     string
	Name   string
	Status string
}

// Active reports whether members of the tenant may use the API. Trial tenants count as active.
func (s Space) Active() bool {
	return s.Status != StatusInactive
}

type ctxKey string

const spaceKey ctxKey = "PALMYRA_TENANT_SPACE"

// WithSpace returns a derived context carrying the tenant Space.
func WithSpace(ctx context.Context, space Space) context.Context {
	return context.WithValue(ctx, spaceKey, space)
}

// FromContext extracts the tenant Space and a boolean indicating presence.
func FromContext(ctx context.Context) (Space, bool) {
	v := ctx.Value(spaceKey)
	if v == nil {
		return Space{}, false
	}

	space, ok := v.(Space)
	return space, ok
}
