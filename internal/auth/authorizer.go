package auth

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/metrics"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
)

// Authorizer gates use cases on the permission table. It only reads the context, so
// callers can check before touching the store.
type Authorizer struct {
	engine  *policy.Engine
	metrics *metrics.Metrics
}

func NewAuthorizer(engine *policy.Engine, m *metrics.Metrics) *Authorizer {
	return &Authorizer{engine: engine, metrics: m}
}

// Require returns the principal when it may perform action on resource.
func (a *Authorizer) Require(ctx context.Context, resource string, action policy.Action) (Principal, error) {
	return a.RequireAll(ctx, policy.Permission{Resource: resource, Action: action})
}

// RequireAll fails on the first permission the principal lacks.
func (a *Authorizer) RequireAll(ctx context.Context, perms ...policy.Permission) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, &apperror.AuthenticationError{Reason: "no active session"}
	}

	for _, perm := range perms {
		if !a.engine.HasPermission(p.Role, perm.Resource, perm.Action) {
			a.metrics.ObserveDenial(string(p.Role), perm.Resource, string(perm.Action))
			return Principal{}, &apperror.AuthorizationError{
				Role:     string(p.Role),
				Resource: perm.Resource,
				Action:   string(perm.Action),
			}
		}
	}
	return p, nil
}

// Permissions lists what the current principal may do. Anonymous callers get nothing.
func (a *Authorizer) Permissions(ctx context.Context) []policy.Permission {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil
	}
	return a.engine.Permissions(p.Role)
}

// Check answers without recording denials, for permission checks requested by clients. Anonymous
// callers are checked as the empty role.
func (a *Authorizer) Check(ctx context.Context, perms []policy.Permission, anyOf bool) bool {
	p, _ := PrincipalFromContext(ctx)
	if anyOf {
		return a.engine.HasAny(p.Role, perms...)
	}
	return a.engine.HasAll(p.Role, perms...)
}
