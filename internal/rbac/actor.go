// ABOUTME: Actor identity passed explicitly to gated operations
// ABOUTME: Provides WithActor/FromContext for carrying the actor through a request

package rbac

import "context"

// Actor is the authenticated admin performing an operation.
type Actor struct {
	ID          string
	Username    string
	Email       string
	Role        Role
	Permissions []string // custom grants on top of the role
}

// Can reports whether the actor holds perm through its role or custom grants.
func (a *Actor) Can(perm string) bool {
	if a == nil {
		return false
	}
	return HasPermission(a.Role, perm, a.Permissions...)
}

// Effective returns the actor's full permission set.
func (a *Actor) Effective() PermissionSet {
	if a == nil {
		return PermissionSet{}
	}
	return Effective(a.Role, a.Permissions)
}

type actorContextKey struct{}

// WithActor returns a new context carrying the actor.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext returns the actor stored in ctx, or nil.
func FromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
