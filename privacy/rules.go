package privacy

import (
	"context"
	"slices"
)

// A Viewer is the caller queries are compiled for.
type Viewer interface {
	GetID() string
	GetRoles() []string
}

type viewerKey struct{}

// WithViewer attaches v to ctx for the role rules.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// ViewerFromContext returns the viewer attached by WithViewer, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerKey{}).(Viewer)
	return v
}

// SimpleViewer is a Viewer with a fixed id and role list.
type SimpleViewer struct {
	UserID string
	Roles  []string
}

func (v *SimpleViewer) GetID() string { return v.UserID }
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// ViewerHasRole reports whether the viewer of ctx holds one of roles.
func ViewerHasRole(ctx context.Context, roles ...string) bool {
	v := ViewerFromContext(ctx)
	if v == nil {
		return false
	}
	held := v.GetRoles()
	return slices.ContainsFunc(roles, func(r string) bool {
		return slices.Contains(held, r)
	})
}

// DenyIfNoViewer denies every target of a context without a viewer:
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRoleRead("auditor"),
//	    privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) != nil {
			return Skip
		}
		return Denyf("privacy: viewer required")
	})
}

// HasRole grants Full access to viewers holding role.
func HasRole(role string) Rule { return roleRule(Allow, role) }

// HasAnyRole grants Full access to viewers holding any of roles.
func HasAnyRole(roles ...string) Rule { return roleRule(Allow, roles...) }

// HasRoleRead grants ReadOnly access to viewers holding role.
func HasRoleRead(role string) Rule { return roleRule(AllowRead, role) }

// roleRule returns decision for viewers holding one of roles and skips for
// everyone else, including a missing viewer.
func roleRule(decision error, roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerHasRole(ctx, roles...) {
			return decision
		}
		return Skip
	})
}

// PermissionsRule decides every target from p and never skips, so it
// usually closes a policy.
func PermissionsRule(p Permissions) Rule {
	return RuleFunc(func(_ context.Context, t Target) error {
		switch p.AccessMode(t.Table, t.Column) {
		case Full:
			return Allow
		case ReadOnly:
			return AllowRead
		}
		return Denyf("privacy: no access to %s", t)
	})
}
