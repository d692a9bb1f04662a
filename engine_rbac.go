package authcore

import (
	"context"
	"fmt"
)

// GroupsOf returns the user's group memberships.
func (e *Engine) GroupsOf(ctx context.Context, userID string) ([]Group, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	groups, err := e.resolver.GroupsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return groups, nil
}

// PermissionsOf returns the union of permissions across the user's groups,
// deduplicated and sorted by codename.
func (e *Engine) PermissionsOf(ctx context.Context, userID string) ([]Permission, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	perms, err := e.resolver.PermissionsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return perms, nil
}

// HasPermission reports whether the user holds the permission through any
// group. Membership in the configured super-admin group grants everything.
func (e *Engine) HasPermission(ctx context.Context, userID, codename string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.resolver.HasPermission(ctx, userID, codename)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}
