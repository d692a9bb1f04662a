package rbac

import (
	"context"
	"sort"
)

// Permission is one grantable capability, identified by ID and addressed in
// checks by Codename.
type Permission struct {
	ID       string
	Codename string
	Name     string
}

// Group is a named permission bundle. System groups cannot be deleted by
// policy; that rule is enforced by the owning store, not here.
type Group struct {
	ID       string
	Codename string
	Name     string
	IsSystem bool
}

// Store is the read contract onto the external permission database.
type Store interface {
	GroupsOf(ctx context.Context, userID string) ([]Group, error)
	GroupPermissions(ctx context.Context, groupID string) ([]Permission, error)
}

// Resolver aggregates a user's groups into a deduplicated permission set.
// Membership in the designated super-admin group short-circuits every
// permission check to true without touching the permission tables.
type Resolver struct {
	store      Store
	superGroup string
}

// NewResolver returns a resolver over store. superGroup is the codename of
// the super-admin group; empty disables the bypass.
func NewResolver(store Store, superGroup string) *Resolver {
	return &Resolver{store: store, superGroup: superGroup}
}

// GroupsOf returns the user's groups as stored.
func (r *Resolver) GroupsOf(ctx context.Context, userID string) ([]Group, error) {
	return r.store.GroupsOf(ctx, userID)
}

// PermissionsOf returns the union of the user's group permissions,
// deduplicated by permission id and sorted by codename.
func (r *Resolver) PermissionsOf(ctx context.Context, userID string) ([]Permission, error) {
	groups, err := r.store.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var perms []Permission
	for _, g := range groups {
		groupPerms, err := r.store.GroupPermissions(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range groupPerms {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			perms = append(perms, p)
		}
	}

	sort.Slice(perms, func(i, j int) bool { return perms[i].Codename < perms[j].Codename })
	return perms, nil
}

// IsSuperuser reports whether the user belongs to the super-admin group.
func (r *Resolver) IsSuperuser(ctx context.Context, userID string) (bool, error) {
	if r.superGroup == "" {
		return false, nil
	}
	groups, err := r.store.GroupsOf(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if g.Codename == r.superGroup {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission reports whether the user holds the permission codename,
// honoring the super-admin bypass.
func (r *Resolver) HasPermission(ctx context.Context, userID, codename string) (bool, error) {
	if ok, err := r.IsSuperuser(ctx, userID); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	perms, err := r.PermissionsOf(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Codename == codename {
			return true, nil
		}
	}
	return false, nil
}

// Codenames projects permissions onto their codenames, preserving order.
func Codenames(perms []Permission) []string {
	if len(perms) == 0 {
		return nil
	}
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.Codename
	}
	return out
}

// GroupCodenames projects groups onto their codenames, preserving order.
func GroupCodenames(groups []Group) []string {
	if len(groups) == 0 {
		return nil
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Codename
	}
	return out
}
