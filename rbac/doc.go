// Package rbac resolves group-based permissions. Permissions are granted only
// via group membership: a user's permission set is the union of all member
// groups' permissions, deduplicated by permission id and sorted by codename
// for deterministic output.
//
// The permission and group tables are owned by an external store and are
// read-only here; callers inject an implementation of [Store].
package rbac
