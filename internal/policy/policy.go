// Package policy decides whether a role may perform an action on a resource. It is a pure
// function of the role and an immutable permission table built once at startup.
package policy

import (
	"fmt"
	"slices"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Roles lists every role from least to most privileged.
var Roles = []Role{RoleUser, RoleManager, RoleAdmin}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !slices.Contains(Roles, r) {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const (
	ResourceProducts         = "products"
	ResourceCategories       = "categories"
	ResourceInventory        = "inventory"
	ResourceInventoryHistory = "inventory_history"
	ResourceUsers            = "users"
)

type Permission struct {
	Resource string `json:"resource"`
	Action   Action `json:"action"`
}

func (p Permission) String() string {
	return p.Resource + ":" + string(p.Action)
}

// PermissionSet maps each role to its ordered permissions.
type PermissionSet map[Role][]Permission

// Validate checks that every role has permissions and that user ⊆ manager ⊆ admin.
func (ps PermissionSet) Validate() error {
	for _, r := range Roles {
		if len(ps[r]) == 0 {
			return fmt.Errorf("role %s has no permissions", r)
		}
	}
	for i := 1; i < len(Roles); i++ {
		lower, higher := Roles[i-1], Roles[i]
		for _, p := range ps[lower] {
			if !slices.Contains(ps[higher], p) {
				return fmt.Errorf("role %s lacks %s granted to %s", higher, p, lower)
			}
		}
	}
	return nil
}

// Engine answers permission queries. It is safe for concurrent use and never mutated
// after NewEngine returns.
type Engine struct {
	ordered map[Role][]Permission
	granted map[Role]map[Permission]struct{}
}

func NewEngine(ps PermissionSet) (*Engine, error) {
	if err := ps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid permission set: %w", err)
	}

	e := &Engine{
		ordered: make(map[Role][]Permission, len(ps)),
		granted: make(map[Role]map[Permission]struct{}, len(ps)),
	}
	for role, perms := range ps {
		e.ordered[role] = slices.Clone(perms)
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		e.granted[role] = set
	}
	return e, nil
}

// MustNewEngine is NewEngine for tables known to be valid.
func MustNewEngine(ps PermissionSet) *Engine {
	e, err := NewEngine(ps)
	if err != nil {
		panic(err)
	}
	return e
}

// HasPermission is false for an unknown or empty role.
func (e *Engine) HasPermission(role Role, resource string, action Action) bool {
	_, ok := e.granted[role][Permission{Resource: resource, Action: action}]
	return ok
}

// HasAny is false for an empty request so that gates hide content by default.
func (e *Engine) HasAny(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if e.HasPermission(role, p.Resource, p.Action) {
			return true
		}
	}
	return false
}

// HasAll is vacuously true for an empty request.
func (e *Engine) HasAll(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !e.HasPermission(role, p.Resource, p.Action) {
			return false
		}
	}
	return true
}

func (e *Engine) Permissions(role Role) []Permission {
	return slices.Clone(e.ordered[role])
}
