package domain

import (
	"fmt"
	"strings"
)

// Role enumerates marketplace roles a user can hold.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

// roleOrder is the canonical rendering order of a RoleSet.
var roleOrder = []Role{RoleBuyer, RoleSeller, RoleSupport, RoleAdmin}

// ParseRole validates a single role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range roleOrder {
		if role == known {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// IsRequester reports whether the role submits tickets.
func (r Role) IsRequester() bool {
	return r == RoleBuyer || r == RoleSeller
}

// IsStaff reports whether the role works the support queue.
func (r Role) IsStaff() bool {
	return r == RoleSupport || r == RoleAdmin
}

// IsGrantable reports whether a role can be obtained through a role request.
func (r Role) IsGrantable() bool {
	return r == RoleSeller || r == RoleSupport || r == RoleAdmin
}

// Label returns the capitalized role name used in user-facing text.
func (r Role) Label() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// RoleSet is a duplicate-free set of roles kept in canonical order.
type RoleSet []Role

// NewRoleSet builds a set from roles, dropping duplicates.
func NewRoleSet(roles ...Role) RoleSet {
	var set RoleSet
	for _, candidate := range roleOrder {
		for _, role := range roles {
			if role == candidate {
				set = append(set, candidate)
				break
			}
		}
	}
	return set
}

// ParseRoleSet parses the comma-joined representation stored with a user.
func ParseRoleSet(raw string) (RoleSet, error) {
	var roles []Role
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		role, err := ParseRole(part)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return NewRoleSet(roles...), nil
}

// Has reports membership.
func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// With returns the union of the set and role.
func (s RoleSet) With(role Role) RoleSet {
	return NewRoleSet(append(append([]Role{}, s...), role)...)
}

// String renders the set comma-joined in canonical order.
func (s RoleSet) String() string {
	parts := make([]string, 0, len(s))
	for _, role := range NewRoleSet(s...) {
		parts = append(parts, string(role))
	}
	return strings.Join(parts, ",")
}
