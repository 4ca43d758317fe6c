package models

import (
	"fmt"
	"strings"
)

// Role is the access level attached to an account and carried in session tokens.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleManager  Role = "MANAGER"
)

// ParseRole accepts any casing of a known role name.
func ParseRole(value string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(value))); r {
	case RoleCustomer, RoleStaff, RoleManager:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

func (r Role) String() string { return string(r) }

// CanSearchAccounts reports whether the role may list other accounts.
func (r Role) CanSearchAccounts() bool {
	return r == RoleManager || r == RoleStaff
}
