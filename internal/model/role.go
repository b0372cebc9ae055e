package model

import (
	"errors"
	"strings"
)

// Role is the closed set of caller roles.  It is stored as its lower-case
// name in the users table and in the JWT "role" claim.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleMember
	RoleAdmin
)

// ErrUnknownRole is returned by ParseRole for names outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a stored or transported role name into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member":
		return RoleMember, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleUnknown, ErrUnknownRole
}

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

// Caller is the resolved identity of whoever invokes a lending operation.
// It is produced by the identity layer and trusted as-is by the core.
type Caller struct {
	ID   uint64
	Role Role
}

// CanBorrow reports whether the caller may borrow through the member path.
// Admins manage the catalog but do not borrow.
func (c Caller) CanBorrow() bool { return c.Role == RoleMember }

// CanReturn reports whether the caller may close a loan held by borrowerID.
func (c Caller) CanReturn(borrowerID uint64) bool {
	return c.Role == RoleAdmin || (c.Role == RoleMember && c.ID == borrowerID)
}

// CanReadUserHistory reports whether the caller may list userID's loans.
func (c Caller) CanReadUserHistory(userID uint64) bool {
	return c.Role == RoleAdmin || (c.Role == RoleMember && c.ID == userID)
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
