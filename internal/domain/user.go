package domain

import "errors"

// Role is the access level of an API caller.
type Role string

const (
	// RoleAdmin may mint and burn currency, grant items and take snapshots.
	RoleAdmin Role = "admin"

	// RoleOperator acts on behalf of users: transfers and orders.
	RoleOperator Role = "operator"

	// RoleViewer reads balances, books and history.
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanTrade checks if the role may move value between users.
func (r Role) CanTrade() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanAdminister checks if the role may change supply or persistence.
func (r Role) CanAdminister() bool {
	return r == RoleAdmin
}

// Satisfies reports whether r grants at least the access of required.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case RoleAdmin:
		return r.CanAdminister()
	case RoleOperator:
		return r.CanTrade()
	case RoleViewer:
		return r.IsValid()
	}
	return false
}

// Principal is the authenticated caller of the API, usually a bot front end.
type Principal struct {
	Subject string
	Role    Role
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
