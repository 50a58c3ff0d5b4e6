package domain

import "time"

// SupportRole enumerates internal operator roles.
type SupportRole string

const (
	SupportRoleAgent SupportRole = "support_agent"
	SupportRoleAdmin SupportRole = "support_admin"
)

// Valid reports whether r is a known support role.
func (r SupportRole) Valid() bool {
	return r == SupportRoleAgent || r == SupportRoleAdmin
}

// SupportUser models an internal operator of the platform.
type SupportUser struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         SupportRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
