package domain

import "time"

// CustomerRole enumerates organization member roles.
type CustomerRole string

const (
	CustomerRoleOwner  CustomerRole = "owner"
	CustomerRoleAdmin  CustomerRole = "admin"
	CustomerRoleMember CustomerRole = "member"
)

// CustomerStatus represents lifecycle states for an organization member.
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "ACTIVE"
	CustomerStatusSuspended CustomerStatus = "SUSPENDED"
)

// Customer is an organization member who signs in to the product.
type Customer struct {
	ID             string
	OrganizationID string
	Name           string
	Email          string
	PasswordHash   string
	Role           CustomerRole
	Status         CustomerStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
