package dto

import "time"

// LoginRequest payload shared by both login endpoints.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CustomerResponse is the public view of an organization member.
type CustomerResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
}

// SupportUserResponse is the public view of an internal operator.
type SupportUserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// SupportAuthResponse describes the issued support token. The token itself
// only travels in the HttpOnly cookie.
type SupportAuthResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}
