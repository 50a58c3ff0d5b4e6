package dto

// CreateSupportUserRequest payload for POST /support/api/admin/users.
type CreateSupportUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// IdentityScope is what tenant resource mounts hand to the business layer.
type IdentityScope struct {
	Resource       string `json:"resource"`
	OrganizationID string `json:"organization_id"`
	IdentityID     string `json:"identity_id"`
	Role           string `json:"role"`
}
