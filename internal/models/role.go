// internal/models/role.go
package models

// Portal roles. Admin unlocks the review surface, CheckIn unlocks the
// scanner endpoints.
const (
	RoleAdmin   = "admin"
	RoleCheckIn = "check_in"
)

// UserRoles is one identity with its granted roles, as shown on the admin
// roles page.
type UserRoles struct {
	SubmitterID string   `json:"submitterId"`
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name,omitempty"`
	Roles       []string `json:"roles"`
}
