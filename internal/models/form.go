// internal/models/form.go
package models

// Form is the per-season policy row: whether the form accepts submissions
// and which emails may submit even while it is closed (early access).
type Form struct {
	FormKey         string   `json:"formKey" db:"form_key"`
	Year            int      `json:"year" db:"year"`
	IsOpen          bool     `json:"isOpen" db:"is_open"`
	AllowlistEmails []string `json:"allowlistEmails,omitempty" db:"allowlist_emails"`
}
