// internal/models/session.go
package models

import "time"

// AdminSession represents one live admin login. At most one per identity:
// starting a new session supersedes any previous one for the same identity.
type AdminSession struct {
	SessionID     string    `json:"sessionId"`
	AdminIdentity string    `json:"adminIdentity"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LockState is the read-only lock annotation attached to a single
// application view. A lock whose holder session has died reads as unlocked.
type LockState struct {
	Locked         bool   `json:"locked"`
	HolderIdentity string `json:"holderIdentity,omitempty"`
}
