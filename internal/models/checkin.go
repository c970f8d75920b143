// internal/models/checkin.go
package models

import "time"

// CheckInLog records one scan of one applicant for one event slot
// (e.g. "event", "dinner", "breakfast").
type CheckInLog struct {
	ID          string    `json:"id" db:"id"`
	SubmitterID string    `json:"submitterId" db:"submitter_id"`
	Name        string    `json:"name" db:"name"`
	EventType   string    `json:"eventType" db:"event_type"`
	CheckInTime time.Time `json:"checkInTime" db:"check_in_time"`
}
