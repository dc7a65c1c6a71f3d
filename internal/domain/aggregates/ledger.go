package aggregates

import "time"

// PartialLinkRecord is a persisted PartialLink waiting for repair.
type PartialLinkRecord struct {
	ID         string      `json:"id"`
	Link       PartialLink `json:"link"`
	LastError  string      `json:"last_error,omitempty"`
	Attempts   int         `json:"attempts"`
	RecordedAt time.Time   `json:"recorded_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
