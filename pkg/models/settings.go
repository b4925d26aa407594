package models

import "time"

// AutomationSettings is a single global record gating the creation of new
// automation actions. Disabling it has no effect on already-pending actions
// or already-scheduled tasks.
//
// Version supports compare-and-set updates so concurrent toggles cannot
// silently overwrite each other.
type AutomationSettings struct {
	ID        int64     `json:"id" db:"id"` // Always 1; singleton row
	Enabled   bool      `json:"enabled" db:"enabled"`
	Version   int64     `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
