package models

import "time"

// DailyTopic is bookkeeping for one generated discussion topic, recorded
// per broadcast target regardless of whether delivery succeeded.
// Append-only; topics are meant to recur, so no deduplication applies.
type DailyTopic struct {
	ID          int64     `json:"id" db:"id"`
	FamilyID    *int64    `json:"family_id,omitempty" db:"family_id"`
	RecipientID *int64    `json:"recipient_id,omitempty" db:"recipient_id"`
	Topic       string    `json:"topic" db:"topic"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
