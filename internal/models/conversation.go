package models

import "time"

// ConversationEntry is one message in a family's timeline, human or
// AI-generated. FamilyID is nil when the message could not be linked to a
// family. Entries are never mutated after creation; SentAt is assigned by
// the store on insert and is the sole ordering key.
type ConversationEntry struct {
	ID          int64     `json:"id" db:"id"`
	ProfileID   int64     `json:"profile_id" db:"profile_id"`
	FamilyID    *int64    `json:"family_id,omitempty" db:"family_id"`
	Content     string    `json:"content" db:"content"`
	AIGenerated bool      `json:"ai_generated" db:"ai_generated"`
	SentAt      time.Time `json:"sent_at" db:"sent_at"`
}
