package models

import "time"

// Family represents a conversation group. A family is either group-linked
// (LineGroupID set, mapped to a LINE group or room) or personal (LineGroupID
// nil, representing a single user's 1:1 context).
type Family struct {
	ID          int64      `json:"id" db:"id"`
	LineGroupID *string    `json:"line_group_id,omitempty" db:"line_group_id"`
	Name        string     `json:"name" db:"name"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	Members     []*Profile `json:"members,omitempty"`
}

// IsGroupLinked reports whether the family is bound to a LINE group chat.
func (f *Family) IsGroupLinked() bool {
	return f.LineGroupID != nil && *f.LineGroupID != ""
}

// FamilyMember represents the join table between families and profiles.
type FamilyMember struct {
	FamilyID  int64     `json:"family_id" db:"family_id"`
	ProfileID int64     `json:"profile_id" db:"profile_id"`
	JoinedAt  time.Time `json:"joined_at" db:"joined_at"`
}
