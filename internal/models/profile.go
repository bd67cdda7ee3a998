package models

import "time"

// Default role assigned to a profile on first contact.
const RoleMember = "member"

// Profile represents a LINE user known to the bot. A profile is created the
// first time an event from that user is seen and is never deleted.
type Profile struct {
	ID          int64     `json:"id" db:"id"`
	LineUserID  string    `json:"line_user_id" db:"line_user_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Role        string    `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Name returns the best display name for the profile.
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "Family member"
}
