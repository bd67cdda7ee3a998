package repository

import (
	"context"
	"errors"

	"famibot/internal/models"
)

// ErrDuplicate is returned by Create methods when an insert hits a unique
// constraint. Callers use it to detect "someone else just created it" races
// and re-read instead of failing.
var ErrDuplicate = errors.New("duplicate record")

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	// Create inserts a new profile. Returns ErrDuplicate (wrapped) when a
	// profile with the same LINE user ID already exists.
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	GetByLineUserID(ctx context.Context, lineUserID string) (*models.Profile, error)
	GetByID(ctx context.Context, id int64) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	// GetMostRecent returns the most recently created profile, or nil when
	// no profiles exist. Used by the degraded single-user broadcast mode.
	GetMostRecent(ctx context.Context) (*models.Profile, error)
}

// FamilyRepository defines the interface for family and membership operations
type FamilyRepository interface {
	// Create inserts a new family. Returns ErrDuplicate (wrapped) when a
	// family with the same LINE group ID already exists.
	Create(ctx context.Context, family *models.Family) (*models.Family, error)
	GetByLineGroupID(ctx context.Context, lineGroupID string) (*models.Family, error)
	GetByID(ctx context.Context, id int64) (*models.Family, error)
	GetAll(ctx context.Context) ([]*models.Family, error)
	// GetPersonalByProfile returns the profile's personal family (a family
	// with no LINE group ID reached through a membership), or nil.
	GetPersonalByProfile(ctx context.Context, profileID int64) (*models.Family, error)
	// GetFirstByProfile returns any one family the profile belongs to
	// (earliest membership wins), or nil.
	GetFirstByProfile(ctx context.Context, profileID int64) (*models.Family, error)
	// AddMember links a profile to a family. Inserting an existing
	// (family, profile) pair is a no-op, not an error.
	AddMember(ctx context.Context, familyID, profileID int64) error
	GetMembers(ctx context.Context, familyID int64) ([]*models.Profile, error)
}

// ConversationRepository defines the interface for conversation log operations
type ConversationRepository interface {
	Create(ctx context.Context, entry *models.ConversationEntry) (*models.ConversationEntry, error)
	// RecentByFamily returns up to limit entries for the family,
	// newest first.
	RecentByFamily(ctx context.Context, familyID int64, limit int) ([]*models.ConversationEntry, error)
	// RecentBySender returns up to limit entries logged under the sender's
	// profile, newest first, regardless of family linkage.
	RecentBySender(ctx context.Context, profileID int64, limit int) ([]*models.ConversationEntry, error)
}

// TopicRepository defines the interface for broadcast topic bookkeeping
type TopicRepository interface {
	Create(ctx context.Context, topic *models.DailyTopic) (*models.DailyTopic, error)
}
