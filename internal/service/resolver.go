package service

import (
	"context"
	"errors"
	"fmt"

	"famibot/internal/models"
	"famibot/internal/repository"
)

// ResolveProfile retrieves the profile for a LINE user ID, creating one on
// first contact. Display name retrieval from the platform is best effort: a
// fetch failure never fails the resolution, the profile just keeps an empty
// name until a later event fills it in.
//
// Two near-simultaneous events for an unseen user may race to insert; the
// loser of the race sees ErrDuplicate and re-reads the winner's row, so
// exactly one profile exists per LINE user ID afterwards.
func (s *Service) ResolveProfile(ctx context.Context, lineUserID string) (*models.Profile, error) {
	profile, err := s.Profiles.GetByLineUserID(ctx, lineUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup profile (line_user_id=%s): %w", lineUserID, err)
	}
	if profile != nil {
		if profile.DisplayName == "" {
			s.refreshDisplayName(ctx, profile)
		}
		return profile, nil
	}

	displayName := ""
	if name, err := s.messenger.DisplayName(ctx, lineUserID); err != nil {
		s.logger.WithError(err).Debugf("Could not fetch display name for %s", lineUserID)
	} else {
		displayName = name
	}

	profile = &models.Profile{
		LineUserID:  lineUserID,
		DisplayName: displayName,
		Role:        models.RoleMember,
	}
	created, err := s.Profiles.Create(ctx, profile)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Someone else just created it; their row wins.
			existing, readErr := s.Profiles.GetByLineUserID(ctx, lineUserID)
			if readErr != nil {
				return nil, fmt.Errorf("failed to re-read profile after duplicate insert: %w", readErr)
			}
			if existing == nil {
				return nil, fmt.Errorf("profile for %s missing after duplicate insert", lineUserID)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create profile (line_user_id=%s): %w", lineUserID, err)
	}

	s.logger.Infof("Created new profile: %s (line_user_id=%s)", created.Name(), lineUserID)
	return created, nil
}

// refreshDisplayName retries the platform name fetch for a profile created
// while the platform was unreachable. Best effort on every step.
func (s *Service) refreshDisplayName(ctx context.Context, profile *models.Profile) {
	name, err := s.messenger.DisplayName(ctx, profile.LineUserID)
	if err != nil || name == "" {
		return
	}
	profile.DisplayName = name
	if _, err := s.Profiles.Update(ctx, profile); err != nil {
		s.logger.WithError(err).Warnf("Failed to update display name for profile %d", profile.ID)
	}
}

// ResolveFamily determines the family for this message and makes sure the
// profile is a member of it. With a group ID the family is looked up (or
// created) by that ID; without one the profile's personal family is reused
// or created. Returns nil when family resolution fails unrecoverably;
// callers then log the message with no family rather than discarding it.
func (s *Service) ResolveFamily(ctx context.Context, profile *models.Profile, groupID string) *models.Family {
	var (
		family *models.Family
		err    error
	)
	if groupID != "" {
		family, err = s.resolveGroupFamily(ctx, groupID)
	} else {
		family, err = s.resolvePersonalFamily(ctx, profile)
	}
	if err != nil {
		s.logger.WithError(err).Errorf("Family resolution failed for profile %d", profile.ID)
		return nil
	}

	// Duplicate membership inserts are swallowed by the repository; any
	// other failure degrades to an unlinked membership, not a lost message.
	if err := s.Families.AddMember(ctx, family.ID, profile.ID); err != nil {
		s.logger.WithError(err).Warnf("Failed to link profile %d to family %d", profile.ID, family.ID)
	}

	return family
}

func (s *Service) resolveGroupFamily(ctx context.Context, groupID string) (*models.Family, error) {
	family, err := s.Families.GetByLineGroupID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup family (group_id=%s): %w", groupID, err)
	}
	if family != nil {
		return family, nil
	}

	family = &models.Family{
		LineGroupID: &groupID,
		Name:        "Family",
	}
	created, err := s.Families.Create(ctx, family)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			existing, readErr := s.Families.GetByLineGroupID(ctx, groupID)
			if readErr != nil {
				return nil, fmt.Errorf("failed to re-read family after duplicate insert: %w", readErr)
			}
			if existing == nil {
				return nil, fmt.Errorf("family for group %s missing after duplicate insert", groupID)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create family for group %s: %w", groupID, err)
	}

	s.logger.Infof("Created new family for group %s (family_id=%d)", groupID, created.ID)
	return created, nil
}

// resolvePersonalFamily reuses the profile's existing personal family when a
// membership points at one. There is no storage-level uniqueness for
// personal families; the membership lookup is the enforcement point, so a
// creation race can at worst leave an orphan family that no membership
// references and later resolutions ignore.
func (s *Service) resolvePersonalFamily(ctx context.Context, profile *models.Profile) (*models.Family, error) {
	family, err := s.Families.GetPersonalByProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup personal family for profile %d: %w", profile.ID, err)
	}
	if family != nil {
		return family, nil
	}

	family = &models.Family{
		Name: profile.Name() + "'s family",
	}
	created, err := s.Families.Create(ctx, family)
	if err != nil {
		return nil, fmt.Errorf("failed to create personal family for profile %d: %w", profile.ID, err)
	}

	s.logger.Infof("Created personal family for profile %d (family_id=%d)", profile.ID, created.ID)
	return created, nil
}
