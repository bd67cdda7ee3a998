package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"famibot/internal/metrics"
	"famibot/internal/models"
)

// ErrProfileNotFound is returned by on-demand operations for an unknown
// LINE user ID. The API maps it to a 404.
var ErrProfileNotFound = errors.New("profile not found")

// BroadcastSummary reports the outcome of one scheduled broadcast run.
type BroadcastSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Fallbacks int `json:"fallbacks"`
	Failed    int `json:"failed"`
}

// deliveryOutcome records which path a topic delivery took.
type deliveryOutcome int

const (
	deliveredToGroup deliveryOutcome = iota
	deliveredDirect
)

// BroadcastTopics generates and delivers one discussion topic per family.
// Per-family failures are counted and aggregated but never stop the batch.
// Re-running is safe: every run appends fresh DailyTopic rows, topics are
// meant to recur.
//
// When no families exist yet the broadcast degrades to the single
// most-recent profile, delivered directly.
func (s *Service) BroadcastTopics(ctx context.Context) (BroadcastSummary, error) {
	families, err := s.Families.GetAll(ctx)
	if err != nil {
		return BroadcastSummary{}, fmt.Errorf("failed to list families: %w", err)
	}

	if len(families) == 0 {
		return s.broadcastMostRecent(ctx)
	}

	var summary BroadcastSummary
	var merr *multierror.Error
	for _, family := range families {
		summary.Processed++
		outcome, err := s.broadcastToFamily(ctx, family)
		if err != nil {
			summary.Failed++
			metrics.TopicBroadcasts.WithLabelValues("failed").Inc()
			merr = multierror.Append(merr, fmt.Errorf("family %d: %w", family.ID, err))
			continue
		}
		summary.Succeeded++
		if family.IsGroupLinked() && outcome == deliveredDirect {
			summary.Fallbacks++
			metrics.TopicBroadcasts.WithLabelValues("fallback").Inc()
		} else {
			metrics.TopicBroadcasts.WithLabelValues("delivered").Inc()
		}
	}

	return summary, merr.ErrorOrNil()
}

// broadcastToFamily generates a topic for one family and delivers it to the
// group channel, falling back to one member's direct channel when the group
// push fails or the family is personal. The DailyTopic row is recorded
// regardless of delivery outcome once a topic exists.
func (s *Service) broadcastToFamily(ctx context.Context, family *models.Family) (deliveryOutcome, error) {
	topic, err := s.generateTopic(ctx)
	if err != nil {
		return deliveredDirect, err
	}

	members, err := s.Families.GetMembers(ctx, family.ID)
	if err != nil {
		s.logger.WithError(err).Warnf("Failed to list members of family %d", family.ID)
	}
	var recipient *models.Profile
	if len(members) > 0 {
		recipient = members[0]
	}

	outcome, deliverErr := s.deliverTopic(ctx, family, recipient, topic)

	s.recordTopic(ctx, &family.ID, recipient, topic)

	if deliverErr != nil {
		return outcome, deliverErr
	}

	// The broadcast shows up in the family timeline as an AI message.
	if recipient != nil {
		if err := s.LogMessage(ctx, recipient.ID, &family.ID, topic, true); err != nil {
			s.logger.WithError(err).Warnf("Failed to log broadcast for family %d", family.ID)
		}
	}

	return outcome, nil
}

// deliverTopic tries the group channel first, then one member's direct
// channel.
func (s *Service) deliverTopic(ctx context.Context, family *models.Family, recipient *models.Profile, topic string) (deliveryOutcome, error) {
	if family.IsGroupLinked() {
		err := s.messenger.Push(ctx, *family.LineGroupID, topic)
		if err == nil {
			return deliveredToGroup, nil
		}
		s.logger.WithError(err).Warnf("Group push failed for family %d, trying direct fallback", family.ID)
	}

	if recipient == nil {
		return deliveredDirect, fmt.Errorf("no member to deliver to in family %d", family.ID)
	}
	if err := s.messenger.Push(ctx, recipient.LineUserID, topic); err != nil {
		return deliveredDirect, fmt.Errorf("direct delivery to profile %d failed: %w", recipient.ID, err)
	}
	return deliveredDirect, nil
}

// broadcastMostRecent is the degraded single-user mode: no families exist,
// so the topic goes straight to the most recently created profile.
func (s *Service) broadcastMostRecent(ctx context.Context) (BroadcastSummary, error) {
	profile, err := s.Profiles.GetMostRecent(ctx)
	if err != nil {
		return BroadcastSummary{}, fmt.Errorf("failed to find a broadcast recipient: %w", err)
	}
	if profile == nil {
		return BroadcastSummary{}, nil
	}

	summary := BroadcastSummary{Processed: 1}

	topic, err := s.generateTopic(ctx)
	if err != nil {
		summary.Failed = 1
		metrics.TopicBroadcasts.WithLabelValues("failed").Inc()
		return summary, err
	}

	deliverErr := s.messenger.Push(ctx, profile.LineUserID, topic)
	s.recordTopic(ctx, nil, profile, topic)
	if deliverErr != nil {
		summary.Failed = 1
		metrics.TopicBroadcasts.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("direct delivery to profile %d failed: %w", profile.ID, deliverErr)
	}

	if err := s.LogMessage(ctx, profile.ID, nil, topic, true); err != nil {
		s.logger.WithError(err).Warnf("Failed to log broadcast for profile %d", profile.ID)
	}

	summary.Succeeded = 1
	metrics.TopicBroadcasts.WithLabelValues("delivered").Inc()
	return summary, nil
}

// GachaTopic handles the on-demand broadcast: resolve the requesting user
// read-only, generate one topic, deliver it to their family group if linked
// else to them directly, and record both bookkeeping rows. Unlike the
// scheduled mode every failure is surfaced to the caller.
func (s *Service) GachaTopic(ctx context.Context, lineUserID string) (string, error) {
	profile, err := s.Profiles.GetByLineUserID(ctx, lineUserID)
	if err != nil {
		return "", fmt.Errorf("failed to lookup profile (line_user_id=%s): %w", lineUserID, err)
	}
	if profile == nil {
		return "", fmt.Errorf("line user %s: %w", lineUserID, ErrProfileNotFound)
	}

	family, err := s.Families.GetFirstByProfile(ctx, profile.ID)
	if err != nil {
		return "", fmt.Errorf("failed to lookup family for profile %d: %w", profile.ID, err)
	}

	topic, err := s.generateTopic(ctx)
	if err != nil {
		return "", err
	}

	target := lineUserID
	var familyID *int64
	if family != nil {
		familyID = &family.ID
		if family.IsGroupLinked() {
			target = *family.LineGroupID
		}
	}
	if err := s.messenger.Push(ctx, target, topic); err != nil {
		return "", fmt.Errorf("failed to deliver topic: %w", err)
	}

	if _, err := s.Topics.Create(ctx, &models.DailyTopic{
		FamilyID:    familyID,
		RecipientID: &profile.ID,
		Topic:       topic,
	}); err != nil {
		return "", fmt.Errorf("failed to record topic: %w", err)
	}
	if err := s.LogMessage(ctx, profile.ID, familyID, topic, true); err != nil {
		return "", err
	}

	return topic, nil
}

// generateTopic asks the generator for one topic under the configured
// timeout. Empty output is an error here: there is nothing to deliver.
func (s *Service) generateTopic(ctx context.Context) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.AITimeout)
	defer cancel()

	topic, err := s.generator.GenerateText(genCtx, topicPersona, topicPrompt(s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to generate topic: %w", err)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("generator returned an empty topic")
	}
	return topic, nil
}

// recordTopic writes the DailyTopic bookkeeping row. Best effort: a failed
// write is logged but never affects the broadcast outcome.
func (s *Service) recordTopic(ctx context.Context, familyID *int64, recipient *models.Profile, topic string) {
	entry := &models.DailyTopic{
		FamilyID: familyID,
		Topic:    topic,
	}
	if recipient != nil {
		entry.RecipientID = &recipient.ID
	}
	if _, err := s.Topics.Create(ctx, entry); err != nil {
		s.logger.WithError(err).Warn("Failed to record daily topic")
	}
}
