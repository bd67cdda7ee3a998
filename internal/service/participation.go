package service

import (
	"context"
	"fmt"
	"strings"

	"famibot/internal/models"
)

// ParticipationResult names the path the co-participation trial took, so
// counters and tests can assert on the exact outcome instead of parsing
// errors.
type ParticipationResult string

const (
	// ParticipationSkipped means the random trial was not won.
	ParticipationSkipped ParticipationResult = "skipped"
	// ParticipationNoContext means no usable history remained after
	// scope filtering.
	ParticipationNoContext ParticipationResult = "no_context"
	// ParticipationGenerationFailed means the text generator errored.
	ParticipationGenerationFailed ParticipationResult = "generation_failed"
	// ParticipationEmptyReply means the generator returned only whitespace.
	ParticipationEmptyReply ParticipationResult = "empty_reply"
	// ParticipationDeliveryFailed means the push to the reply target failed.
	ParticipationDeliveryFailed ParticipationResult = "delivery_failed"
	// ParticipationLogFailed means the reply was delivered but not recorded.
	ParticipationLogFailed ParticipationResult = "log_failed"
	// ParticipationReplied means the reply was delivered and recorded.
	ParticipationReplied ParticipationResult = "replied"
)

// mascotPersona is the fixed system instruction for injected replies.
const mascotPersona = "You are the family's warm mascot sitting in their group chat. " +
	"React to the latest messages in 30 characters or less. " +
	"No questions, reactions only."

// MaybeParticipate rolls one independent random trial and, on success,
// generates and injects an AI reply built from recent history. Each message
// gets its own trial; nothing prevents two wins in a row.
//
// Context scope: with a family the last entries of that family feed the
// prompt, human and AI rows alike. Without one (degraded 1:1 mode) the
// sender's own recent entries are used with AI rows filtered out, and the
// trial aborts when no human row remains.
//
// Every failure past the trial is recoverable from the caller's point of
// view: the webhook response never depends on this method succeeding.
func (s *Service) MaybeParticipate(ctx context.Context, senderID int64, familyID *int64, replyTarget string) (ParticipationResult, error) {
	if s.rand() >= s.cfg.ParticipationRate {
		return ParticipationSkipped, nil
	}

	history, err := s.participationContext(ctx, senderID, familyID)
	if err != nil {
		return ParticipationNoContext, err
	}
	if len(history) == 0 {
		return ParticipationNoContext, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.AITimeout)
	defer cancel()
	text, err := s.generator.GenerateText(genCtx, mascotPersona, formatHistory(history))
	if err != nil {
		return ParticipationGenerationFailed, fmt.Errorf("failed to generate reply: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ParticipationEmptyReply, nil
	}

	if err := s.messenger.Push(ctx, replyTarget, text); err != nil {
		return ParticipationDeliveryFailed, fmt.Errorf("failed to deliver AI reply: %w", err)
	}

	if err := s.LogMessage(ctx, senderID, familyID, text, true); err != nil {
		// The reply already reached the chat; record-keeping failure is
		// reported but nothing is undone.
		return ParticipationLogFailed, err
	}

	return ParticipationReplied, nil
}

// participationContext assembles the generation context in chronological
// order, applying the scope rules described on MaybeParticipate.
func (s *Service) participationContext(ctx context.Context, senderID int64, familyID *int64) ([]*models.ConversationEntry, error) {
	if familyID != nil {
		entries, err := s.Conversations.RecentByFamily(ctx, *familyID, s.cfg.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to read participation context: %w", err)
		}
		return chronological(entries), nil
	}

	entries, err := s.Conversations.RecentBySender(ctx, senderID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read participation context: %w", err)
	}
	human := entries[:0]
	for _, e := range entries {
		if !e.AIGenerated {
			human = append(human, e)
		}
	}
	return chronological(human), nil
}

// formatHistory renders history entries as prompt lines, oldest first.
func formatHistory(entries []*models.ConversationEntry) string {
	var b strings.Builder
	for _, e := range entries {
		if e.AIGenerated {
			b.WriteString("You: ")
		} else {
			b.WriteString("Family: ")
		}
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return b.String()
}
