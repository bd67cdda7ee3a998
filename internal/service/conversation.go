package service

import (
	"context"
	"fmt"

	"famibot/internal/models"
)

// LogMessage appends one entry to the conversation log. Content is stored
// verbatim; familyID may be nil when the sender could not be linked to a
// family. Entries are never mutated afterwards.
func (s *Service) LogMessage(ctx context.Context, senderID int64, familyID *int64, content string, aiGenerated bool) error {
	entry := &models.ConversationEntry{
		ProfileID:   senderID,
		FamilyID:    familyID,
		Content:     content,
		AIGenerated: aiGenerated,
	}
	if _, err := s.Conversations.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to log conversation entry: %w", err)
	}
	return nil
}

// RecentHistory returns up to limit entries for a family in chronological
// order, oldest first.
func (s *Service) RecentHistory(ctx context.Context, familyID int64, limit int) ([]*models.ConversationEntry, error) {
	entries, err := s.Conversations.RecentByFamily(ctx, familyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read family history: %w", err)
	}
	return chronological(entries), nil
}

// chronological reverses a newest-first result set in place so the oldest
// entry comes first.
func chronological(entries []*models.ConversationEntry) []*models.ConversationEntry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}
