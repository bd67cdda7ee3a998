package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"famibot/internal/models"
	"famibot/internal/repository"
)

type conversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a new conversation log repository
func NewConversationRepository(db *sql.DB) repository.ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, entry *models.ConversationEntry) (*models.ConversationEntry, error) {
	// sent_at is assigned by the database so that concurrent inserts get a
	// consistent ordering key.
	query := `
		INSERT INTO conversation_entries (profile_id, family_id, content, ai_generated)
		VALUES ($1, $2, $3, $4)
		RETURNING id, sent_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.ProfileID,
		entry.FamilyID,
		entry.Content,
		entry.AIGenerated,
	).Scan(&entry.ID, &entry.SentAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create conversation entry: %w", err)
	}

	return entry, nil
}

func (r *conversationRepository) RecentByFamily(ctx context.Context, familyID int64, limit int) ([]*models.ConversationEntry, error) {
	query := `
		SELECT id, profile_id, family_id, content, ai_generated, sent_at
		FROM conversation_entries
		WHERE family_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`

	return r.list(ctx, query, familyID, limit)
}

func (r *conversationRepository) RecentBySender(ctx context.Context, profileID int64, limit int) ([]*models.ConversationEntry, error) {
	query := `
		SELECT id, profile_id, family_id, content, ai_generated, sent_at
		FROM conversation_entries
		WHERE profile_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`

	return r.list(ctx, query, profileID, limit)
}

func (r *conversationRepository) list(ctx context.Context, query string, id int64, limit int) ([]*models.ConversationEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ConversationEntry
	for rows.Next() {
		entry := &models.ConversationEntry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.ProfileID,
			&entry.FamilyID,
			&entry.Content,
			&entry.AIGenerated,
			&entry.SentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
