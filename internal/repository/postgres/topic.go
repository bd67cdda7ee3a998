package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"famibot/internal/models"
	"famibot/internal/repository"
)

type topicRepository struct {
	db *sql.DB
}

// NewTopicRepository creates a new daily topic repository
func NewTopicRepository(db *sql.DB) repository.TopicRepository {
	return &topicRepository{db: db}
}

func (r *topicRepository) Create(ctx context.Context, topic *models.DailyTopic) (*models.DailyTopic, error) {
	query := `
		INSERT INTO daily_topics (family_id, recipient_id, topic)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		topic.FamilyID,
		topic.RecipientID,
		topic.Topic,
	).Scan(&topic.ID, &topic.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create daily topic: %w", err)
	}

	return topic, nil
}
