package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"famibot/internal/models"
	"famibot/internal/repository"
)

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sql.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (line_user_id, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if profile.Role == "" {
		profile.Role = models.RoleMember
	}

	err := r.db.QueryRowContext(ctx, query,
		profile.LineUserID,
		profile.DisplayName,
		profile.Role,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("profile for line user %s: %w", profile.LineUserID, repository.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return profile, nil
}

func (r *profileRepository) GetByLineUserID(ctx context.Context, lineUserID string) (*models.Profile, error) {
	query := `
		SELECT id, line_user_id, display_name, role, created_at, updated_at
		FROM profiles
		WHERE line_user_id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, lineUserID), "line user ID")
}

func (r *profileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	query := `
		SELECT id, line_user_id, display_name, role, created_at, updated_at
		FROM profiles
		WHERE id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "ID")
}

func (r *profileRepository) GetMostRecent(ctx context.Context) (*models.Profile, error) {
	query := `
		SELECT id, line_user_id, display_name, role, created_at, updated_at
		FROM profiles
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query), "recency")
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET display_name = $2, role = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at`

	profile.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		profile.ID,
		profile.DisplayName,
		profile.Role,
		profile.UpdatedAt,
	).Scan(&profile.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return profile, nil
}

func (r *profileRepository) scanOne(row *sql.Row, by string) (*models.Profile, error) {
	profile := &models.Profile{}
	err := row.Scan(
		&profile.ID,
		&profile.LineUserID,
		&profile.DisplayName,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile by %s: %w", by, err)
	}

	return profile, nil
}
