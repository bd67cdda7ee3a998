package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"famibot/internal/models"
	"famibot/internal/repository"
)

type familyRepository struct {
	db *sql.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *sql.DB) repository.FamilyRepository {
	return &familyRepository{db: db}
}

func (r *familyRepository) Create(ctx context.Context, family *models.Family) (*models.Family, error) {
	query := `
		INSERT INTO families (line_group_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	family.CreatedAt = now
	family.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		family.LineGroupID,
		family.Name,
		family.CreatedAt,
		family.UpdatedAt,
	).Scan(&family.ID, &family.CreatedAt, &family.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("family for group: %w", repository.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	return family, nil
}

func (r *familyRepository) GetByLineGroupID(ctx context.Context, lineGroupID string) (*models.Family, error) {
	query := `
		SELECT id, line_group_id, name, created_at, updated_at
		FROM families
		WHERE line_group_id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, lineGroupID), "group ID")
}

func (r *familyRepository) GetByID(ctx context.Context, id int64) (*models.Family, error) {
	query := `
		SELECT id, line_group_id, name, created_at, updated_at
		FROM families
		WHERE id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "ID")
}

func (r *familyRepository) GetAll(ctx context.Context) ([]*models.Family, error) {
	query := `
		SELECT id, line_group_id, name, created_at, updated_at
		FROM families
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []*models.Family
	for rows.Next() {
		family := &models.Family{}
		if err := rows.Scan(
			&family.ID,
			&family.LineGroupID,
			&family.Name,
			&family.CreatedAt,
			&family.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, family)
	}

	return families, rows.Err()
}

func (r *familyRepository) GetPersonalByProfile(ctx context.Context, profileID int64) (*models.Family, error) {
	query := `
		SELECT f.id, f.line_group_id, f.name, f.created_at, f.updated_at
		FROM families f
		INNER JOIN family_members fm ON fm.family_id = f.id
		WHERE fm.profile_id = $1 AND f.line_group_id IS NULL
		ORDER BY fm.joined_at ASC
		LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, profileID), "personal membership")
}

func (r *familyRepository) GetFirstByProfile(ctx context.Context, profileID int64) (*models.Family, error) {
	query := `
		SELECT f.id, f.line_group_id, f.name, f.created_at, f.updated_at
		FROM families f
		INNER JOIN family_members fm ON fm.family_id = f.id
		WHERE fm.profile_id = $1
		ORDER BY fm.joined_at ASC
		LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, profileID), "membership")
}

func (r *familyRepository) AddMember(ctx context.Context, familyID, profileID int64) error {
	query := `
		INSERT INTO family_members (family_id, profile_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (family_id, profile_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, familyID, profileID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add family member: %w", err)
	}

	return nil
}

func (r *familyRepository) GetMembers(ctx context.Context, familyID int64) ([]*models.Profile, error) {
	query := `
		SELECT p.id, p.line_user_id, p.display_name, p.role, p.created_at, p.updated_at
		FROM profiles p
		INNER JOIN family_members fm ON fm.profile_id = p.id
		WHERE fm.family_id = $1
		ORDER BY fm.joined_at ASC`

	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var members []*models.Profile
	for rows.Next() {
		profile := &models.Profile{}
		if err := rows.Scan(
			&profile.ID,
			&profile.LineUserID,
			&profile.DisplayName,
			&profile.Role,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		members = append(members, profile)
	}

	return members, rows.Err()
}

func (r *familyRepository) scanOne(row *sql.Row, by string) (*models.Family, error) {
	family := &models.Family{}
	err := row.Scan(
		&family.ID,
		&family.LineGroupID,
		&family.Name,
		&family.CreatedAt,
		&family.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get family by %s: %w", by, err)
	}

	return family, nil
}
