package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/meibo/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

const profileColumns = `id, name, first_name, description, title, created_at, updated_at`

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	).Scan(
		&profile.ID, &profile.Name, &profile.FirstName,
		&profile.Description, &profile.Title,
		&profile.CreatedAt, &profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	return profile, nil
}

// ListAll は全プロフィールを作成日時の降順（新しい順）で返す。
func (r *PostgresProfileRepo) ListAll(ctx context.Context) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		profile := &model.Profile{}
		if err := rows.Scan(
			&profile.ID, &profile.Name, &profile.FirstName,
			&profile.Description, &profile.Title,
			&profile.CreatedAt, &profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}

// Create はプロフィールを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, first_name, description, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.ID, profile.Name, profile.FirstName,
		profile.Description, profile.Title,
		profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Update はプロフィール全体を上書き更新する。
func (r *PostgresProfileRepo) Update(ctx context.Context, profile *model.Profile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles
		 SET name = $2, first_name = $3, description = $4, title = $5, updated_at = $6
		 WHERE id = $1`,
		profile.ID, profile.Name, profile.FirstName,
		profile.Description, profile.Title, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", profile.ID)
	}
	return nil
}

// Delete は指定IDのプロフィールを削除する。対象が存在しない場合はエラーを返す。
func (r *PostgresProfileRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
