package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/meibo/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, first_name, last_name, picture, google_id, access_token, is_admin, created_at, updated_at`

// scanUser は1行分のユーザーをスキャンする。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.Picture, &user.GoogleID, &user.AccessToken, &user.IsAdmin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。emailの重複はエラーになる。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, picture, google_id, access_token, is_admin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.FirstName, user.LastName,
		user.Picture, user.GoogleID, user.AccessToken, user.IsAdmin,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateLoginInfo はログイン成功時にGoogleから取得した表示情報と
// プロバイダートークンを更新し、更新後のユーザーを返す。
func (r *PostgresUserRepo) UpdateLoginInfo(ctx context.Context, id, firstName, lastName, picture, googleID, accessToken string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET first_name = $2, last_name = $3, picture = $4, google_id = $5, access_token = $6, updated_at = $7
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, firstName, lastName, picture, googleID, accessToken, time.Now(),
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update login info: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
