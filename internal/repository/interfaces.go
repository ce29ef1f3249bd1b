// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/meibo/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーの新規作成はadduserサブコマンド経由のみ。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。emailの重複はエラーになる。
	Create(ctx context.Context, user *model.User) error

	// UpdateLoginInfo はログイン成功時にGoogleから取得した表示情報と
	// プロバイダートークンを更新し、更新後のユーザーを返す。
	// 単一行のUPDATEでありlast-writer-winsとする。
	UpdateLoginInfo(ctx context.Context, id, firstName, lastName, picture, googleID, accessToken string) (*model.User, error)
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// ListAll は全プロフィールを作成日時の降順（新しい順）で返す。
	ListAll(ctx context.Context) ([]*model.Profile, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.Profile) error

	// Update はプロフィール全体を上書き更新する。
	// 部分更新のマージはサービス層で行う。
	Update(ctx context.Context, profile *model.Profile) error

	// Delete は指定IDのプロフィールを削除する。
	// 対象が存在しない場合はエラーを返す。
	Delete(ctx context.Context, id string) error
}
