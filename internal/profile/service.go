// Package profile はプロフィール管理のドメインロジックを提供する。
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/meibo/internal/model"
	"github.com/hitoshi/meibo/internal/repository"
	"github.com/hitoshi/meibo/internal/security"
)

// 各フィールドの最小文字数。フロントエンドのバリデーションと揃える。
const (
	minNameLength        = 2
	minFirstNameLength   = 2
	minDescriptionLength = 10
	minTitleLength       = 3
)

// CreateProfileInput はプロフィール作成の入力。
type CreateProfileInput struct {
	Name        string
	FirstName   string
	Description string
	Title       string
}

// UpdateProfileInput はプロフィール部分更新の入力。
// nilのフィールドは既存値を維持する。
type UpdateProfileInput struct {
	Name        *string
	FirstName   *string
	Description *string
	Title       *string
}

// ProfileService はプロフィールのCRUDを提供するサービス層。
// 説明文はHTMLとして保存されるため、保存前にサニタイズする。
type ProfileService struct {
	profileRepo repository.ProfileRepository
	sanitizer   security.DescriptionSanitizerService
}

// NewProfileService はProfileServiceの新しいインスタンスを生成する。
func NewProfileService(
	profileRepo repository.ProfileRepository,
	sanitizer security.DescriptionSanitizerService,
) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		sanitizer:   sanitizer,
	}
}

// Create はプロフィールを新規作成する。
// すべてのフィールドが必須で、最小文字数を満たす必要がある。
func (s *ProfileService) Create(ctx context.Context, input CreateProfileInput) (*model.Profile, error) {
	name := strings.TrimSpace(input.Name)
	firstName := strings.TrimSpace(input.FirstName)
	description := strings.TrimSpace(input.Description)
	title := strings.TrimSpace(input.Title)

	if err := validateField("name", name, minNameLength); err != nil {
		return nil, err
	}
	if err := validateField("firstName", firstName, minFirstNameLength); err != nil {
		return nil, err
	}
	if err := validateField("description", description, minDescriptionLength); err != nil {
		return nil, err
	}
	if err := validateField("title", title, minTitleLength); err != nil {
		return nil, err
	}

	now := time.Now()
	profile := &model.Profile{
		ID:          uuid.New().String(),
		Name:        name,
		FirstName:   firstName,
		Description: s.sanitizer.Sanitize(description),
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}

	return profile, nil
}

// List は全プロフィールを作成日時の降順で取得する。
func (s *ProfileService) List(ctx context.Context) ([]*model.Profile, error) {
	profiles, err := s.profileRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("プロフィール一覧の取得に失敗しました: %w", err)
	}
	return profiles, nil
}

// Get は指定IDのプロフィールを取得する。
// 存在しない場合はPROFILE_NOT_FOUNDエラーを返す。
func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError(id)
	}
	return profile, nil
}

// Update は指定IDのプロフィールを部分更新する。
// 入力に含まれるフィールドのみを更新し、残りは既存値を維持する。
func (s *ProfileService) Update(ctx context.Context, id string, input UpdateProfileInput) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError(id)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateField("name", name, minNameLength); err != nil {
			return nil, err
		}
		profile.Name = name
	}
	if input.FirstName != nil {
		firstName := strings.TrimSpace(*input.FirstName)
		if err := validateField("firstName", firstName, minFirstNameLength); err != nil {
			return nil, err
		}
		profile.FirstName = firstName
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if err := validateField("description", description, minDescriptionLength); err != nil {
			return nil, err
		}
		profile.Description = s.sanitizer.Sanitize(description)
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := validateField("title", title, minTitleLength); err != nil {
			return nil, err
		}
		profile.Title = title
	}

	profile.UpdatedAt = time.Now()

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	return profile, nil
}

// Delete は指定IDのプロフィールを削除する。
// 存在しない場合はPROFILE_NOT_FOUNDエラーを返す。
func (s *ProfileService) Delete(ctx context.Context, id string) error {
	profile, err := s.profileRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return model.NewProfileNotFoundError(id)
	}

	if err := s.profileRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}

	return nil
}

// validateField はトリム済みの値が必須かつ最小文字数を満たすか検証する。
// 文字数はバイト数ではなくルーン数で数える。
func validateField(field, value string, minLength int) error {
	if value == "" {
		return model.NewValidationError(fmt.Sprintf("%sは必須です。", field))
	}
	if utf8.RuneCountInString(value) < minLength {
		return model.NewValidationError(fmt.Sprintf("%sは%d文字以上で入力してください。", field, minLength))
	}
	return nil
}
