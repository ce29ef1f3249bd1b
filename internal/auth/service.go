// Package auth はOAuth認証フローとJWTの発行・検証を提供する。
package auth

import (
	"context"
	"log/slog"

	"github.com/hitoshi/meibo/internal/model"
	"github.com/hitoshi/meibo/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	FirstName      string
	LastName       string
	Picture        string
	AccessToken    string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// LoginStatus はログイン試行の終端状態を表す。
type LoginStatus int

const (
	// LoginSuccess は登録済みユーザーのログイン成功を示す。
	LoginSuccess LoginStatus = iota
	// LoginNotRegistered は認証自体は成功したが、
	// そのメールアドレスのユーザーが未登録であることを示す。
	LoginNotRegistered
	// LoginFailed はプロバイダーとの往復自体の失敗を示す。
	LoginFailed
)

// LoginOutcome はログイン試行1回の結果を表す。
// Successの場合のみUserが非nil、NotRegisteredの場合のみMessageが設定される。
type LoginOutcome struct {
	Status  LoginStatus
	User    *model.User
	Message string
}

// notRegisteredMessage は未登録ユーザーに表示するメッセージ。
// 自己登録は提供しないため、管理者への連絡を促す。
const notRegisteredMessage = "このメールアドレスは登録されていません。管理者に登録を依頼してください。"

// LoginMetrics はログイン結果のメトリクス記録インターフェース。
type LoginMetrics interface {
	RecordLoginSuccess()
	RecordLoginNotRegistered()
	RecordLoginFailure()
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	userRepo repository.UserRepository
	metrics  LoginMetrics // nil可
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(oauth OAuthProvider, userRepo repository.UserRepository, metrics LoginMetrics) *Service {
	return &Service{
		oauth:    oauth,
		userRepo: userRepo,
		metrics:  metrics,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、ログイン結果を返す。
// 未登録メールアドレスはNotRegisteredで終端し、アカウントの自動作成は行わない。
// 登録済みユーザーはGoogleから取得した表示名・アイコン・プロバイダートークンで
// 更新される（upsert-on-login）。同一の認証結果で再実行しても同じ状態に収束する。
func (s *Service) HandleCallback(ctx context.Context, code string) LoginOutcome {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		slog.Error("oauth code exchange failed", slog.String("error", err.Error()))
		s.recordFailure()
		return LoginOutcome{Status: LoginFailed}
	}

	// 2. メールアドレスで登録済みユーザーを検索
	user, err := s.userRepo.FindByEmail(ctx, userInfo.Email)
	if err != nil {
		slog.Error("failed to find user by email", slog.String("error", err.Error()))
		s.recordFailure()
		return LoginOutcome{Status: LoginFailed}
	}

	if user == nil {
		// 未登録: アカウントは作成しない
		slog.Warn("login attempt by unregistered email",
			slog.String("email", userInfo.Email),
			slog.String("provider", userInfo.Provider),
		)
		if s.metrics != nil {
			s.metrics.RecordLoginNotRegistered()
		}
		return LoginOutcome{Status: LoginNotRegistered, Message: notRegisteredMessage}
	}

	// 3. Googleを表示フィールドの情報源として扱い、ログインのたびに更新する
	updated, err := s.userRepo.UpdateLoginInfo(ctx,
		user.ID,
		userInfo.FirstName,
		userInfo.LastName,
		userInfo.Picture,
		userInfo.ProviderUserID,
		userInfo.AccessToken,
	)
	if err != nil {
		slog.Error("failed to refresh user login info", slog.String("error", err.Error()))
		s.recordFailure()
		return LoginOutcome{Status: LoginFailed}
	}

	slog.Info("user logged in",
		slog.String("user_id", updated.ID),
		slog.String("provider", userInfo.Provider),
	)
	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}

	return LoginOutcome{Status: LoginSuccess, User: updated}
}

// FindUserByID はトークン再発行時のユーザー解決に使うパススルー検索。
// 見つからない場合はnilを返す。
func (s *Service) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

func (s *Service) recordFailure() {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure()
	}
}
