// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/meibo/internal/auth"
	"github.com/hitoshi/meibo/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("authenticated_user")

// TokenVerifier はBearerトークンの検証に必要なインターフェース。
// auth.TokenServiceの部分集合として定義する。
type TokenVerifier interface {
	Verify(token string) (*auth.TokenClaims, error)
}

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// GuardMetrics はガードによる拒否を記録するインターフェース。
type GuardMetrics interface {
	RecordGuardDenied(reason string)
}

// GuardError はガードの検証失敗を表す。
// HTTPステータスコードと統一エラーフォーマットのペア。
type GuardError struct {
	StatusCode int
	APIError   *model.APIError
}

// Guard はAuthorizationヘッダーのBearerトークンを検証し、
// DB上の最新のユーザー情報と突き合わせるアクセスガード。
// トークン内のisAdminクレームは参考情報であり、権限判定には使用しない。
// 発行後に権限が剥奪されたトークンを即座に無効化するため、
// リクエストごとにDBの現在の管理者フラグを確認する。
type Guard struct {
	verifier TokenVerifier
	users    UserFinder
	metrics  GuardMetrics
}

// NewGuard は新しいGuardを生成する。
// metricsはnil可（テストや計測不要の構成用）。
func NewGuard(verifier TokenVerifier, users UserFinder, metrics GuardMetrics) *Guard {
	return &Guard{
		verifier: verifier,
		users:    users,
		metrics:  metrics,
	}
}

// Authenticate はAuthorizationヘッダーを検証し、認証済みユーザーを返す。
// 1. "Bearer <token>" 形式のヘッダーからトークンを抽出
// 2. トークンの署名と有効期限を検証
// 3. subjectのユーザーがDBに存在することを確認
// 失敗時はGuardErrorを返す。
func (g *Guard) Authenticate(ctx context.Context, authorization string) (*model.User, *GuardError) {
	token, ok := extractBearerToken(authorization)
	if !ok {
		g.recordDenied("missing_token")
		return nil, &GuardError{
			StatusCode: http.StatusUnauthorized,
			APIError:   model.NewUnauthorizedError("認証トークンが必要です。"),
		}
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		g.recordDenied("invalid_token")
		return nil, &GuardError{
			StatusCode: http.StatusUnauthorized,
			APIError:   model.NewUnauthorizedError("トークンが無効または期限切れです。"),
		}
	}

	user, err := g.users.FindByID(ctx, claims.Subject)
	if err != nil {
		slog.Error("failed to find user for token subject",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
		g.recordDenied("lookup_failed")
		return nil, &GuardError{
			StatusCode: http.StatusInternalServerError,
			APIError:   model.NewInternalError(),
		}
	}
	if user == nil {
		g.recordDenied("user_not_found")
		return nil, &GuardError{
			StatusCode: http.StatusUnauthorized,
			APIError:   model.NewUnauthorizedError("ユーザーが見つかりません。"),
		}
	}

	return user, nil
}

// AuthenticateAdmin はAuthenticateに加えて、DB上の現在の管理者フラグを確認する。
// トークン発行時のクレームではなく、リクエスト時点の権限で判定する。
func (g *Guard) AuthenticateAdmin(ctx context.Context, authorization string) (*model.User, *GuardError) {
	user, guardErr := g.Authenticate(ctx, authorization)
	if guardErr != nil {
		return nil, guardErr
	}

	if !user.IsAdmin {
		g.recordDenied("not_admin")
		return nil, &GuardError{
			StatusCode: http.StatusForbidden,
			APIError:   model.NewForbiddenError(),
		}
	}

	return user, nil
}

// UserMiddleware は認証済みユーザーのみを通すミドルウェアを返す。
// 検証に成功した場合、ユーザーをリクエストコンテキストに注入する。
func (g *Guard) UserMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, guardErr := g.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if guardErr != nil {
				WriteErrorResponse(w, guardErr.StatusCode, guardErr.APIError)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// AdminMiddleware は管理者のみを通すミドルウェアを返す。
// 検証に成功した場合、ユーザーをリクエストコンテキストに注入する。
func (g *Guard) AdminMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, guardErr := g.AuthenticateAdmin(r.Context(), r.Header.Get("Authorization"))
			if guardErr != nil {
				WriteErrorResponse(w, guardErr.StatusCode, guardErr.APIError)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

func (g *Guard) recordDenied(reason string) {
	if g.metrics != nil {
		g.metrics.RecordGuardDenied(reason)
	}
}

// extractBearerToken は "Bearer <token>" 形式のヘッダーからトークンを取り出す。
// スキーム名は大文字小文字を区別せず、トークン部が空の場合は失敗とする。
func extractBearerToken(authorization string) (string, bool) {
	if authorization == "" {
		return "", false
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// ガードミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("authenticated user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
