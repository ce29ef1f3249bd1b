// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/meibo/internal/auth"
	"github.com/hitoshi/meibo/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) auth.LoginOutcome
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// TokenIssuer はJWT発行のインターフェース。
// auth.TokenServiceの部分集合として定義する。
type TokenIssuer interface {
	Issue(user *model.User) (string, error)
}

// TokenMetrics はトークン発行のメトリクス記録インターフェース。
type TokenMetrics interface {
	RecordTokenIssued()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	FrontURL     string // リダイレクト先フロントエンドのベースURL（末尾スラッシュなし）
	CookieSecure bool
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
// ブラウザ向けのリダイレクトフローとAPIクライアント向けのJSONフローの両方を提供する。
type AuthHandler struct {
	service AuthServiceInterface
	tokens  TokenIssuer
	config  AuthHandlerConfig
	metrics TokenMetrics // nil可
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, tokens TokenIssuer, config AuthHandlerConfig, metrics TokenMetrics) *AuthHandler {
	return &AuthHandler{
		service: service,
		tokens:  tokens,
		config:  config,
		metrics: metrics,
	}
}

// userResponse はフロントエンドに返すユーザー情報。
// プロバイダーのアクセストークンは含めない。
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Picture   string `json:"picture"`
	IsAdmin   bool   `json:"isAdmin"`
}

// redirectUserPayload はコールバックのリダイレクトに埋め込むユーザー情報。
// フロントエンドがクエリパラメータから復元する。
type redirectUserPayload struct {
	userResponse
	JwtToken string `json:"jwtToken"`
}

// tokenSuccessResponse はJSONフローのログイン成功レスポンス。
type tokenSuccessResponse struct {
	Success     bool         `json:"success"`
	User        userResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
}

// authErrorResponse はJSONフローのエラーレスポンス。
type authErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.service.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理し、結果をフロントエンドへの
// リダイレクトで伝える。
// 成功: {FRONT_URL}/login?user=<URLエンコードされたユーザーJSON（jwtToken含む）>
// 未登録: {FRONT_URL}/login?error=user_not_registered&message=<メッセージ>
// 失敗: {FRONT_URL}/login?error=auth_failed
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.redirectWithError(w, r, "auth_failed", "")
		return
	}
	h.clearStateCookie(w)

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "auth_failed", "")
		return
	}

	// 3. 認証処理
	outcome := h.service.HandleCallback(r.Context(), code)
	switch outcome.Status {
	case auth.LoginSuccess:
		token, err := h.issueToken(outcome.User)
		if err != nil {
			slog.Error("failed to issue token", slog.String("error", err.Error()))
			h.redirectWithError(w, r, "auth_failed", "")
			return
		}

		payload := redirectUserPayload{
			userResponse: toUserResponse(outcome.User),
			JwtToken:     token,
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			slog.Error("failed to marshal user payload", slog.String("error", err.Error()))
			h.redirectWithError(w, r, "auth_failed", "")
			return
		}

		redirect := h.config.FrontURL + "/login?user=" + url.QueryEscape(string(encoded))
		http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)

	case auth.LoginNotRegistered:
		h.redirectWithError(w, r, "user_not_registered", outcome.Message)

	default:
		h.redirectWithError(w, r, "auth_failed", "")
	}
}

// Token はOAuthコールバックを処理し、結果をJSONで返す。
// リダイレクトを扱えないAPIクライアント向けのフロー。
// GET /auth/google/token?code=xxx
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeAuthError(w, http.StatusBadRequest, "auth_failed", "認可コードがありません。")
		return
	}

	outcome := h.service.HandleCallback(r.Context(), code)
	switch outcome.Status {
	case auth.LoginSuccess:
		token, err := h.issueToken(outcome.User)
		if err != nil {
			slog.Error("failed to issue token", slog.String("error", err.Error()))
			writeAuthError(w, http.StatusInternalServerError, "internal_error", "内部エラーが発生しました。")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenSuccessResponse{
			Success:     true,
			User:        toUserResponse(outcome.User),
			AccessToken: token,
			TokenType:   "Bearer",
		})

	case auth.LoginNotRegistered:
		writeAuthError(w, http.StatusForbidden, "user_not_registered", outcome.Message)

	default:
		writeAuthError(w, http.StatusUnauthorized, "auth_failed", "認証に失敗しました。")
	}
}

// GenerateJWT は既存ユーザーのトークンを再発行する。
// GET /auth/generate-jwt?userId=xxx
func (h *AuthHandler) GenerateJWT(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeAuthError(w, http.StatusBadRequest, "missing_user_id", "userIdパラメータが必要です。")
		return
	}

	user, err := h.service.FindUserByID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		writeAuthError(w, http.StatusInternalServerError, "internal_error", "内部エラーが発生しました。")
		return
	}
	if user == nil {
		writeAuthError(w, http.StatusNotFound, "user_not_found", "指定されたユーザーが見つかりません。")
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		slog.Error("failed to issue token", slog.String("error", err.Error()))
		writeAuthError(w, http.StatusInternalServerError, "internal_error", "内部エラーが発生しました。")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokenSuccessResponse{
		Success:     true,
		User:        toUserResponse(user),
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

// issueToken はトークンを発行し、メトリクスを記録する。
func (h *AuthHandler) issueToken(user *model.User) (string, error) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		return "", err
	}
	if h.metrics != nil {
		h.metrics.RecordTokenIssued()
	}
	return token, nil
}

// redirectWithError はエラー情報付きでフロントエンドのログイン画面にリダイレクトする。
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, errCode, message string) {
	redirect := h.config.FrontURL + "/login?error=" + url.QueryEscape(errCode)
	if message != "" {
		redirect += "&message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}

// clearStateCookie はstateクッキーを削除する。
func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
// プロバイダーのアクセストークンは含めない。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Picture:   user.Picture,
		IsAdmin:   user.IsAdmin,
	}
}

// writeAuthError は認証フローのJSONエラーレスポンスを書き込む。
func writeAuthError(w http.ResponseWriter, statusCode int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(authErrorResponse{
		Success: false,
		Error:   errCode,
		Message: message,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
