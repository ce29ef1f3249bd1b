package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/meibo/internal/auth"
	"github.com/hitoshi/meibo/internal/middleware"
	"github.com/hitoshi/meibo/internal/model"
	"github.com/hitoshi/meibo/internal/profile"
)

// routerTestUserStore はガードが参照するユーザーストアのテスト実装。
// 管理者フラグの動的な変更をシミュレートできる。
type routerTestUserStore struct {
	users map[string]*model.User
}

func (s *routerTestUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.users[id], nil
}

var _ middleware.UserFinder = (*routerTestUserStore)(nil)

type routerTestEnv struct {
	router  http.Handler
	tokens  *auth.TokenService
	store   *routerTestUserStore
	limiter *middleware.RateLimiter
}

func newRouterTestEnv(t *testing.T, profileService ProfileServiceInterface) *routerTestEnv {
	t.Helper()

	tokens, err := auth.NewTokenService("router-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}

	store := &routerTestUserStore{
		users: map[string]*model.User{
			"admin-1": {ID: "admin-1", Email: "admin@example.com", IsAdmin: true},
			"user-1":  {ID: "user-1", Email: "member@example.com", IsAdmin: false},
		},
	}

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	router := NewRouter(&RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: "http://localhost:3000",
		Guard:             middleware.NewGuard(tokens, store, nil),
		RateLimiter:       limiter,
		AuthService:       &mockAuthService{},
		TokenIssuer:       tokens,
		AuthConfig:        testAuthConfig(),
		ProfileService:    profileService,
	})

	return &routerTestEnv{router: router, tokens: tokens, store: store, limiter: limiter}
}

func (env *routerTestEnv) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := env.tokens.Issue(env.store.users[userID])
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// --- テスト ---

func TestRouter_PublicProfileListing_NoAuthRequired(t *testing.T) {
	service := &mockProfileService{
		listFn: func(ctx context.Context) ([]*model.Profile, error) {
			return []*model.Profile{sampleProfile("p1")}, nil
		},
	}
	env := newRouterTestEnv(t, service)

	req := httptest.NewRequest(http.MethodGet, "/profiles", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// 更新系エンドポイントの認可の段階を検証する:
// トークンなし→401、一般ユーザー→403、管理者→201
func TestRouter_CreateProfile_AuthorizationLadder(t *testing.T) {
	service := &mockProfileService{
		createFn: func(ctx context.Context, input profile.CreateProfileInput) (*model.Profile, error) {
			return sampleProfile("p-new"), nil
		},
	}
	env := newRouterTestEnv(t, service)

	body := `{"name":"山田","firstName":"太郎","description":"バックエンドエンジニアです。","title":"シニアエンジニア"}`

	// 1. トークンなし → 401
	req := httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Result().StatusCode)
	}

	// 2. 一般ユーザーのトークン → 403
	req = httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+env.tokenFor(t, "user-1"))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("member token: status = %d, want 403", w.Result().StatusCode)
	}

	// 3. 管理者のトークン → 201
	req = httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+env.tokenFor(t, "admin-1"))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("admin token: status = %d, want 201", w.Result().StatusCode)
	}
}

// トークン発行後に管理者権限を剥奪すると、
// 同じトークンでも以降の更新系リクエストが403になることを検証する。
func TestRouter_AdminRevokedAfterTokenIssued_Returns403(t *testing.T) {
	service := &mockProfileService{
		createFn: func(ctx context.Context, input profile.CreateProfileInput) (*model.Profile, error) {
			return sampleProfile("p-new"), nil
		},
	}
	env := newRouterTestEnv(t, service)

	token := env.tokenFor(t, "admin-1")
	body := `{"name":"山田","firstName":"太郎","description":"バックエンドエンジニアです。","title":"シニアエンジニア"}`

	// 発行直後は作成できる
	req := httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("before revoke: status = %d, want 201", w.Result().StatusCode)
	}

	// 権限剥奪
	env.store.users["admin-1"].IsAdmin = false

	// 同じトークンでも403
	req = httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("after revoke: status = %d, want 403", w.Result().StatusCode)
	}
}

func TestRouter_UsersMe_RequiresToken(t *testing.T) {
	env := newRouterTestEnv(t, &mockProfileService{})

	// トークンなし → 401
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Result().StatusCode)
	}

	// 一般ユーザーでも取得できる
	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+env.tokenFor(t, "user-1"))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("member token: status = %d, want 200", w.Result().StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["id"] != "user-1" {
		t.Errorf("id = %v, want user-1", body["id"])
	}
}

func TestRouter_Health_ReturnsOK(t *testing.T) {
	env := newRouterTestEnv(t, &mockProfileService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestRouter_OptionsPreflight_Returns204WithCORSHeaders(t *testing.T) {
	env := newRouterTestEnv(t, &mockProfileService{})

	req := httptest.NewRequest(http.MethodOptions, "/profiles", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Error("Authorization should be an allowed CORS header")
	}
}

func TestRouter_SecurityHeaders_PresentOnResponses(t *testing.T) {
	env := newRouterTestEnv(t, &mockProfileService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
