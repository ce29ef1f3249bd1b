package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/meibo/internal/middleware"
)

// Pinger はヘルスチェック用のDB疎通確認インターフェース。
// sql.DBの部分集合として定義する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	Guard             *middleware.Guard
	RateLimiter       *middleware.RateLimiter
	HTTPMetrics       middleware.HTTPMetrics // nil可

	// 認証
	AuthService  AuthServiceInterface
	TokenIssuer  TokenIssuer
	TokenMetrics TokenMetrics // nil可
	AuthConfig   AuthHandlerConfig

	// プロフィール
	ProfileService ProfileServiceInterface

	// 運用
	DB             Pinger
	MetricsHandler http.Handler // nil可。/metricsを公開しない構成用
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → RateLimit(General)
//
// 閲覧系（GET /profiles等）は認証不要。更新系はAdminガード + 更新系レート制限の背後に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(deps.RateLimiter.GeneralMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.TokenIssuer, deps.AuthConfig, deps.TokenMetrics)
	profileHandler := NewProfileHandler(deps.ProfileService)
	userHandler := NewUserHandler()

	// --- 認証フロー ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Get("/google/token", authHandler.Token)
		r.Get("/generate-jwt", authHandler.GenerateJWT)
	})

	// --- プロフィール ---
	r.Route("/profiles", func(r chi.Router) {
		// 閲覧系は認証不要
		r.Get("/", profileHandler.ListProfiles)
		r.Get("/{id}", profileHandler.GetProfile)

		// 更新系は管理者ガード + 更新系レート制限
		r.Group(func(r chi.Router) {
			r.Use(deps.Guard.AdminMiddleware())
			r.Use(deps.RateLimiter.MutationMiddleware())

			r.Post("/", profileHandler.CreateProfile)
			r.Patch("/{id}", profileHandler.UpdateProfile)
			r.Delete("/{id}", profileHandler.DeleteProfile)
		})
	})

	// --- ユーザー ---
	r.Group(func(r chi.Router) {
		r.Use(deps.Guard.UserMiddleware())
		r.Get("/users/me", userHandler.Me)
	})

	// --- 運用 ---
	r.Get("/health", healthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	return r
}

// healthHandler はDB疎通を含むヘルスチェックハンドラーを返す。
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ok"
		statusCode := http.StatusOK
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				slog.Error("health check db ping failed", slog.String("error", err.Error()))
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
