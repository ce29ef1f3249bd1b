// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/meibo/internal/auth"
	"github.com/hitoshi/meibo/internal/config"
	"github.com/hitoshi/meibo/internal/database"
	"github.com/hitoshi/meibo/internal/handler"
	"github.com/hitoshi/meibo/internal/logger"
	"github.com/hitoshi/meibo/internal/metrics"
	"github.com/hitoshi/meibo/internal/middleware"
	"github.com/hitoshi/meibo/internal/model"
	"github.com/hitoshi/meibo/internal/profile"
	"github.com/hitoshi/meibo/internal/repository"
	"github.com/hitoshi/meibo/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5001"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("front_url", cfg.FrontURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandAddUser:
		return runAddUser(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(oauthProvider, userRepo, collector)

	tokenService, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	sanitizer := security.NewDescriptionSanitizer()
	profileService := profile.NewProfileService(profileRepo, sanitizer)

	// 5. ミドルウェアの初期化
	guard := middleware.NewGuard(tokenService, userRepo, collector)

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.MutationRate = rate.Limit(float64(cfg.RateLimitMutation) / 60.0)
	rateLimiterCfg.MutationBurst = cfg.RateLimitMutation
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Guard:             guard,
		RateLimiter:       rateLimiter,
		HTTPMetrics:       collector,

		AuthService:  authService,
		TokenIssuer:  tokenService,
		TokenMetrics: collector,
		AuthConfig: handler.AuthHandlerConfig{
			FrontURL:     cfg.FrontURL,
			CookieSecure: cfg.CookieSecure,
		},

		ProfileService: profileService,

		DB:             db,
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runAddUser はログイン可能なユーザーを登録する運用コマンド。
// 自己登録は提供しないため、ユーザーの追加はこのコマンドで行う。
//
//	meibo adduser -email taro@example.com -first-name 太郎 -last-name 山田 [-admin]
func runAddUser(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	email := fs.String("email", "", "登録するメールアドレス（必須）")
	firstName := fs.String("first-name", "", "名")
	lastName := fs.String("last-name", "", "姓")
	isAdmin := fs.Bool("admin", false, "管理者権限を付与する")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("email is required")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	userRepo := repository.NewPostgresUserRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := userRepo.FindByEmail(ctx, *email)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("user already exists: %s", *email)
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     *email,
		FirstName: *firstName,
		LastName:  *lastName,
		IsAdmin:   *isAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.Bool("is_admin", user.IsAdmin),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
