package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/mindlog/internal/auth"
	"github.com/hitoshi/mindlog/internal/config"
	"github.com/hitoshi/mindlog/internal/database"
	"github.com/hitoshi/mindlog/internal/gateway"
	"github.com/hitoshi/mindlog/internal/goal"
	"github.com/hitoshi/mindlog/internal/handler"
	"github.com/hitoshi/mindlog/internal/llm"
	"github.com/hitoshi/mindlog/internal/logger"
	"github.com/hitoshi/mindlog/internal/metrics"
	"github.com/hitoshi/mindlog/internal/middleware"
	"github.com/hitoshi/mindlog/internal/note"
	"github.com/hitoshi/mindlog/internal/prompt"
	"github.com/hitoshi/mindlog/internal/repository"
	"github.com/hitoshi/mindlog/internal/security"
	"github.com/hitoshi/mindlog/internal/user"
	"github.com/hitoshi/mindlog/internal/wechat"
	"github.com/hitoshi/mindlog/internal/worker/cleanup"
)

// cleanupInterval は利用記録クリーンアップの実行間隔。
const cleanupInterval = 24 * time.Hour

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

	// 3. LOG_LEVELに合わせてロガーを再設定する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	if cmd == CommandHelp {
		_, err := io.WriteString(w, Usage())
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
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
		slog.String("llm_model", cfg.LLMModel),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// databaseConnectTimeout は起動時のDB疎通確認の上限。
const databaseConnectTimeout = 10 * time.Second

// openDatabase は設定のプール上限でDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return database.Connect(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, databaseConnectTimeout)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, limiter := buildRouter(cfg, db, slog.Default(), reg)
	defer limiter.Stop()

	// 長時間タスクの応答を書き切れるよう、書き込みタイムアウトはモデル呼び出しの上限より長くとる
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMLongTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter はリポジトリ、外部APIクライアント、ドメインサービスを組み立ててルーターを返す。
// 返されるRateLimiterはサーバー停止時にStopする。
func buildRouter(cfg *config.Config, db *sql.DB, log *slog.Logger, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter) {
	recorder := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	noteRepo := repository.NewPostgresNoteRepo(db)
	goalRepo := repository.NewPostgresGoalRepo(db)
	usageRepo := repository.NewPostgresUsageRepo(db)

	// 2. 外部APIクライアントの初期化
	wechatClient := wechat.NewClient(
		&http.Client{Timeout: cfg.WeChatTimeout},
		log,
		wechat.Config{
			AppID:     cfg.WeChatAppID,
			AppSecret: cfg.WeChatAppSecret,
			BaseURL:   cfg.WeChatBaseURL,
		},
	)
	tokenCache := wechat.NewTokenCache(wechatClient, log, recorder)
	phoneService := wechat.NewPhoneService(tokenCache, wechatClient, log)

	// タイムアウトはリクエストごとのコンテキストで制御する
	llmClient := llm.NewClient(&http.Client{}, log, llm.Config{
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
	})

	// 3. ドメインサービスの初期化
	sanitizer := security.NewContentSanitizer()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	authService := auth.NewService(wechatClient, userRepo, tokens, log)
	userService := user.NewService(userRepo, usageRepo, phoneService, log)
	noteService := note.NewService(noteRepo, sanitizer, log)
	goalService := goal.NewService(goalRepo, sanitizer, log)
	gatewayService := gateway.NewService(llmClient, prompt.NewCatalog(), recorder, log, gateway.Config{
		Timeout:     cfg.LLMTimeout,
		LongTimeout: cfg.LLMLongTimeout,
		Location:    cfg.Location(),
	})

	// 4. ルーターの構築（レート制限の設定値はreq/min単位）
	limiter := middleware.NewRateLimiter(
		middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitAI),
	)

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		Logger:            log,
		Metrics:           recorder,
		MetricsHandler:    metrics.Handler(reg),
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,

		AuthService: authService,
		UserService: userService,
		NoteService: noteService,
		GoalService: goalService,
		Gateway:     gatewayService,
		UsageWriter: usageRepo,
	}

	return handler.NewRouter(deps), limiter
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、利用記録のクリーンアップジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	cleanupJob := cleanup.NewJob(db, slog.Default(), cfg.LogRetentionDays)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("retention_days", cleanupJob.RetentionDays),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL, slog.Default()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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
