// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/slotwatch/internal/availability"
	"github.com/hitoshi/slotwatch/internal/booking"
	"github.com/hitoshi/slotwatch/internal/calendar"
	"github.com/hitoshi/slotwatch/internal/config"
	"github.com/hitoshi/slotwatch/internal/database"
	"github.com/hitoshi/slotwatch/internal/handler"
	"github.com/hitoshi/slotwatch/internal/history"
	"github.com/hitoshi/slotwatch/internal/logger"
	"github.com/hitoshi/slotwatch/internal/metrics"
	"github.com/hitoshi/slotwatch/internal/notify"
	"github.com/hitoshi/slotwatch/internal/repository"
	"github.com/hitoshi/slotwatch/internal/run"
	"github.com/hitoshi/slotwatch/internal/security"
	"github.com/hitoshi/slotwatch/internal/worker/watch"
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
		slog.String("timezone", cfg.Timezone),
		slog.Int("months_lookahead", cfg.MonthsLookahead),
	)

	switch cmd {
	case CommandWatch:
		return runWatch(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runOnce(cfg)
	}
}

// pipeline は1回分の実行に必要な依存一式。
type pipeline struct {
	runner *run.Runner
	db     *sql.DB
}

// buildPipeline は設定から実行パイプラインの全依存関係をワイヤリングする。
// 設定不備（タイムゾーン、受信者定義、ベースURL）はここで検出され、
// 実行前の前提条件エラーとして返る。
func buildPipeline(cfg *config.Config, reg prometheus.Registerer) (*pipeline, error) {
	// 1. カレンダー（プロセス全体で共有する固定タイムゾーン）
	cal, err := calendar.New(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	// 2. 受信者定義と関心条件
	specs, err := config.LoadRecipients(cfg.RecipientsFile)
	if err != nil {
		return nil, err
	}
	recipients, err := notify.BuildRecipients(specs, cal)
	if err != nil {
		return nil, err
	}

	// 3. 予約サイトのベースURL検証
	if err := security.ValidateBaseURL(cfg.BookingBaseURL); err != nil {
		return nil, fmt.Errorf("BOOKING_BASE_URL が不正です: %w", err)
	}

	// 4. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 5. メトリクス
	collector := metrics.NewCollector(reg)

	// 6. 予約サイトクライアントとフェッチャー
	client := booking.NewClient(
		security.NewSafeClient(cfg.FetchTimeout),
		slog.Default(),
		strings.TrimRight(cfg.BookingBaseURL, "/"),
		booking.RetryPolicy{MaxAttempts: cfg.MaxFetchRetries},
		cfg.FetchRateLimit,
		collector,
	)
	fetcher := availability.NewFetcher(client, cal, slog.Default(), cfg.FetchMaxConcurrent, collector)

	// 7. 履歴サービス
	slotRepo := repository.NewPostgresSlotRepo(db)
	historySvc := history.NewService(slotRepo, slog.Default(), collector)

	// 8. 通知ディスパッチャー
	renderer, err := notify.NewTemplateRenderer(cal)
	if err != nil {
		db.Close()
		return nil, err
	}
	deliverer := notify.NewSMTPDeliverer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	dispatcher := notify.NewDispatcher(renderer, deliverer, slog.Default(), collector)

	// 9. オーケストレーター
	runner := run.NewRunner(
		client, fetcher, historySvc, dispatcher,
		recipients, cfg.MonthsLookahead, slog.Default(),
	)

	return &pipeline{runner: runner, db: db}, nil
}

// runOnce は1回分の実行を行うバッチモード。
// フェッチまたは履歴更新の失敗は実行全体の失敗として終了コードに反映される。
// 配信の失敗は部分的な成功として扱い、プロセスは正常終了する。
func runOnce(cfg *config.Config) error {
	p, err := buildPipeline(cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer p.db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := p.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	slog.Info("run completed",
		slog.Int("new_slots", report.NewSlots),
		slog.Any("delivered", report.Delivered),
	)

	return nil
}

// runWatch は監視モードで起動する。
// 実行パイプラインをティッカーで定期実行し、あわせて /health と /metrics を
// 提供するHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWatch(cfg *config.Config) error {
	reg := prometheus.NewRegistry()

	p, err := buildPipeline(cfg, reg)
	if err != nil {
		return err
	}
	defer p.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// 監視用HTTPサーバー
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(p.db, reg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("watch server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-stop
		slog.Info("shutting down watcher...")
		cancel()
	}()

	slog.Info("watcher starting",
		slog.Duration("watch_interval", cfg.WatchInterval),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler := watch.NewScheduler(p.runner, slog.Default())
	scheduler.Start(ctx, cfg.WatchInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("watcher stopped gracefully")
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
