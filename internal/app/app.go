package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/smartkhata/internal/account"
	"github.com/hitoshi/smartkhata/internal/config"
	"github.com/hitoshi/smartkhata/internal/contact"
	"github.com/hitoshi/smartkhata/internal/database"
	"github.com/hitoshi/smartkhata/internal/handler"
	"github.com/hitoshi/smartkhata/internal/logger"
	"github.com/hitoshi/smartkhata/internal/metrics"
	"github.com/hitoshi/smartkhata/internal/notify"
	"github.com/hitoshi/smartkhata/internal/repository"
	"github.com/hitoshi/smartkhata/internal/security"
	"github.com/hitoshi/smartkhata/internal/transaction"
	"github.com/hitoshi/smartkhata/internal/validate"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

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
	cmd, err := ParseCommand(args)
	if err != nil {
		return fmt.Errorf("%w\n\n%s", err, Usage())
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
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
		slog.String("mail_provider", cfg.MailProvider),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 通知Senderの構築
	sender, err := newSender(cfg, slog.Default())
	if err != nil {
		return err
	}

	// 3. メトリクスレジストリの初期化
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "smartkhata"),
	)
	collector := metrics.NewCollector(reg)

	// 4. ルーターの構築
	router := newRouter(cfg, db, sender, collector, metrics.Handler(reg))

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
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

// newRouter はリポジトリ・サービス・ハンドラーをワイヤリングしてルーターを返す。
func newRouter(cfg *config.Config, db *sql.DB, sender notify.Sender, collector *metrics.Collector, metricsHandler http.Handler) http.Handler {
	// 1. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	txRepo := repository.NewPostgresTransactionRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)

	// 2. セキュリティサービスの初期化
	tokens := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	sanitizer := security.NewTextSanitizer()

	// 3. ドメインサービスの初期化
	accountService := account.NewService(account.Deps{
		Accounts: accountRepo,
		Hasher:   hasher,
		Tokens:   tokens,
		Notifier: sender,
		Phones:   validate.NewPhoneValidator(cfg.PhoneDefaultRegion),
		Events:   collector,
	}, account.ServiceConfig{OTPTTL: cfg.OTPTTL})
	txService := transaction.NewService(txRepo, accountRepo, sanitizer)
	contactService := contact.NewService(contactRepo, sanitizer)

	// 4. ルーターの構築
	return handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		TokenVerifier:      tokens,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HSTS:               cfg.HSTS,
		HTTPMetrics:        collector,
		MetricsHandler:     metricsHandler,
		Cookies: handler.CookieConfig{
			Domain:   cfg.CookieDomain,
			Secure:   cfg.CookieSecure,
			SameSite: handler.ParseSameSite(cfg.CookieSameSite),
			MaxAge:   cfg.TokenTTL,
		},
		AccountService:     accountService,
		TransactionService: txService,
		ContactService:     contactService,
		DB:                 db,
	})
}

// newSender は設定されたプロバイダーのSenderを生成する。
// 一時的な失敗を再送するRetryingと、送信ペースを制御するPacedで包む。
func newSender(cfg *config.Config, log *slog.Logger) (notify.Sender, error) {
	var base notify.Sender
	switch cfg.MailProvider {
	case config.MailProviderSMTP:
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			From:        cfg.MailFrom,
			ImplicitTLS: cfg.SMTPImplicitTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure smtp mailer: %w", err)
		}
		base = m
	case config.MailProviderAPI:
		if err := security.ValidateOutboundURL(cfg.MailAPIURL); err != nil {
			return nil, fmt.Errorf("invalid MAIL_API_URL: %w", err)
		}
		base = notify.NewAPIMailer(security.NewOutboundClient(cfg.MailTimeout), log, notify.APIMailerConfig{
			BaseURL: cfg.MailAPIURL,
			APIKey:  cfg.MailAPIKey,
			From:    cfg.MailFrom,
		})
	default:
		base = notify.NewLogSender(log)
	}
	attempts := cfg.MailMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retrying := notify.NewRetrying(base, uint64(attempts), 200*time.Millisecond)
	return notify.NewPaced(retrying, cfg.MailRatePerSec, cfg.MailBurst), nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// healthcheckURL はループバックIPv4上の/healthのURLを返す。
// localhostは名前解決次第で::1に向くため使わない。
func healthcheckURL(port string) string {
	return "http://" + net.JoinHostPort("127.0.0.1", port) + "/health"
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := healthcheckURL(port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
