// Command goauth-server serves the goSessionAuth HTTP API.
//
// Configuration is read from the environment (and an optional .env file);
// see ConfigFromEnv for the variable names. Without DATABASE_URL the server
// keeps everything in memory, and without REDIS_URL rate limits are kept
// per process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/google"
	"github.com/MrEthical07/goSessionAuth/httpapi"
	"github.com/MrEthical07/goSessionAuth/internal/logging"
	"github.com/MrEthical07/goSessionAuth/internal/rate"
	"github.com/MrEthical07/goSessionAuth/internal/telemetry"
	"github.com/MrEthical07/goSessionAuth/mail"
	otelexport "github.com/MrEthical07/goSessionAuth/metrics/export/otel"
	"github.com/MrEthical07/goSessionAuth/metrics/export/prometheus"
	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/store/memory"
	"github.com/MrEthical07/goSessionAuth/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "goauth-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := goSessionAuth.ConfigFromEnv(".env")
	if err != nil {
		return err
	}
	srv := cfg.Server

	logger, err := logging.New(logging.Config{
		Level: srv.LogLevel,
		Dev:   srv.LogDev,
		File:  srv.LogFile,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	for _, w := range cfg.Lint() {
		logger.Warn("config", zap.String("warning", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.Config{
		ServiceName:     cfg.AppName,
		Endpoint:        srv.OTLPEndpoint,
		MetricsEndpoint: srv.OTLPMetricsEndpoint,
	}
	tp, shutdownTracing, err := telemetry.Setup(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()
	mp, shutdownMetrics, err := telemetry.SetupMetrics(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("telemetry metrics: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			logger.Warn("meter shutdown", zap.Error(err))
		}
	}()

	st, closeStore, err := openStore(ctx, srv.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	b := goSessionAuth.New().
		WithConfig(cfg).
		WithStore(st).
		WithMailer(mailer).
		WithLogger(logger).
		WithTracerProvider(tp).
		WithAuditSink(goSessionAuth.NewZapSink(logger))
	if cfg.Google.Enabled() {
		b = b.WithGoogleProvider(google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		}))
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	opts := httpapi.Options{
		Engine:      engine,
		Logger:      logger,
		CORSOrigins: srv.CORSOrigins,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = prometheus.New(engine).Handler()
		if srv.OTLPMetricsEndpoint != "" {
			exp, err := otelexport.New(mp.Meter("github.com/MrEthical07/goSessionAuth"), engine)
			if err != nil {
				return fmt.Errorf("otel metrics: %w", err)
			}
			defer func() { _ = exp.Close() }()
		}
	}
	if cfg.RateLimit.Enabled {
		login, resend, closeLimiters, err := newLimiters(cfg, logger)
		if err != nil {
			return err
		}
		defer closeLimiters()
		opts.LoginLimiter = login
		opts.ResendLimiter = resend
	}

	server := &http.Server{
		Addr:              srv.Addr,
		Handler:           httpapi.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

func openStore(ctx context.Context, dsn string, logger *zap.Logger) (store.Store, func(), error) {
	if dsn == "" {
		logger.Warn("DATABASE_URL not set, using the in-memory store")
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.Open(postgres.Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, func() { _ = pg.Close() }, nil
}

func newMailer(cfg goSessionAuth.Config, logger *zap.Logger) (mail.Sender, error) {
	renderer, err := mail.NewRenderer(cfg.AppName)
	if err != nil {
		return nil, fmt.Errorf("mail templates: %w", err)
	}
	if cfg.Server.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return mail.NewLogSender(logger, renderer), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Server.SMTPHost,
		Port:     cfg.Server.SMTPPort,
		Username: cfg.Server.SMTPUsername,
		Password: cfg.Server.SMTPPassword,
		From:     cfg.Server.SMTPFrom,
		StartTLS: true,
	}, renderer)
}

func newLimiters(cfg goSessionAuth.Config, logger *zap.Logger) (login, resend rate.Limiter, closeFn func(), err error) {
	rl := cfg.RateLimit
	loginPolicy := rate.Policy{Limit: rl.LoginLimit, Window: rl.LoginWindow}
	resendPolicy := rate.Policy{Limit: rl.ResendLimit, Window: rl.ResendWindow}

	if cfg.Server.RedisURL == "" {
		logger.Warn("REDIS_URL not set, rate limits are per process")
		return rate.NewLocal(loginPolicy, time.Now), rate.NewLocal(resendPolicy, time.Now), func() {}, nil
	}

	ropts, err := redis.ParseURL(cfg.Server.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	return rate.NewRedis(client, rl.RedisPrefix, loginPolicy),
		rate.NewRedis(client, rl.RedisPrefix, resendPolicy),
		func() { _ = client.Close() },
		nil
}
