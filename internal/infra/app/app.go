package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/infra/config"
	"github.com/XCEIN/consyf-sub000/internal/infra/database"
	"github.com/XCEIN/consyf-sub000/internal/infra/embedding"
	kafkainfra "github.com/XCEIN/consyf-sub000/internal/infra/kafka"
	"github.com/XCEIN/consyf-sub000/internal/infra/logger"
	"github.com/XCEIN/consyf-sub000/internal/infra/mail"
	"github.com/XCEIN/consyf-sub000/internal/infra/ratelimit"
	redisinfra "github.com/XCEIN/consyf-sub000/internal/infra/redis"
	"github.com/XCEIN/consyf-sub000/internal/infra/security"
	"github.com/XCEIN/consyf-sub000/internal/infra/storage"
	"github.com/XCEIN/consyf-sub000/internal/infra/telemetry"
	postgresrepo "github.com/XCEIN/consyf-sub000/internal/repository/postgres"
	redisrepo "github.com/XCEIN/consyf-sub000/internal/repository/redis"
	"github.com/XCEIN/consyf-sub000/internal/transport/http/middleware"
	"github.com/XCEIN/consyf-sub000/internal/transport/http/routes"
	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

const defaultShutdownTimeout = 15 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, a.pool, log); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       ratelimit.RulesFrom(cfg.RateLimit).Login.Window * 2,
	})

	events := a.newEventPublisher()

	objectStorage, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	secret, err := resolveSecret(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("resolve jwt secret: %w", err)
	}
	sessions, err := security.NewSessionTokenManager(secret, cfg.JWT.Issuer, cfg.JWT.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("init session tokens: %w", err)
	}
	tokenKey := cfg.Auth.TokenKey
	if strings.TrimSpace(tokenKey) == "" {
		tokenKey = secret
	}
	digester, err := security.NewSecretDigester(tokenKey)
	if err != nil {
		return nil, fmt.Errorf("init token digester: %w", err)
	}

	registry := prometheus.DefaultRegisterer
	transitions, err := telemetry.NewTransitionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init transition metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	store := postgresrepo.NewStore(a.pool)
	mailer := mail.New(cfg.SMTP, log)

	credentials := usecase.NewCredentialService(cfg, store, hasher, digester, sessions, mailer, rateLimitStore, events, transitions, log.Named("credentials"))
	passwordReset := usecase.NewPasswordResetService(cfg, store, hasher, digester, mailer, rateLimitStore, events, transitions, log.Named("password_reset"))
	accounts := usecase.NewAccountService(store, sessions, objectStorage, events, transitions, log.Named("accounts"))
	posts := usecase.NewPostService(store, embedding.NewHashingEmbedder(embedding.DefaultDimensions), objectStorage, events, transitions, log.Named("posts"))
	notifications := usecase.NewNotificationService(store)

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     httpMetrics,
		Database:    a.pool,
		Cache:       a.redis,
		Services: routes.ServiceSet{
			Credentials:   credentials,
			PasswordReset: passwordReset,
			Accounts:      accounts,
			Posts:         posts,
			Notifications: notifications,
		},
	})

	ok = true
	return a, nil
}

// newEventPublisher falls back to the logging stub when Kafka is absent or unreachable.
func (a *Application) newEventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// resolveSecret outside production tolerates a missing secret by generating
// a per-process one; sessions and pending codes then do not survive a restart.
func resolveSecret(cfg *config.AppConfig, log *zap.Logger) (string, error) {
	secret := cfg.JWT.Secret
	if strings.TrimSpace(secret) == "" && cfg.App.Env != "production" {
		generated, err := security.GenerateSecureToken(32)
		if err != nil {
			return "", err
		}
		log.Warn("jwt.secret not set, using an ephemeral secret")
		secret = generated
	}
	return secret, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting marketplace API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.App.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		a.logger.Info("shutting down", zap.Duration("timeout", timeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases infrastructure in reverse order of construction.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown tracer", zap.Error(err))
	}
}
