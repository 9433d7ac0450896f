package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kogoto-lab/kogoto/internal/adapter/asr"
	"github.com/kogoto-lab/kogoto/internal/adapter/events"
	"github.com/kogoto-lab/kogoto/internal/adapter/grpc/server"
	"github.com/kogoto-lab/kogoto/internal/adapter/http/fiber/handlers"
	"github.com/kogoto-lab/kogoto/internal/adapter/http/fiber/middleware"
	"github.com/kogoto-lab/kogoto/internal/adapter/queue"
	"github.com/kogoto-lab/kogoto/internal/adapter/reading"
	"github.com/kogoto-lab/kogoto/internal/adapter/store"
	"github.com/kogoto-lab/kogoto/internal/adapter/vault"
	wsAdapter "github.com/kogoto-lab/kogoto/internal/adapter/websocket"
	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/observability/telemetry"
	"github.com/kogoto-lab/kogoto/internal/ports"
	"github.com/kogoto-lab/kogoto/internal/service/answer"
	"github.com/kogoto-lab/kogoto/internal/service/attempt"
	"github.com/kogoto-lab/kogoto/internal/service/auth"
	"github.com/kogoto-lab/kogoto/internal/service/health"
	"github.com/kogoto-lab/kogoto/internal/service/mood"
	"github.com/kogoto-lab/kogoto/internal/service/progress"
	"github.com/kogoto-lab/kogoto/internal/service/reward"
	"github.com/kogoto-lab/kogoto/internal/service/session"
	"github.com/kogoto-lab/kogoto/internal/service/settings"
	"github.com/kogoto-lab/kogoto/internal/service/vocab"
	"github.com/kogoto-lab/kogoto/pkg/config"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting kogoto",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry.ServiceName, cfg.App.Version,
			cfg.OpenTelemetry.Jaeger.Endpoint, cfg.OpenTelemetry.Jaeger.SamplerParam)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 4. Initialize the learner store
	kv, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open learner store", zap.Error(err))
	}
	defer kv.Close()

	// 5. Event bus and broker relay
	bus := events.NewBus(logger)

	mq, err := queue.Open(cfg.Queue.Driver, cfg.Queue.URL, cfg.Queue.Name, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	if mq != nil {
		defer mq.Close()
		kinds := make([]domain.EventKind, 0, len(cfg.Queue.Events))
		for _, k := range cfg.Queue.Events {
			kinds = append(kinds, domain.EventKind(k))
		}
		relay := events.NewRelay(bus, mq, logger, kinds...)
		defer relay.Close()
	}

	// 6. Learner tokens
	var secrets ports.SecretSource
	if cfg.Vault.Enabled {
		sm, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token, logger)
		if err != nil {
			logger.Fatal("Failed to create vault client", zap.Error(err))
		}
		secrets = sm
	}
	secretCtx, cancelSecret := context.WithTimeout(context.Background(), 10*time.Second)
	secret, err := auth.ResolveSecret(secretCtx, cfg.JWT.Secret, secrets, cfg.Vault.SecretPath, cfg.Vault.SecretField, logger)
	cancelSecret()
	if err != nil {
		logger.Fatal("Failed to resolve JWT secret", zap.Error(err))
	}
	authService, err := auth.NewJWTService(secret, cfg.JWT.AccessTokenDuration, cfg.JWT.Issuer, kv, logger)
	if err != nil {
		logger.Fatal("Failed to initialize auth service", zap.Error(err))
	}

	// 7. Vocabulary and matcher
	repo, err := vocab.LoadFile(cfg.Vocab.Path, logger)
	if err != nil {
		logger.Fatal("Failed to load vocabulary", zap.String("path", cfg.Vocab.Path), zap.Error(err))
	}

	var matcherOpts []answer.Option
	if cfg.Matcher.Readings {
		readings, err := reading.NewKagomeReadings(logger)
		if err != nil {
			logger.Fatal("Failed to load reading dictionary", zap.Error(err))
		}
		matcherOpts = append(matcherOpts, answer.WithReadings(readings))
	}
	matcher := answer.NewMatcher(logger, matcherOpts...)

	// 8. Initialize Services (Business Logic Layer)
	rewards := reward.NewService(kv, bus, logger)
	prefs := settings.NewService(kv, logger)
	prog := progress.NewService(kv, logger)

	sessions := session.NewService(session.Deps{
		Vocab:    repo,
		Progress: prog,
		Wallet:   rewards,
		Settings: prefs,
		Matcher:  matcher,
		Bus:      bus,
	}, session.Config{
		IdleTimeout:       cfg.Session.IdleTimeout,
		CleanupInterval:   cfg.Session.CleanupInterval,
		MaxSessions:       cfg.Session.MaxSessions,
		SideEffectTimeout: cfg.Session.SideEffectTimeout,
	}, logger, session.WithAttemptConfig(attempt.Config{
		Lead:         cfg.Attempt.Lead,
		Beat:         cfg.Attempt.Beat,
		Beats:        cfg.Attempt.Beats,
		CueDuration:  cfg.Attempt.CueDuration,
		AnswerWindow: cfg.Attempt.AnswerWindow,
		MaxTries:     cfg.Attempt.MaxTries,
	}))
	defer sessions.Close()

	moodCfg := mood.Config{
		Alpha:     cfg.Mood.Alpha,
		Threshold: cfg.Mood.Threshold,
		Dwell:     cfg.Mood.Dwell,
		SmileGate: cfg.Mood.SmileGate,
	}
	moodQuiz := mood.NewQuiz(repo, rand.New(rand.NewSource(time.Now().UnixNano())))

	// 9. Speech recognizer relay (optional)
	var transcriber ports.Transcriber
	if cfg.ASR.URL != "" {
		transcriber = asr.NewTranscriber(asr.Config{
			URL:        cfg.ASR.URL,
			APIKey:     cfg.ASR.APIKey,
			SampleRate: cfg.ASR.SampleRate,
			Timeout:    cfg.ASR.Timeout,
		}, logger)
	}

	// 10. Health checks
	healthService := health.NewService(cfg.App.Version, sessions.Count, logger)
	healthService.RegisterPinger("store", kv, true)
	healthService.RegisterChecker("vocabulary", health.CountChecker("vocabulary", repo.Len))
	if mq != nil {
		healthService.RegisterPinger("queue", mq, false)
	}

	// 11. WebSocket hub and streams
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := wsAdapter.NewHub(bus, logger)
	go wsHub.Run(ctx)
	sessionStream := wsAdapter.NewSessionStream(sessions, bus, transcriber, cfg.ASR.Language, logger)
	moodStream := wsAdapter.NewMoodStream(moodCfg, logger)

	// 12. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.CORS))
	if cfg.CircuitBreaker.Enabled {
		app.Use(middleware.CircuitBreaker("http", cfg.CircuitBreaker, logger))
	}

	health.NewFiberHandler(healthService).RegisterRoutes(app)

	if cfg.Prometheus.Enabled {
		metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	authRequired := middleware.AuthRequired(authService)

	handlers.Register(app, handlers.Handlers{
		Auth:     handlers.NewAuthHandler(authService, logger),
		Answer:   handlers.NewAnswerHandler(matcher),
		Session:  handlers.NewSessionHandler(sessions, logger),
		Progress: handlers.NewProgressHandler(prog, repo, logger),
		Reward:   handlers.NewRewardHandler(rewards, logger),
		Settings: handlers.NewSettingsHandler(prefs, logger),
		Mood:     handlers.NewMoodHandler(moodQuiz, moodCfg),
	}, authRequired)

	wsAdapter.Register(app, authRequired, wsHub, sessionStream, moodStream)

	// 13. Initialize gRPC Server (health for internal callers)
	var grpcServer *server.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer = server.NewGRPCServer(func(ctx context.Context) bool {
			return healthService.Ready(ctx).Status != health.StatusUnhealthy
		}, authService, logger)
		go grpcServer.Watch(ctx, cfg.GRPC.HealthInterval)
		go func() {
			logger.Info("Starting gRPC Server", zap.Int("port", cfg.GRPC.Port))
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
			if err != nil {
				logger.Fatal("Failed to listen for gRPC", zap.Error(err))
			}
			if err := grpcServer.Serve(lis); err != nil {
				logger.Fatal("gRPC Server failed", zap.Error(err))
			}
		}()
	}

	// 14. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 15. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}

	logger.Info("Server exited gracefully")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// openStore builds the configured backend and wraps it in the circuit breaker
// when enabled.
func openStore(cfg *config.Config, logger *zap.Logger) (ports.Store, error) {
	var kv ports.Store
	switch cfg.Store.Driver {
	case "", "memory":
		kv = store.NewMemoryStore(logger)
	case "redis":
		rs, err := store.NewRedisStore(cfg.Redis.URL, cfg.Store.KeyPrefix, logger)
		if err != nil {
			return nil, err
		}
		kv = rs
	case "postgres":
		db, err := store.OpenPostgres(cfg.Database.URL, logger)
		if err != nil {
			return nil, err
		}
		kv = store.NewPostgresStore(db, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if !cfg.CircuitBreaker.Enabled {
		return kv, nil
	}
	breaker := store.DefaultBreakerSettings("store")
	if cfg.CircuitBreaker.MaxRequests > 0 {
		breaker.MaxRequests = uint32(cfg.CircuitBreaker.MaxRequests)
	}
	if cfg.CircuitBreaker.MinRequests > 0 {
		breaker.MinRequests = uint32(cfg.CircuitBreaker.MinRequests)
	}
	if cfg.CircuitBreaker.Interval > 0 {
		breaker.Interval = cfg.CircuitBreaker.Interval
	}
	if cfg.CircuitBreaker.Timeout > 0 {
		breaker.Timeout = cfg.CircuitBreaker.Timeout
	}
	if cfg.CircuitBreaker.FailureThreshold > 0 {
		breaker.FailureRatio = cfg.CircuitBreaker.FailureThreshold
	}
	return store.WithBreaker(kv, breaker, logger), nil
}
