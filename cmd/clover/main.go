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

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/client"
	"github.com/Ramsey-B/clover/internal/repositories/dependent"
	"github.com/Ramsey-B/clover/internal/repositories/mergeaudit"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes/duplicates"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/merge"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("clover stopped with error")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger.With(zap.String("app", cfg.AppName)), nil), nil
}

// app holds what the startup graph brings up.
type app struct {
	cfg      *config.Config
	logger   ectologger.Logger
	tracer   *sdktrace.TracerProvider
	sqlDB    *sqlx.DB
	redis    *redis.Client
	producer *kafka.Producer
	server   *http.Server
	checker  *health.Checker
}

func run(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	a := &app{cfg: cfg, logger: logger}

	s := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	s.AddDependency(&startup.Dependency{Name: "tracing", StartFn: a.startTracing, StopFn: a.stopTracing})
	s.AddDependency(&startup.Dependency{Name: "database", StartFn: a.startDatabase, StopFn: a.stopDatabase})
	s.AddDependency(&startup.Dependency{Name: "redis", StartFn: a.startRedis, StopFn: a.stopRedis})
	s.AddDependency(&startup.Dependency{Name: "kafka", StartFn: a.startKafka, StopFn: a.stopKafka})
	s.AddDependency(&startup.Dependency{
		Name:     "http",
		Requires: []string{"tracing", "database", "redis", "kafka"},
		StartFn:  a.startHTTP,
		StopFn:   a.stopHTTP,
	})

	if err := s.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = s.Stop(shutdownCtx)
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down clover")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

func (a *app) startTracing(ctx context.Context) error {
	var exporter sdktrace.SpanExporter
	if a.cfg.OTLPEnabled {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: a.cfg.OTLPEndpoint,
			Protocol: a.cfg.OTLPProtocol,
			Insecure: a.cfg.OTLPInsecure,
		})
		if err != nil {
			return err
		}
		exporter = otlp
	}
	a.tracer = tracing.NewProvider(a.cfg.AppName, exporter)
	return nil
}

func (a *app) stopTracing(ctx context.Context) error {
	if a.tracer == nil {
		return nil
	}
	return a.tracer.Shutdown(ctx)
}

func (a *app) startDatabase(ctx context.Context) error {
	db, err := database.Open(ctx, database.Config{
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             a.cfg.DatabaseMigrationVersion,
		Force:               a.cfg.DatabaseMigrationForce,
	})
	if err := migrations.Migrate(db, a.cfg.DatabaseName); err != nil {
		_ = db.Close()
		return err
	}

	a.sqlDB = db
	return nil
}

func (a *app) stopDatabase(context.Context) error {
	if a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}

func (a *app) startRedis(ctx context.Context) error {
	if !a.cfg.RedisEnabled {
		a.logger.Info("Redis disabled, merges run without client locks")
		return nil
	}
	rc, err := redis.NewClient(ctx, redis.Config{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = rc
	return nil
}

func (a *app) stopRedis(context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *app) startKafka(context.Context) error {
	if !a.cfg.KafkaEnabled {
		a.logger.Info("Kafka disabled, client events are not published")
		return nil
	}
	a.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaOutputTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	return nil
}

func (a *app) stopKafka(context.Context) error {
	if a.producer == nil {
		return nil
	}
	return a.producer.Close()
}

func (a *app) startHTTP(ctx context.Context) error {
	e, err := a.newRouter(ctx)
	if err != nil {
		return err
	}

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	go func() {
		a.logger.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	a.checker.SetReady(true)
	return nil
}

func (a *app) stopHTTP(ctx context.Context) error {
	if a.checker != nil {
		a.checker.SetReady(false)
	}
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *app) newRouter(ctx context.Context) (*echo.Echo, error) {
	db := database.NewDatabaseInstance(a.sqlDB, a.logger)

	clients := client.NewRepository(db, a.logger)
	policies, appointments, claims := dependent.NewRepositories(db, a.logger)
	audit := mergeaudit.NewRepository(db, a.logger)

	var emitter *events.Emitter
	if a.producer != nil {
		emitter = events.NewEmitter(a.producer, a.logger)
	}

	opts := []merging.Option{
		merging.WithStepTimeout(a.cfg.MergeStepTimeout),
		merging.WithHistory(audit),
	}
	if a.redis != nil {
		opts = append(opts, merging.WithLocker(merging.NewRedisLocker(redis.NewLocker(a.redis, "clover:"), a.cfg.MergeLockTTL)))
	}
	if emitter != nil {
		opts = append(opts, merging.WithEmitter(emitter))
	}
	if a.cfg.MergeAuditEnabled {
		opts = append(opts, merging.WithAudit(audit))
	}
	coordinator := merging.NewCoordinator(merging.NewSQLStore(clients, policies, appointments, claims), a.logger, opts...)

	scoring, err := matching.ScoringConfigForProfile(a.cfg.ScoringProfile)
	if err != nil {
		return nil, err
	}
	var detectionEmitter matching.DetectionEmitter
	if emitter != nil {
		detectionEmitter = emitter
	}
	detector := matching.NewService(matching.NewScorer(scoring), clients, detectionEmitter, a.logger)

	checks := map[string]health.Pinger{"database": db}
	if a.redis != nil {
		checks["redis"] = health.PingerFunc(a.redis.Ping)
	}
	a.checker = health.NewChecker(a.cfg.Version, checks)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	a.checker.RegisterRoutes(e.Group(""))

	api := e.Group("/api/v1")
	if a.cfg.AuthEnabled {
		verify, err := middleware.NewOIDCVerifier(ctx, a.cfg.AuthIssuerURL, a.cfg.AuthClientID)
		if err != nil {
			return nil, err
		}
		api.Use(middleware.Authentication(a.logger, verify))
	}

	var auditLister merge.AuditLister
	if a.cfg.MergeAuditEnabled {
		auditLister = audit
	}
	duplicates.NewHandler(detector, a.logger).Register(api)
	merge.NewHandler(clients, coordinator, auditLister, a.logger).Register(api)

	return e, nil
}
