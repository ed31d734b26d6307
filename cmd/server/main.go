package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/cache"
	"github.com/erp/sourcing/internal/infrastructure/config"
	"github.com/erp/sourcing/internal/infrastructure/logger"
	"github.com/erp/sourcing/internal/infrastructure/notification"
	"github.com/erp/sourcing/internal/infrastructure/persistence"
	"github.com/erp/sourcing/internal/infrastructure/printing"
	"github.com/erp/sourcing/internal/infrastructure/scheduler"
	"github.com/erp/sourcing/internal/infrastructure/spreadsheet"
	"github.com/erp/sourcing/internal/infrastructure/storage"
	"github.com/erp/sourcing/internal/infrastructure/telemetry"
	"github.com/erp/sourcing/internal/interfaces/http/handler"
	"github.com/erp/sourcing/internal/interfaces/http/middleware"
	"github.com/erp/sourcing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/erp/sourcing/docs"
)

//	@title			Inquiry Dispatch API
//	@version		1.0
//	@description	Sends procurement inquiries to suppliers and customers as rendered letters and spreadsheets over email and instant messaging.

//	@contact.name	Procurement Platform

//	@host		localhost:8080
//	@BasePath	/api/v1

// objectStore is what the server needs from the configured storage driver
type objectStore interface {
	dispatchapp.ObjectStorage
	scheduler.ObjectDeleter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	tel, err := initTelemetry(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer tel.shutdown(log)

	// Rebuild the logger so entries are also exported through the OTEL log pipeline
	if tel.logs.IsEnabled() {
		bridged, err := logger.New(logCfg,
			telemetry.NewZapOTELCore(tel.logs, cfg.App.Name, logger.ParseLevel(cfg.Log.Level)))
		if err != nil {
			log.Fatal("Failed to attach OTEL log bridge", zap.Error(err))
		}
		log = bridged
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting inquiry dispatch service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("live_sending", cfg.Dispatch.LiveSendingEnabled),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel), 200*time.Millisecond)
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThreshold,
	}, log.Named("db_tracing"))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog, dbTracing)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if stats, err := db.Stats(); err == nil {
			log.Info("Closing database pool",
				zap.Int("open", stats.OpenConnections),
				zap.Int64("wait_count", stats.WaitCount))
		}
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	statusRows, err := persistence.NewGormStatusRepository(db.DB).FindAll(startupCtx)
	if err != nil {
		log.Fatal("Failed to load inquiry statuses", zap.Error(err))
	}
	statuses, err := sourcing.NewStatusCatalog(statusRows, map[sourcing.InquiryStatus]string{
		sourcing.StatusOpen:      cfg.Dispatch.StatusOpenName,
		sourcing.StatusSubmitted: cfg.Dispatch.StatusSubmittedName,
		sourcing.StatusCancelled: cfg.Dispatch.StatusCancelledName,
		sourcing.StatusClosed:    cfg.Dispatch.StatusClosedName,
	})
	if err != nil {
		log.Fatal("Failed to resolve inquiry statuses", zap.Error(err))
	}

	inquiryRepo := persistence.NewGormInquiryRepository(db.DB, statuses)
	batchRepo := persistence.NewGormDispatchBatchRepository(db.DB)
	attachmentRepo := persistence.NewGormAttachmentRepository(db.DB)
	counterpartyRepo := persistence.NewGormCounterpartyRepository(db.DB)
	staffRepo := persistence.NewGormStaffRepository(db.DB)
	scope := persistence.NewGormDispatchTransactionScope(db.DB, statuses)

	objects, err := newObjectStore(startupCtx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	pdf, err := printing.NewChromedpRenderer(printing.ChromedpConfigFrom(&cfg.Chrome, log.Named("chromedp")))
	if err != nil {
		log.Fatal("Failed to initialize PDF renderer", zap.Error(err))
	}
	defer func() {
		_ = pdf.Close()
	}()

	mail, err := newMailSender(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize mail sender", zap.Error(err))
	}
	messages, err := newMessageSender(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize message sender", zap.Error(err))
	}

	meter := tel.meters.Meter(telemetry.TracerName)
	dispatchMetrics, err := telemetry.NewDispatchMetrics(meter, log.Named("metrics"))
	if err != nil {
		log.Fatal("Failed to create dispatch metrics", zap.Error(err))
	}
	poolGauges, err := telemetry.RegisterPoolGauges(meter, func() sql.DBStats {
		stats, _ := db.Stats()
		return stats
	})
	if err != nil {
		log.Fatal("Failed to register database pool gauges", zap.Error(err))
	}
	defer func() {
		_ = poolGauges.Unregister()
	}()

	idempotency, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}

	dispatchService := dispatchapp.NewService(dispatchapp.Dependencies{
		Inquiries:      inquiryRepo,
		Batches:        batchRepo,
		Attachments:    attachmentRepo,
		Counterparties: counterpartyRepo,
		Staff:          staffRepo,
		Scope:          scope,
		Storage:        objects,
		Renderer:       printing.NewTemplateEngine(),
		Converter:      pdf,
		Sheets: spreadsheet.NewXLSXWriter(
			spreadsheet.WithImageBounds(cfg.Dispatch.ImageMaxWidth, cfg.Dispatch.ImageMaxHeight),
			spreadsheet.WithLogger(log),
		),
		Mail:        mail,
		Messages:    messages,
		Idempotency: idempotency,
		Metrics:     dispatchMetrics,
	}, dispatchapp.Config{
		LiveSendingEnabled: cfg.Dispatch.LiveSendingEnabled,
		DefaultRegion:      cfg.Messaging.DefaultRegion,
		IdempotencyTTL:     cfg.Dispatch.IdempotencyTTL,
		Letter: dispatchapp.LetterSettings{
			CompanyName: cfg.Dispatch.CompanyName,
			Contact: printing.LetterContact{
				Name:   cfg.Dispatch.ContactName,
				Email:  cfg.Dispatch.ContactEmail,
				Mobile: cfg.Dispatch.ContactPhone,
			},
		},
		Templates: dispatchapp.MessageTemplates{
			Create:     cfg.Messaging.CreateTemplate,
			Resend:     cfg.Messaging.ResendTemplate,
			Language:   cfg.Messaging.TemplateLanguage,
			ResendMode: cfg.Dispatch.ResendMessageMode,
		},
		MaxSendAttempts:   cfg.Dispatch.MaxSendAttempts,
		SendRetryInterval: cfg.Dispatch.SendRetryInterval,
	}, log.Named("dispatch"))

	sweeper := scheduler.NewAttachmentSweeper(attachmentRepo, objects, log.Named("sweeper"), scheduler.AttachmentSweeperConfig{
		Enabled:     cfg.Dispatch.SweepInterval > 0,
		Interval:    cfg.Dispatch.SweepInterval,
		GracePeriod: cfg.Dispatch.AttachmentGracePeriod,
		BatchSize:   cfg.Dispatch.SweepBatchSize,
	})
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()
	if err := sweeper.Start(sweepCtx); err != nil {
		log.Fatal("Failed to start attachment sweeper", zap.Error(err))
	}
	if sweeper.IsRunning() {
		_ = sweeper.TriggerImmediateSweep(sweepCtx)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine, err := router.NewEngine(router.EngineConfig{
		Logger:         log,
		CORS:           corsCfg,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
	})
	if err != nil {
		log.Fatal("Failed to configure HTTP engine", zap.Error(err))
	}
	router.Setup(engine,
		handler.NewHealthHandler(healthChecks(db, idempotency)),
		handler.NewDispatchHandler(dispatchService),
	)
	router.SetupDocs(engine, middleware.SwaggerConfig{
		Enabled:    cfg.Swagger.Enabled,
		AllowedIPs: cfg.Swagger.AllowedIPs,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(ctx); err != nil {
		log.Warn("Attachment sweeper did not stop cleanly", zap.Error(err))
	}
	if err := idempotency.Close(); err != nil {
		log.Warn("Error closing idempotency store", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// telemetryProviders holds the OpenTelemetry pipelines and the profiler
type telemetryProviders struct {
	traces   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func initTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryProviders, error) {
	tc := cfg.Telemetry
	traces, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return nil, err
	}
	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return nil, err
	}
	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return nil, err
	}

	pc := cfg.Profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           pc.Enabled,
		ServerAddress:     pc.ServerAddress,
		ApplicationName:   pc.ApplicationName,
		BasicAuthUser:     pc.BasicAuthUser,
		BasicAuthPassword: pc.BasicAuthPassword,
		ProfileTypes:      pc.ProfileTypes,
	}, log.Named("profiler"))
	if err != nil {
		return nil, err
	}
	if pc.Enabled && pc.SpanProfiles {
		traces.EnableSpanProfiles()
	}

	return &telemetryProviders{traces: traces, meters: meters, logs: logs, profiler: profiler}, nil
}

// shutdown flushes exporters in reverse start order
func (p *telemetryProviders) shutdown(log *zap.Logger) {
	ctx := context.Background()
	if err := p.profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}
	if err := p.meters.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := p.traces.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
}

func newObjectStore(ctx context.Context, cfg *config.StorageConfig, log *zap.Logger) (objectStore, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("Using in-memory object storage; artifacts are lost on restart")
		return storage.NewMemoryObjectStorage(cfg.PublicBaseURL), nil
	case "s3":
		s3, err := storage.NewS3ObjectStorage(cfg,
			storage.WithLogger(log.Named("storage")),
			storage.WithPresignExpiration(cfg.PresignExpiration),
		)
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newMailSender(cfg *config.Config, log *zap.Logger) (dispatchapp.MailSender, error) {
	if cfg.Mail.Driver == "smtp" {
		sender, err := notification.NewSMTPMailSender(&cfg.Mail, log.Named("mail"))
		if err != nil {
			return nil, err
		}
		return sender, nil
	}
	return notification.NewLogMailSender(log.Named("mail")), nil
}

func newMessageSender(cfg *config.Config, log *zap.Logger) (dispatchapp.MessageSender, error) {
	if cfg.Messaging.Driver == "api" {
		sender, err := notification.NewAPIMessageSender(&cfg.Messaging, log.Named("messaging"))
		if err != nil {
			return nil, err
		}
		return sender, nil
	}
	return notification.NewLogMessageSender(log.Named("messaging")), nil
}

func healthChecks(db *persistence.Database, idempotency shared.IdempotencyStore) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if redisStore, ok := idempotency.(*cache.RedisIdempotencyStore); ok {
		checks["redis"] = func(ctx context.Context) error {
			return redisStore.Client().Ping(ctx).Err()
		}
	}
	return checks
}
