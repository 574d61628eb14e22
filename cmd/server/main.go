package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tovald/pageflow/config"
	appmodel "github.com/tovald/pageflow/internal/app/model"
	apprepository "github.com/tovald/pageflow/internal/app/repository"
	appserver "github.com/tovald/pageflow/internal/app/server"
	appservice "github.com/tovald/pageflow/internal/app/service"
	"github.com/tovald/pageflow/internal/enrich"
	"github.com/tovald/pageflow/internal/infra/logger"
	infraNATS "github.com/tovald/pageflow/internal/infra/nats"
	infraPostgres "github.com/tovald/pageflow/internal/infra/postgres"
	infraPrometheus "github.com/tovald/pageflow/internal/infra/prometheus"
	infraRedis "github.com/tovald/pageflow/internal/infra/redis"
	"github.com/tovald/pageflow/internal/tracker"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Ingest.Secret == "" {
		log.Fatal("APP_SECRET must be set: cache tokens cannot be signed without it")
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("storage_mode", cfg.Storage.Mode),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Website{},
		&appmodel.Session{},
		&appmodel.SessionDataRecord{},
		&appmodel.WebsiteEvent{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	metrics := infraPrometheus.NewIngestMetrics(prometheus.DefaultRegisterer)

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	websiteRepo := apprepository.NewCachedWebsiteRepository(
		apprepository.NewWebsiteRepository(gormDB),
		redisClient,
		log,
		0,
	)
	if err := websiteRepo.Warm(ctx); err != nil {
		log.Warn("Website filter warm-up failed, serving cold", zap.Error(err))
	}
	websiteRepo.Start()
	defer websiteRepo.Stop()

	sessionRepo := apprepository.NewSessionRepository(gormDB)

	var sink appservice.EventSink
	switch cfg.Storage.Mode {
	case "stream":
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()

		publisher := appservice.NewHitPublisher(js)
		if err := publisher.EnsureStream(); err != nil {
			log.Fatal("Failed to ensure hits stream", zap.Error(err))
		}

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()

		archive := apprepository.NewHitArchive(pool)
		if err := archive.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to ensure hit archive schema", zap.Error(err))
		}

		consumer := appservice.NewHitConsumer(js, log, archive)
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start hit consumer", zap.Error(err))
		}
		defer consumer.Stop()

		lagChecker := appservice.NewStreamLagChecker(js, log, metrics)
		lagChecker.Start()
		defer lagChecker.Stop()

		sink = appservice.NewStreamSink(publisher, sessionRepo)
		log.Info("Storage running in stream mode")
	default:
		eventRepo := apprepository.NewEventRepository(gormDB)
		sink = appservice.NewRelationalSink(sessionRepo, eventRepo)
		log.Info("Storage running in relational mode")
	}

	var geo enrich.GeoLocator
	if cfg.Geo.Endpoint != "" {
		timeout, err := time.ParseDuration(cfg.Geo.Timeout)
		if err != nil {
			log.Fatal("Invalid geo.timeout", zap.Error(err))
		}
		cacheTTL, err := time.ParseDuration(cfg.Geo.CacheTTL)
		if err != nil {
			log.Fatal("Invalid geo.cache_ttl", zap.Error(err))
		}
		geo = enrich.NewHTTPGeoLocator(log, redisClient, cfg.Geo.Endpoint, timeout, cacheTTL)
	} else {
		log.Info("Geo endpoint not configured, hits stay unlocated")
	}

	enricher, err := enrich.New(log, geo, cfg.Ingest.BlockedIPs)
	if err != nil {
		log.Fatal("Invalid blocked IP list", zap.Error(err))
	}

	ingestService := appservice.NewIngestService(appservice.IngestDeps{
		Logger:   log,
		Websites: websiteRepo,
		Sink:     sink,
		Enricher: enricher,
		Metrics:  metrics,
		Secret:   []byte(cfg.Ingest.Secret),
		URLOpts: tracker.NormalizeOptions{
			RemoveTrailingSlash: cfg.Ingest.RemoveTrailingSlash,
		},
	})

	endpoint := strings.TrimRight(cfg.Ingest.PublicEndpoint, "/") + "/api/send"

	srv, err := appserver.New(appserver.Dependencies{
		Logger:         log,
		Redis:          redisClient,
		Ingest:         ingestService,
		PublicEndpoint: endpoint,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP server", zap.Error(err))
	}

	if err := srv.Listen(":8080"); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
