package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/config"
	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/geocode"
	httpapi "github.com/swifttiger/backend/internal/http"
	"github.com/swifttiger/backend/internal/http/handlers"
	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/metrics"
	"github.com/swifttiger/backend/internal/opt"
	"github.com/swifttiger/backend/internal/realtime"
	"github.com/swifttiger/backend/internal/scheduler"
	"github.com/swifttiger/backend/internal/service"
	"github.com/swifttiger/backend/internal/token"
	"github.com/swifttiger/backend/internal/upload"
	"github.com/swifttiger/backend/internal/worker"
)

// @title           SwiftTiger API
// @version         1.0
// @description     Field service management backend: jobs, customers, technician routing and realtime location tracking.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter the token with the `Bearer ` prefix, e.g. "Bearer abcde12345".

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "swifttiger-backend").Logger()
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.New(ctx, cfg.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("cannot ping database")
	}

	runDBMigration(cfg.MigrationsURL, cfg.MigrationDSN(), logger)

	metrics.RegisterDefault()

	tokenMaker, err := token.NewJWTMaker(cfg.JWTSecret, cfg.JWTRefreshSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create token maker")
	}

	geocoder := &geocode.NominatimGeocoder{
		BaseURL:   cfg.GeocoderURL,
		UserAgent: "swifttiger-backend",
	}

	var estimator opt.Estimator = opt.HaversineEstimator{}
	if cfg.MatrixURL != "" {
		estimator = opt.OSRMEstimator{BaseURL: cfg.MatrixURL}
		logger.Info().Str("url", cfg.MatrixURL).Msg("using OSRM travel matrix")
	}
	planner := &service.PlannerService{
		Store:          store,
		Optimizer:      opt.Optimizer{Estimator: estimator},
		Logger:         logger,
		MaxJobsPerTech: cfg.MaxJobsPerTech,
		FuelCostPerKm:  cfg.FuelCostPerKm,
	}

	var events broker.EventBroker
	if cfg.RedisAddr != "" {
		rb := broker.NewRedisBroker(cfg.RedisAddr, cfg.RedisPassword)
		if err := rb.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("cannot ping redis")
		}
		events = rb
	} else {
		events = broker.NewMemoryBroker()
		logger.Warn().Msg("REDIS_ADDR not set, events stay in-process")
	}

	hub := realtime.NewHub(ctx)

	waitGroup, ctx := errgroup.WithContext(ctx)

	var distributor worker.TaskDistributor
	if cfg.RedisAddr != "" {
		distributor = runTaskProcessor(ctx, waitGroup, cfg, store, geocoder, planner, events)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, background worker disabled")
	}

	runScheduler(ctx, waitGroup, store, distributor)
	runHub(ctx, waitGroup, hub, events)

	h := &handlers.Handler{
		Store:       store,
		Config:      cfg,
		TokenMaker:  tokenMaker,
		Validator:   validator.New(),
		Logger:      logger,
		Auditor:     &service.Auditor{Store: store, Logger: logger},
		Planner:     planner,
		Events:      events,
		Hub:         hub,
		Locations:   realtime.NewLocationCache(),
		Uploader:    upload.NewFileUploader(cfg.UploadDir, cfg.MaxUploadSizeMB),
		Geocoder:    geocoder,
		Distributor: distributor,
	}
	runHTTPServer(ctx, waitGroup, cfg, h)

	if err := waitGroup.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("error from wait group")
	}
	logger.Info().Msg("server stopped")
}

func runDBMigration(migrationURL, dbSource string, logger zerolog.Logger) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create migrate instance")
	}
	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Fatal().Err(err).Msg("failed to run migrate up")
	}
	logger.Info().Msg("db migrated successfully")
}

func runTaskProcessor(
	ctx context.Context,
	waitGroup *errgroup.Group,
	cfg config.Config,
	store *db.Store,
	geocoder geocode.Geocoder,
	planner *service.PlannerService,
	events broker.EventBroker,
) worker.TaskDistributor {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	distributor := worker.NewRedisTaskDistributor(redisOpt)
	processor := worker.NewRedisTaskProcessor(redisOpt, store, geocoder, planner, events, distributor)

	waitGroup.Go(func() error {
		log.Info().Msg("start task processor")
		return processor.Start()
	})
	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown task processor")
		processor.Shutdown()
		if err := distributor.Close(); err != nil {
			log.Warn().Err(err).Msg("task distributor close failed")
		}
		log.Info().Msg("task processor is stopped")
		return nil
	})
	return distributor
}

func runScheduler(ctx context.Context, waitGroup *errgroup.Group, store *db.Store, distributor worker.TaskDistributor) {
	sched := scheduler.NewScheduler(store, distributor)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("cannot start scheduler")
	}
	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown scheduler")
		sched.Stop()
		return nil
	})
}

func runHub(ctx context.Context, waitGroup *errgroup.Group, hub *realtime.Hub, events broker.EventBroker) {
	waitGroup.Go(func() error {
		log.Info().Msg("start websocket hub")
		hub.Run()
		return nil
	})
	waitGroup.Go(func() error {
		hub.Bridge(ctx, events)
		return nil
	})
	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown websocket hub")
		hub.Shutdown()
		return nil
	})
}

func runHTTPServer(ctx context.Context, waitGroup *errgroup.Group, cfg config.Config, h *handlers.Handler) {
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	router := httpapi.Router(cfg, h, rl)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		// avoid slowloris and stuck connections under pressure
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	waitGroup.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("mode", gin.Mode()).Msg("start HTTP server")
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed to serve")
			return err
		}
		return nil
	})
	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown HTTP server")
			return err
		}
		rl.Stop()
		log.Info().Msg("HTTP server is stopped")
		return nil
	})
}
