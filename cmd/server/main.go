package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"    // optional .env loading
	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/festival-platform/program-scheduler/internal/config"
	"github.com/festival-platform/program-scheduler/internal/database"
	"github.com/festival-platform/program-scheduler/internal/handler"
	"github.com/festival-platform/program-scheduler/internal/logging"
	"github.com/festival-platform/program-scheduler/internal/middleware"
	"github.com/festival-platform/program-scheduler/internal/queue"
	"github.com/festival-platform/program-scheduler/internal/repository"
	"github.com/festival-platform/program-scheduler/internal/router"
	"github.com/festival-platform/program-scheduler/internal/scheduler"
	queue_publisher "github.com/festival-platform/program-scheduler/internal/service"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	amqpCfg, err := config.LoadAMQPConfig()
	if err != nil {
		return err
	}

	db, dialect, err := database.Open(database.Options{
		Driver:          cfg.DBDriver,
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		SQLitePath:      cfg.SQLitePath,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, dialect); err != nil {
		return err
	}
	logger.Info("database ready", "driver", string(dialect))

	festivals := repository.NewFestivalRepo(db)
	stages := repository.NewStageRepo(db, dialect)
	artists := repository.NewArtistRepo(db, dialect)
	performances := repository.NewPerformanceRepo(db, dialect)

	// Redis is optional: without it cache and rate limit pass through.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	} else {
		logger.Warn("redis unavailable, cache and rate limit disabled")
	}
	lineupCache := middleware.NewLineupCache(cacheCfg, rdb, logger)

	observers := []scheduler.Observer{lineupCache}
	if amqpCfg.Enabled {
		pub := queue_publisher.NewPublisher(amqpCfg.URL, amqpCfg.Queue, logger)
		defer pub.Close()
		observers = append(observers, pub)

		go func() {
			err := queue.StartProgramConsumer(ctx, queue.ConsumerConfig{
				URL:    amqpCfg.URL,
				Queue:  amqpCfg.Queue,
				LogDir: amqpCfg.LogDir,
			}, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("program consumer stopped", "error", err)
			}
		}()
	}

	program := scheduler.NewService(scheduler.Deps{
		DB:           db,
		Festivals:    festivals,
		Stages:       stages,
		Artists:      artists,
		Performances: performances,
		Observers:    observers,
		Logger:       logger,
	})
	lineups := scheduler.NewLineupService(festivals, stages, performances, scheduler.LineupConfig{
		Location:     cfg.Location(),
		DefaultLimit: cfg.LineupDefaultLimit,
		MaxLimit:     cfg.LineupMaxLimit,
	}, logger)

	catalogHandler := handler.NewCatalogHandler(festivals, stages, artists, performances, lineupCache)
	programHandler := handler.NewProgramHandler(program)
	lineupHandler := handler.NewLineupHandler(lineups)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db})
	router.RegisterPublic(e, router.Public{
		Catalog:       catalogHandler,
		Program:       programHandler,
		Lineup:        lineupHandler,
		RateLimit:     middleware.NewTokenBucket(rlCfg, rdb, logger),
		FestivalCache: middleware.NewRedisCache(cacheCfg, rdb, "id", logger),
	})
	router.RegisterAdmin(e, catalogHandler, programHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
