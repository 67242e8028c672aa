package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/waitlist-service/internal/api/http"
	"github.com/spec-kit/waitlist-service/internal/api/http/handlers"
	"github.com/spec-kit/waitlist-service/internal/config"
	"github.com/spec-kit/waitlist-service/internal/events"
	"github.com/spec-kit/waitlist-service/internal/observability"
	"github.com/spec-kit/waitlist-service/internal/persistence"
	"github.com/spec-kit/waitlist-service/internal/repository"
	"github.com/spec-kit/waitlist-service/internal/service"
	"github.com/spec-kit/waitlist-service/internal/worker"
	"github.com/spec-kit/waitlist-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var partyRepo repository.PartyRepository
	if pool := pg.PoolHandle(); pool != nil {
		partyRepo = repository.NewPartyRepository(pool)
	} else {
		partyRepo = repository.NewMemoryPartyRepository()
	}

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	engine := service.NewWaitlistService(cfg.Waitlist, service.WaitlistDependencies{
		PartyRepo:  partyRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	defer engine.Close()

	relay := service.NewEventRelay(dispatcher, redis.Client, logger, cfg.Redis.EventsChannel)
	worker.StartEventRelay(relay)

	hub := ws.NewHub(engine, dispatcher, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	waitlistHandler := handlers.NewWaitlistHandler(engine)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   healthHandler,
		Waitlist: waitlistHandler,
		Hub:      hub,
	})

	// Reconcile durable state before accepting traffic so restored seats and
	// rescheduled timers are in place ahead of the first join.
	if err := engine.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize waitlist engine", zap.Error(err))
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
