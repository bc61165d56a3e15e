package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/parts-support/internal/api/http"
	"github.com/spec-kit/parts-support/internal/api/http/handlers"
	"github.com/spec-kit/parts-support/internal/auth"
	"github.com/spec-kit/parts-support/internal/config"
	"github.com/spec-kit/parts-support/internal/events"
	"github.com/spec-kit/parts-support/internal/notify"
	"github.com/spec-kit/parts-support/internal/observability"
	"github.com/spec-kit/parts-support/internal/persistence"
	"github.com/spec-kit/parts-support/internal/service"
	"github.com/spec-kit/parts-support/internal/worker"
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

	store, closeStore, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStore()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		sinks     []service.NotificationSink
		announcer service.Announcer
	)
	if redis.Enabled() {
		sinks = append(sinks, redis)
	}
	if slack := notify.NewSlackWebhook(cfg.Notification.SlackWebhookURL); slack != nil {
		sinks = append(sinks, slack)
		announcer = slack
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Logger:     logger,
		Sinks:      sinks,
		Announcer:  announcer,
	})
	notifier := worker.StartNotificationWorker(ctx, notificationService, cfg.Notification.QueueSize, logger)

	authService := service.NewAuthService(cfg.Auth, store)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	roleService := service.NewRoleService(service.RoleDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Repositories().Users)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{"store": store}
	if redis.Enabled() {
		deps["redis"] = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps, metrics),
		Users:          handlers.NewUsersHandler(authService, roleService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService),
		RoleRequests:   handlers.NewRoleRequestsHandler(roleService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	notifier.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
