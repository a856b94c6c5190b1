package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/adapters/memory"
	"github.com/coregx/pickup/adapters/redis"
	"github.com/coregx/pickup/adapters/relica"
	"github.com/coregx/pickup/cmd/pickup-server/internal/api"
	"github.com/coregx/pickup/cmd/pickup-server/internal/config"
	"github.com/coregx/pickup/cmd/pickup-server/internal/logging"
	"github.com/coregx/pickup/cmd/pickup-server/internal/metrics"
	"github.com/coregx/pickup/cmd/pickup-server/internal/transport"
	"github.com/coregx/pickup/message"
	"github.com/coregx/pickup/retry"
	"github.com/coregx/pickup/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the webhook emitter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	zl, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := logging.NewAdapter(zl)

	logger.Infof("🚀 Starting %s", Version())
	logger.Infof("📝 Configuration loaded: addr=%s, storage=%s, protocol=%s, connections=%d",
		cfg.Server.Addr(), cfg.Storage.Backend, cfg.Pickup.Protocol, len(cfg.Transport.Endpoints))

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	registry := transport.NewRegistry(cfg.Transport.Endpoints)
	sender := transport.NewHTTPSender(registry, cfg.Transport.Timeout)

	var (
		notifications pickup.NotificationService = pickup.NewLoggingNotificationService(logger)
		emitter       *webhook.Emitter
	)
	if cfg.Webhook.URL != "" {
		emitter, err = newEmitter(cfg.Webhook, logger, m)
		if err != nil {
			return err
		}
		notifications = emitter
		logger.Infof("✅ Webhooks enabled: %s", cfg.Webhook.URL)
	}

	family, _ := message.ParseFamily(cfg.Pickup.Protocol)
	manager, err := pickup.NewManager(
		pickup.WithRecordRepository(repo),
		pickup.WithManagerLogger(logger),
		pickup.WithNotifications(notifications),
		pickup.WithSender(sender),
		pickup.WithProtocolFamily(family),
		pickup.WithDeliveredRecords(cfg.Pickup.IncludeDelivered),
	)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	dispatcher, err := pickup.NewDispatcher(manager,
		pickup.WithDispatcherLogger(logger),
		pickup.WithObserver(m),
	)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	gin.SetMode(cfg.Server.Mode)
	handler := api.NewHandler(manager, dispatcher, registry, logger,
		api.WithStoreObserver(m),
		api.WithVersion(version),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, m, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("🌐 HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("🛑 Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if emitter != nil {
		g.Go(func() error {
			return emitter.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("✅ Server stopped gracefully")
	return nil
}

// openStore opens the configured record store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger pickup.Logger) (pickup.RecordRepository, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendSQL:
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("✅ Database connection established (%s)", cfg.Database.Driver)
		repos := relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
		return repos.Records, func() {
			if err := db.Close(); err != nil {
				logger.Errorf("Failed to close database: %v", err)
			}
		}, nil

	case config.BackendRedis:
		rdb, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("✅ Redis connection established (%s)", cfg.Redis.Addr)
		return redis.NewRecordRepository(rdb).WithPrefix(cfg.Redis.Prefix), func() {
			if err := rdb.Close(); err != nil {
				logger.Errorf("Failed to close Redis: %v", err)
			}
		}, nil

	default:
		logger.Warnf("⚠️ Using in-memory storage: stored messages are lost on restart")
		return memory.NewRecordRepository(), func() {}, nil
	}
}

func newEmitter(cfg config.WebhookConfig, logger pickup.Logger, m *metrics.Metrics) (*webhook.Emitter, error) {
	strategy := retry.DefaultStrategy()
	strategy.MaxAttempts = cfg.MaxAttempts
	if cfg.BaseDelay > 0 {
		strategy.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		strategy.MaxDelay = cfg.MaxDelay
	}
	logger.Debugf("Webhook %s", strategy.GetRetrySchedule())

	return webhook.NewEmitter(
		webhook.NewHTTPSink(cfg.URL, cfg.Secret),
		webhook.WithQueueSize(cfg.QueueSize),
		webhook.WithWorkers(cfg.Workers),
		webhook.WithRetryStrategy(strategy),
		webhook.WithLogger(logger),
		webhook.WithObserver(m),
	)
}
