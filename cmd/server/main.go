package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaydesk/internal/adapter/gateway"
	"relaydesk/internal/adapter/workspace"
	"relaydesk/internal/audit"
	"relaydesk/internal/platform/config"
	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/health"
	"relaydesk/internal/platform/httpserver"
	"relaydesk/internal/platform/kafka/producer"
	"relaydesk/internal/platform/logger"
	platformredis "relaydesk/internal/platform/redis"
	"relaydesk/internal/platform/token"
	"relaydesk/internal/routing"
	routestore "relaydesk/internal/routing/store"
	"relaydesk/internal/session"
	sessionmetrics "relaydesk/internal/session/metrics"
	"relaydesk/internal/tenant"
	tenantmetrics "relaydesk/internal/tenant/metrics"
	"relaydesk/internal/ticket"
	ticketmetrics "relaydesk/internal/ticket/metrics"
	transporthttp "relaydesk/internal/transport/http"
	"relaydesk/pkg/domain"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.KafkaBrokers == "" {
		return fmt.Errorf("RELAYDESK_KAFKA_BROKERS is required: the messaging gateway bridge runs over Kafka")
	}
	prod, err := producer.New(producer.DefaultConfig(cfg.KafkaBrokers), log)
	if err != nil {
		return fmt.Errorf("build kafka producer: %w", err)
	}
	defer prod.Close()

	publisher := audit.NewPublisher(
		audit.NewKafkaStore(prod, cfg.KafkaTopic),
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer publisher.Close()

	healthHandler := health.New(cfg.Environment)
	routeStores, err := buildRouteStores(ctx, cfg, healthHandler)
	if err != nil {
		return err
	}
	defer routeStores.close()

	adapters := gateway.NewFactory(gateway.Config{
		Brokers:       cfg.KafkaBrokers,
		EventsTopic:   cfg.GatewayEventsTopic,
		CommandsTopic: cfg.GatewayCommandsTopic,
		MediaBaseURL:  cfg.GatewayMediaURL,
	}, prod, log)

	workspaces := workspace.NewFactory(cfg.WorkspaceAPIURL, cfg.WorkspaceAPIToken, log)

	tenantStore, err := tenant.NewFileStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open tenant store: %w", err)
	}

	registry, err := tenant.New(ctx, tenantStore, adapters, workspaces, routeStores,
		tenant.WithLogger(log),
		tenant.WithMetrics(tenantmetrics.New()),
		tenant.WithAuditPublisher(publisher),
		tenant.WithCredentialStore(adapters),
		tenant.WithTranscriptGenerator(workspaces.Transcripts()),
		tenant.WithSessionOptions(
			session.WithMetrics(sessionmetrics.New()),
			session.WithAuditPublisher(publisher),
			session.WithQRTTL(cfg.QRTTL),
			session.WithReconnectPolicy(cfg.ReconnectBase, cfg.ReconnectCap, cfg.ReconnectMaxAttempts),
		),
		tenant.WithTicketOptions(
			ticket.WithMetrics(ticketmetrics.New()),
			ticket.WithAuditPublisher(publisher),
		),
		tenant.WithHotReload(),
	)
	if err != nil {
		return fmt.Errorf("build tenant registry: %w", err)
	}
	defer registry.Close()

	router := transporthttp.NewRouter(transporthttp.RouterConfig{
		Handler:     transporthttp.NewHandler(registry, log),
		Validator:   token.NewService(cfg.JWTSigningKey, 24*time.Hour),
		Health:      healthHandler,
		Logger:      log,
		LatencyHist: transporthttp.NewLatencyHistogram(),
	})
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		if err := registry.ConnectAll(ctx); err != nil {
			log.Error("initial tenant connect incomplete", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := registry.DisconnectAll(shutdownCtx); err != nil {
		log.Error("tenant disconnect failed", "error", err)
	}
	return nil
}

// routeStoreFactory selects the routing persistence backend from config.
type routeStoreFactory struct {
	cfg   config.Server
	db    *database.Pool
	redis *platformredis.Client
}

func buildRouteStores(ctx context.Context, cfg config.Server, checks *health.Handler) (*routeStoreFactory, error) {
	f := &routeStoreFactory{cfg: cfg}

	switch cfg.RoutingBackend {
	case "postgres":
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.PostgresURL
		pool, err := database.New(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := routestore.Migrate(ctx, pool.DB); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate routing schema: %w", err)
		}
		f.db = pool
		checks.RegisterCheck("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(checkCtx)
		})

	case "redis":
		client, err := platformredis.New(config.DefaultRedisConfig(cfg.RedisURL))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if client == nil {
			return nil, fmt.Errorf("RELAYDESK_REDIS_URL is required for the redis routing backend")
		}
		f.redis = client
		checks.RegisterCheck("redis", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Health(checkCtx)
		})

	case "memory", "file", "":
		// No external dependency.

	default:
		return nil, fmt.Errorf("unknown routing backend %q", cfg.RoutingBackend)
	}
	return f, nil
}

func (f *routeStoreFactory) NewRouteStore(tenantID domain.TenantID) (routing.Store, error) {
	switch f.cfg.RoutingBackend {
	case "memory":
		return routestore.NewMemory(), nil
	case "postgres":
		return routestore.NewPostgres(f.db.DB, tenantID), nil
	case "redis":
		return routestore.NewRedis(f.redis.Client, tenantID), nil
	default:
		return routestore.NewFile(f.cfg.DataDir, tenantID)
	}
}

func (f *routeStoreFactory) close() {
	if f.db != nil {
		_ = f.db.Close()
	}
	if f.redis != nil {
		_ = f.redis.Close()
	}
}
