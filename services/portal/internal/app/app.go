package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "customsportal/libs/db"
	libredis "customsportal/libs/redis"
	"customsportal/services/portal/internal/audit"
	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/config"
	httpserver "customsportal/services/portal/internal/http"
	"customsportal/services/portal/internal/http/handlers"
	"customsportal/services/portal/internal/http/middleware"
	"customsportal/services/portal/internal/livefeed"
	"customsportal/services/portal/internal/session"
	"customsportal/services/portal/internal/views"
)

// App wires portal dependencies.
type App struct {
	server      *httpserver.Server
	hub         *livefeed.Hub
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph. Redis and Postgres are optional:
// without Redis sessions live in memory, without Postgres the audit trail
// is only logged.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	var store session.Store
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		client, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		a.redisClient = client
		store = session.NewRedisStore(client, cfg.Session.TTL)
	} else {
		logger.Warn("redis not configured, sessions are kept in memory")
		store = session.NewMemoryStore(cfg.Session.TTL)
	}

	var repo audit.Store
	if strings.TrimSpace(cfg.Postgres.DSN) != "" {
		sqlDB, err := libdb.NewPostgresDB(ctx, cfg.Postgres.DSN, libdb.PoolOptions{})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
		a.db = sqlDB
		pg := audit.NewRepository(sqlDB)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: audit schema: %w", err)
		}
		repo = pg
	}
	recorder := audit.NewRecorder(repo, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpClient := clients.NewDefaultHTTPClient(cfg.HTTPTimeout())
	base := clients.NewBaseClient(cfg.Backend.URL, httpClient, clients.NewMetrics(registry))
	authClient := clients.NewAuthClient(base)
	billsClient := clients.NewBillsClient(base)
	adminClient := clients.NewAdminClient(base)
	statsClient := clients.NewStatsClient(base)

	codec, err := session.NewCookieCodec(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		a.Close()
		return nil, err
	}
	sessions := session.NewManager(store, codec, authClient, session.Options{
		TTL:    cfg.Session.TTL,
		Secure: cfg.Session.Secure,
	}, logger)

	renderer, err := views.NewRenderer(logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.hub = livefeed.NewHub(livefeed.Options{Interval: cfg.RefreshInterval()}, logger)

	deps := handlers.Deps{
		Sessions: sessions,
		Views:    renderer,
		Audit:    recorder,
		Logger:   logger,
	}
	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandlers:      handlers.NewAuthHandlers(authClient, deps),
		DashboardHandlers: handlers.NewDashboardHandlers(deps),
		BillHandlers: handlers.NewBillHandlers(billsClient, handlers.PaymentURLs{
			Success: cfg.Payment.SuccessURL,
			Cancel:  cfg.Payment.CancelURL,
		}, deps),
		AccountingHandlers: handlers.NewAccountingHandlers(billsClient, adminClient, deps),
		UserHandlers:       handlers.NewUserHandlers(authClient, deps),
		BankHandlers:       handlers.NewBankHandlers(adminClient, deps),
		StatsHandlers:      handlers.NewStatsHandlers(statsClient, deps),
		ManagementHandlers: handlers.NewManagementHandlers(statsClient, adminClient, a.hub, deps),
		HealthHandler:      handlers.NewHealthHandler(),

		Sessions:       sessions,
		Metrics:        middleware.NewMetrics(registry),
		Gatherer:       registry,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		Logger:         logger,
	})

	a.server = httpserver.NewServer(
		cfg.HTTPAddress(),
		router,
		logger,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
	return a, nil
}

// Run serves HTTP traffic until ctx ends, then closes live feed viewers.
func (a *App) Run(ctx context.Context) error {
	err := a.server.Run(ctx)
	a.hub.Shutdown()
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
