package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/FLANsa/clinic-ai-bot/internal/appointments"
	"github.com/FLANsa/clinic-ai-bot/internal/catalog"
	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	"github.com/FLANsa/clinic-ai-bot/internal/dialogue"
	"github.com/FLANsa/clinic-ai-bot/internal/dispatch"
	"github.com/FLANsa/clinic-ai-bot/internal/handoff"
	"github.com/FLANsa/clinic-ai-bot/internal/history"
	"github.com/FLANsa/clinic-ai-bot/internal/observability/metrics"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL, or returns nil when unset.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// Runtime is the wired dialogue stack shared by the API, the worker and the
// local chat harness.
type Runtime struct {
	Orchestrator *dialogue.Orchestrator
	Processor    *dispatch.Processor
	Handoffs     handoff.Store
	Metrics      *metrics.DialogueMetrics

	// Checks are readiness probes for the backing stores that are in use.
	Checks map[string]func(context.Context) error

	// Memory-backed stores, set only when no database is configured.
	MemoryHistory      *history.MemoryRepository
	MemoryAppointments *appointments.MemoryStore

	closers []func()
}

// Close releases pools and provider clients in reverse order.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

type runtimeOptions struct {
	loadAWS     AWSConfigLoader
	catalogFile string
	registerer  prometheus.Registerer
	now         func() time.Time
}

// RuntimeOption customizes BuildRuntime.
type RuntimeOption func(*runtimeOptions)

// WithAWSConfigLoader supplies AWS settings for Bedrock.
func WithAWSConfigLoader(load AWSConfigLoader) RuntimeOption {
	return func(o *runtimeOptions) { o.loadAWS = load }
}

// WithCatalogFile seeds the in-memory catalog from a JSON snapshot when no
// database is configured.
func WithCatalogFile(path string) RuntimeOption {
	return func(o *runtimeOptions) { o.catalogFile = path }
}

// WithRegisterer registers metrics somewhere other than the default registry.
func WithRegisterer(reg prometheus.Registerer) RuntimeOption {
	return func(o *runtimeOptions) { o.registerer = reg }
}

// WithClock overrides the orchestrator clock.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOptions) { o.now = now }
}

// BuildRuntime wires stores, the LLM client and the orchestrator from config.
// Without DATABASE_URL every store is in memory; without REDIS_ADDR the
// catalog is read straight from its store.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts ...RuntimeOption) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	var o runtimeOptions
	for _, opt := range opts {
		opt(&o)
	}

	rt = &Runtime{Checks: map[string]func(context.Context) error{}}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	rt.Metrics = metrics.NewDialogueMetrics(o.registerer)

	pool, err := BuildPostgresPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		catalogStore catalog.Store
		historyRepo  dialogue.HistoryRepository
		writer       dialogue.AppointmentWriter
	)
	if pool != nil {
		rt.closers = append(rt.closers, pool.Close)
		rt.Checks["postgres"] = pool.Ping

		sqlDB := stdlib.OpenDBFromPool(pool)
		rt.closers = append(rt.closers, func() { _ = sqlDB.Close() })

		catalogStore = catalog.NewPostgresStore(pool)
		historyRepo = history.NewPostgresRepository(pool)
		writer = appointments.NewPostgresStore(pool)
		rt.Handoffs = handoff.NewSQLStore(sqlDB)
		logger.Info("using postgres stores")
	} else {
		static, err := buildStaticCatalog(o.catalogFile)
		if err != nil {
			return nil, err
		}
		catalogStore = static
		rt.MemoryHistory = history.NewMemoryRepository()
		rt.MemoryAppointments = appointments.NewMemoryStore()
		historyRepo = rt.MemoryHistory
		writer = rt.MemoryAppointments
		rt.Handoffs = handoff.NewMemoryStore()
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	if redisClient := BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
		rt.Checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		catalogStore = catalog.NewCachedStore(catalogStore, redisClient, cfg.CatalogCacheTTL, logger.Component("catalog"))
		logger.Info("catalog cache enabled", "ttl", cfg.CatalogCacheTTL.String())
	}

	client, closeLLM, err := BuildLLMClient(ctx, cfg, o.loadAWS, rt.Metrics, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeLLM)

	location, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Warn("unknown clinic timezone; using UTC", "timezone", cfg.ClinicTimezone, "error", err)
		location = time.UTC
	}

	orchOpts := []dialogue.Option{
		dialogue.WithLocale(dialogue.LocaleFor(cfg.ReplyLocale)),
		dialogue.WithCurrency(cfg.CurrencyLabel),
		dialogue.WithLocation(location),
		dialogue.WithLogger(logger),
		dialogue.WithRecorder(rt.Metrics),
		dialogue.WithDiagnostics(cfg.IsDevelopment()),
		dialogue.WithCompletionSettings(cfg.LLMMaxTokens, cfg.LLMTemperature),
		dialogue.WithCompletionTimeout(cfg.LLMTimeout),
	}
	if o.now != nil {
		orchOpts = append(orchOpts, dialogue.WithClock(o.now))
	}
	rt.Orchestrator = dialogue.NewOrchestrator(historyRepo, catalogStore, client, writer, orchOpts...)
	rt.Processor = dispatch.NewProcessor(rt.Orchestrator, handoff.NewRecorder(rt.Handoffs, logger))
	return rt, nil
}

func buildStaticCatalog(path string) (*catalog.StaticStore, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.NewStaticStore(catalog.Snapshot{}), nil
	}
	store, err := catalog.LoadStaticStore(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load catalog file: %w", err)
	}
	return store, nil
}
