package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/osqr-dev/osqr/internal/config"
	"github.com/osqr-dev/osqr/internal/events"
	"github.com/osqr-dev/osqr/internal/guidance"
	"github.com/osqr-dev/osqr/internal/health"
	"github.com/osqr-dev/osqr/internal/httpapi"
	"github.com/osqr-dev/osqr/internal/idempotency"
	"github.com/osqr-dev/osqr/internal/logging"
	"github.com/osqr-dev/osqr/internal/metrics"
	"github.com/osqr-dev/osqr/internal/models"
	"github.com/osqr-dev/osqr/internal/providers"
	"github.com/osqr-dev/osqr/internal/ratelimit"
	"github.com/osqr-dev/osqr/internal/routeapi"
	"github.com/osqr-dev/osqr/internal/stats"
	"github.com/osqr-dev/osqr/internal/store"
	"github.com/osqr-dev/osqr/internal/tracing"
)

// Server is the composition root: it wires the Model Registry, provider
// Executor, routeapi.Router, and guidance.Store into a single chi.Mux and
// owns the resources (DB, rate limiter, event bus) that outlive any one
// request.
type Server struct {
	cfg Config

	r *chi.Mux

	db               *store.SQLiteStore
	models           *models.Registry
	healthTracker    *health.Tracker
	eventBus         *events.Bus
	statsCollector   *stats.Collector
	rateLimiter      *ratelimit.Limiter
	idempotencyCache *idempotency.Cache
	otelShutdown     func(context.Context) error

	httpServer *http.Server
}

func NewServer(cfg Config) (*Server, error) {
	logger := logging.Setup(cfg.LogLevel)

	otelShutdown, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	if cfg.OTelEnabled {
		logger.Info("opentelemetry tracing enabled",
			slog.String("endpoint", cfg.OTelEndpoint),
			slog.String("service", cfg.OTelServiceName))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.OTelEnabled {
		r.Use(tracing.Middleware())
	}
	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	m := metrics.New()
	rl := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, time.Second,
		ratelimit.WithCounter(m.RateLimitedTotal))

	db, err := store.NewSQLite(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database initialized", slog.String("dsn", cfg.DBDSN))

	eventBus := events.NewBus()
	healthTracker := health.NewTracker(health.DefaultConfig(), health.WithEventBus(eventBus))
	statsCollector := stats.NewCollector()

	modelRegistry := buildModelRegistry(cfg)
	modelRegistry.SetHealthSnapshot(healthTracker)

	providerRegistry := providers.NewRegistry()
	registerProviders(providerRegistry, cfg)

	exec := providers.NewExecutor(modelRegistry, providerRegistry)
	exec.Health = healthTracker

	routerCfg, guidanceCfg, err := config.Load()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rt := routeapi.New(modelRegistry, exec, cfg.ClassifierModelID, cfg.JudgeModelID, routerCfg)
	guidanceStore := guidance.NewStore(db, guidanceCfg)

	idemCache := idempotency.New(5*time.Minute, 10000)

	s := &Server{
		cfg:              cfg,
		r:                r,
		db:               db,
		models:           modelRegistry,
		healthTracker:    healthTracker,
		eventBus:         eventBus,
		statsCollector:   statsCollector,
		rateLimiter:      rl,
		idempotencyCache: idemCache,
		otelShutdown:     otelShutdown,
	}

	httpapi.MountRoutes(r, httpapi.Dependencies{
		Router:           rt,
		Models:           modelRegistry,
		Guidance:         guidanceStore,
		GuidanceCfg:      guidanceCfg,
		Health:           healthTracker,
		Stats:            statsCollector,
		EventBus:         eventBus,
		Metrics:          m,
		AdminToken:       cfg.AdminToken,
		IdempotencyCache: idemCache,
		RateLimiter:      rl,
	})

	return s, nil
}

// Router returns the composed http.Handler.
func (s *Server) Router() http.Handler {
	return s.r
}

// SetHTTPServer lets main.go hand the Server a reference to the *http.Server
// it's driving, so Close() can participate in a graceful shutdown sequence.
func (s *Server) SetHTTPServer(hs *http.Server) {
	s.httpServer = hs
}

// Close releases all resources opened by NewServer.
func (s *Server) Close() error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.otelShutdown(ctx)
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// buildModelRegistry seeds the registry with one canonical model per tier
// plus the classifier/judge models, all backed by the mock provider. When
// real provider credentials are configured, extra openai/anthropic models are
// registered alongside them.
func buildModelRegistry(cfg Config) *models.Registry {
	r := models.New()
	seed := []models.Model{
		{ID: cfg.ClassifierModelID, ProviderID: "mock", DisplayName: "classifier", Tier: 1, InputPer1M: 0.15, OutputPer1M: 0.60, MaxContextTokens: 16000, Throughput: 1, Enabled: true},
		{ID: cfg.JudgeModelID, ProviderID: "mock", DisplayName: "judge", Tier: 1, InputPer1M: 0.15, OutputPer1M: 0.60, MaxContextTokens: 16000, Throughput: 1, Enabled: true},
		{ID: "tier1-fast", ProviderID: "mock", DisplayName: "tier-1 fast", Tier: 1, InputPer1M: 0.15, OutputPer1M: 0.60, MaxContextTokens: 16000, Throughput: 1, Enabled: true},
		{ID: "tier2-balanced", ProviderID: "mock", DisplayName: "tier-2 balanced", Tier: 2, InputPer1M: 1.00, OutputPer1M: 3.00, MaxContextTokens: 32000, Throughput: 1, Enabled: true},
		{ID: "tier3-capable", ProviderID: "mock", DisplayName: "tier-3 capable", Tier: 3, InputPer1M: 3.00, OutputPer1M: 15.00, MaxContextTokens: 128000, Throughput: 1, Enabled: true},
		{ID: "tier4-frontier", ProviderID: "mock", DisplayName: "tier-4 frontier", Tier: 4, InputPer1M: 15.00, OutputPer1M: 75.00, MaxContextTokens: 200000, Throughput: 1, Enabled: true},
	}
	if cfg.OpenAIAPIKey != "" {
		seed = append(seed,
			models.Model{ID: "gpt-4o-mini", ProviderID: "openai", DisplayName: "gpt-4o-mini", Tier: 2, InputPer1M: 0.15, OutputPer1M: 0.60, MaxContextTokens: 128000, Throughput: 1, Enabled: true},
			models.Model{ID: "gpt-4o", ProviderID: "openai", DisplayName: "gpt-4o", Tier: 3, InputPer1M: 2.50, OutputPer1M: 10.00, MaxContextTokens: 128000, Throughput: 1, Enabled: true},
		)
	}
	if cfg.AnthropicAPIKey != "" {
		seed = append(seed,
			models.Model{ID: "claude-haiku", ProviderID: "anthropic", DisplayName: "claude-haiku", Tier: 2, InputPer1M: 0.80, OutputPer1M: 4.00, MaxContextTokens: 200000, Throughput: 1, Enabled: true},
			models.Model{ID: "claude-sonnet", ProviderID: "anthropic", DisplayName: "claude-sonnet", Tier: 4, InputPer1M: 3.00, OutputPer1M: 15.00, MaxContextTokens: 200000, Throughput: 1, Enabled: true},
		)
	}
	for _, m := range seed {
		r.Register(m)
	}
	return r
}

func registerProviders(reg *providers.Registry, cfg Config) {
	reg.Register("mock", &providers.MockAdapter{ProviderName: "mock"})
	if cfg.OpenAIAPIKey != "" {
		reg.Register("openai", &providers.OpenAIAdapter{
			ProviderName: "openai",
			BaseURL:      cfg.OpenAIBaseURL,
			APIKey:       cfg.OpenAIAPIKey,
		})
	}
	if cfg.AnthropicAPIKey != "" {
		reg.Register("anthropic", &providers.AnthropicAdapter{
			ProviderName: "anthropic",
			BaseURL:      cfg.AnthropicBaseURL,
			APIKey:       cfg.AnthropicAPIKey,
		})
	}
}
