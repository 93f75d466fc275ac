package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/api"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/content"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/forms"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/search"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/search/cache"
	searchhandler "github.com/Adithya-Monish-Kumar-K/department-portal/internal/search/handler"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/apikey"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/csrf"
	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/department-portal/migrations"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/resilience"
)

const sweepInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	genKey := flag.String("gen-api-key", "", "create an admin API key with this name and exit")
	revokeKey := flag.String("revoke-api-key", "", "deactivate this admin API key and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting department portal", "port", cfg.Server.Port, "data_dir", cfg.Content.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *genKey != "" || *revokeKey != "" {
		if err := manageKeys(ctx, cfg, *genKey, *revokeKey, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg); err != nil {
		slog.Error("portal exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("portal stopped")
}

// run wires the portal and serves until ctx is cancelled and in-flight
// requests have drained.
func run(ctx context.Context, cfg *config.Config) error {
	trustedProxies, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	staticKeys, err := apikey.NewStatic(cfg.Admin.APIKeyHashes)
	if err != nil {
		return fmt.Errorf("admin.apiKeyHashes: %w", err)
	}

	m := metrics.New(nil)
	checker := health.NewChecker()
	loader := content.NewLoader(cfg.Content.DataDir, cfg.Content.LoadTimeout)
	checker.Register("content", health.PingCheck(loader.Ping, true))

	var redisClient *pkgredis.Client
	if cfg.Search.CacheBackend == config.BackendRedis || cfg.RateLimit.Backend == config.BackendRedis {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, falling back to in-memory stores", "error", err)
		} else {
			defer redisClient.Close()
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(migrations.FS, "."); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		checker.Register("postgres", health.PingCheck(db.Ping, true))
		slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	adminKeys := apikey.Any(staticKeys)
	if db != nil {
		adminKeys = apikey.Any(staticKeys, apikey.NewStore(db))
	} else if staticKeys.Len() == 0 {
		slog.Warn("no admin api keys configured, cache and analytics endpoints will reject every request")
	}

	// Search.
	var indexCache search.Cache = cache.NewMemory(nil)
	if cfg.Search.CacheBackend == config.BackendRedis && redisClient != nil {
		indexCache = cache.NewRedis(redisClient)
	}
	searchSvc := search.NewService(
		loader,
		indexCache,
		search.Options{
			CacheTTL:        cfg.Search.CacheTTL,
			DefaultLimit:    cfg.Search.DefaultLimit,
			MaxLimit:        cfg.Search.MaxLimit,
			MinQueryLength:  cfg.Search.MinQueryLength,
			MaxQueryLength:  cfg.Search.MaxQueryLength,
			SuggestionLimit: cfg.Search.SuggestionLimit,
			MaxSuggestions:  cfg.Search.MaxSuggestions,
		},
		m,
	)
	if entries, _ := searchSvc.Entries(ctx); len(entries) == 0 {
		slog.Warn("search index is empty", "data_dir", loader.Dir())
	}

	// Analytics: events go through Kafka when enabled, otherwise straight
	// into the in-process aggregator.
	aggregator := analytics.NewAggregator()
	var (
		eventPublisher analytics.Publisher = aggregator
		formEvents     forms.Publisher
	)
	if cfg.Kafka.Enabled {
		searchProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer searchProducer.Close()
		eventPublisher = searchProducer

		formProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FormSubmissions)
		defer formProducer.Close()
		formEvents = formProducer

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(aggregator))
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("analytics consumer stopped", "error", err)
			}
		}()
		slog.Info("kafka enabled", "brokers", cfg.Kafka.Brokers)
	}
	// Snapshots and the collector outlive the signal. Their deferred stops
	// run after serve has drained the handlers and before the database and
	// producers close: collector first, then the final snapshot.
	var (
		history       analytics.History
		snapshotsDone <-chan struct{}
	)
	snapshotCtx, stopSnapshots := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		stopSnapshots()
		if snapshotsDone != nil {
			<-snapshotsDone
		}
	}()
	if db != nil {
		snapshots := analytics.NewSnapshotStore(db)
		if latest, err := snapshots.Latest(ctx); err != nil {
			slog.Warn("could not restore search stats", "error", err)
		} else if latest != nil {
			aggregator.Restore(*latest)
			slog.Info("search stats restored from snapshot", "total_searches", latest.TotalSearches)
		}
		if cfg.Analytics.SnapshotInterval > 0 {
			snapshotsDone = snapshots.StartPeriodicSave(snapshotCtx, aggregator, cfg.Analytics.SnapshotInterval)
		}
		history = snapshots
	}

	collector := analytics.NewCollector(eventPublisher, cfg.Analytics.BufferSize)
	collector.Start(context.WithoutCancel(ctx))
	defer collector.Close()

	// Rate limiting.
	memoryLimits := ratelimit.NewMemoryStore()
	memoryLimits.StartSweeper(ctx, sweepInterval)
	var limitStore ratelimit.Store = memoryLimits
	if cfg.RateLimit.Backend == config.BackendRedis && redisClient != nil {
		breaker := resilience.NewCircuitBreaker("ratelimit-redis", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, from, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				if to == resilience.StateOpen {
					slog.Warn("rate limiting falls back to in-process counters", "breaker", name, "from", from.String())
				}
			},
		})
		limitStore = ratelimit.NewFailoverStore(ratelimit.NewRedisStore(redisClient), memoryLimits, breaker)
		checker.Register("ratelimit-breaker", func(context.Context) health.ComponentHealth {
			st := breaker.Stats()
			if st.State == resilience.StateClosed {
				return health.ComponentHealth{Status: health.StatusUp}
			}
			return health.ComponentHealth{
				Status:  health.StatusDegraded,
				Message: fmt.Sprintf("breaker %s after %d failures: %s", st.State, st.ConsecutiveFailures, st.LastError),
			}
		})
	}
	limiters := api.Limiters{
		Contact:    ratelimit.New("contact", ratelimit.FromConfig(cfg.RateLimit.Contact, ratelimit.Contact), limitStore),
		Newsletter: ratelimit.New("newsletter", ratelimit.FromConfig(cfg.RateLimit.Newsletter, ratelimit.Newsletter), limitStore),
		API:        ratelimit.New("api", ratelimit.FromConfig(cfg.RateLimit.API, ratelimit.API), limitStore),
	}

	// Forms.
	protector := csrf.NewProtector(csrf.Config{
		MaxAge:       cfg.CSRF.MaxAge,
		CookieName:   cfg.CSRF.CookieName,
		SecureCookie: cfg.CSRF.SecureCookie,
		Secret:       cfg.CSRF.Secret,
	})
	protector.WarnUnsigned()

	var formStore forms.Store = forms.NewMemoryStore()
	if db != nil {
		formStore = forms.NewPostgresStore(db)
	} else {
		slog.Warn("postgres disabled, form submissions are kept in memory only")
	}

	handler := api.NewRouter(api.Handlers{
		Search:    searchhandler.New(searchSvc, collector),
		Forms:     forms.NewHandler(formStore, protector, formEvents, m),
		Analytics: analytics.NewHandler(aggregator, history),
		CSRF:      protector,
		Health:    checker,
	}, limiters, api.Options{
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.CORS.AllowOrigins,
			MaxAge:       cfg.CORS.MaxAge,
		},
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        m,
		AdminKeys:      adminKeys,
		TrustedProxies: trustedProxies,
	})

	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", server.Addr, err)
	}

	slog.Info("portal listening", "addr", ln.Addr().String(), "trusted_proxies", len(trustedProxies))
	return serve(ctx, server, ln, cfg.Server.ShutdownTimeout)
}
