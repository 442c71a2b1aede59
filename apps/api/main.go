package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	dashboardhandler "github.com/zenGate-Global/estatedesk/domains/dashboard/be/handler"
	leadshandler "github.com/zenGate-Global/estatedesk/domains/leads/be/handler"
	leadsrepo "github.com/zenGate-Global/estatedesk/domains/leads/be/repo"
	leadsservice "github.com/zenGate-Global/estatedesk/domains/leads/be/service"
	propertieshandler "github.com/zenGate-Global/estatedesk/domains/properties/be/handler"
	propertiesrepo "github.com/zenGate-Global/estatedesk/domains/properties/be/repo"
	propertiesservice "github.com/zenGate-Global/estatedesk/domains/properties/be/service"
	templateshandler "github.com/zenGate-Global/estatedesk/domains/templates/be/handler"
	"github.com/zenGate-Global/estatedesk/platform/go/cache"
	platformlogging "github.com/zenGate-Global/estatedesk/platform/go/logging"
	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL      string        `env:"DATABASE_URL,required"`
	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"0"`
	DBConnectRetries int           `env:"DB_CONNECT_RETRIES" envDefault:"3"`
	DBRetryInterval  time.Duration `env:"DB_RETRY_INTERVAL" envDefault:"1s"`
	DBApplySchema    bool          `env:"DB_APPLY_SCHEMA" envDefault:"true"`

	AuthProvider            string `env:"AUTH_PROVIDER" envDefault:"dev"` // dev | firebase
	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`

	CacheBackend string        `env:"CACHE_BACKEND" envDefault:"none"` // none | redis
	RedisURL     string        `env:"REDIS_URL"`                       // required when CACHE_BACKEND=redis
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "estatedesk-api",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:      cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		ConnectAttempts: cfg.DBConnectRetries,
		RetryInterval:   cfg.DBRetryInterval,
	})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if cfg.DBApplySchema {
		if err := persistence.ApplySchema(ctx, pool); err != nil {
			logger.Fatal("apply database schema", zap.Error(err))
		}
	}

	propertyCache, closeCache, err := buildPropertyCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init property cache", zap.Error(err))
	}
	defer closeCache()

	validator := persistence.NewDocumentValidator()

	leadStore, err := persistence.NewLeadStore(pool)
	if err != nil {
		logger.Fatal("init lead store", zap.Error(err))
	}
	leadService := leadsservice.New(leadsrepo.NewPostgresRepository(leadStore), validator)
	leadHTTPHandler := leadshandler.New(leadService, logger)

	propertyStore, err := persistence.NewPropertyStore(pool)
	if err != nil {
		logger.Fatal("init property store", zap.Error(err))
	}
	propertyRepo := propertiesrepo.NewCachedRepository(
		propertiesrepo.NewPostgresRepository(propertyStore),
		cache.NewReadThrough(propertyCache, cfg.CacheTTL),
	)
	propertyService := propertiesservice.New(propertyRepo, validator)
	propertyHTTPHandler := propertieshandler.New(propertyService, logger)

	dashboardHTTPHandler := dashboardhandler.New(logger, nil,
		func(ctx context.Context) (int, error) {
			result, err := leadService.List(ctx, leadsservice.ListOptions{PageSize: 1})
			return result.TotalItems, err
		},
		func(ctx context.Context) (int, error) {
			result, err := propertyService.List(ctx, propertiesservice.ListOptions{PageSize: 1})
			return result.TotalItems, err
		},
	)

	verify, err := buildVerifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init auth verifier", zap.Error(err))
	}

	rootRouter, err := newRouter(ctx, routerDeps{
		logger:         logger,
		requestTimeout: cfg.RequestTimeout,
		corsOrigins:    cfg.CORSAllowedOrigins,
		verify:         verify,
		ready:          pool.Ping,
		leads:          leadHTTPHandler,
		properties:     propertyHTTPHandler,
		templates:      templateshandler.New(logger),
		dashboard:      dashboardHTTPHandler,
	})
	if err != nil {
		logger.Fatal("build router", zap.Error(err))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildPropertyCache selects the property cache backend. The returned func releases it.
func buildPropertyCache(ctx context.Context, cfg config, logger *zap.Logger) (cache.Cache[persistence.Property], func(), error) {
	switch cfg.CacheBackend {
	case "", "none":
		return cache.Noop[persistence.Property]{}, func() {}, nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, nil, errors.New("REDIS_URL is required when CACHE_BACKEND=redis")
		}
		client, err := cache.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("property cache enabled", zap.String("backend", "redis"), zap.Duration("ttl", cfg.CacheTTL))
		return cache.NewRedis[persistence.Property](client, "estatedesk:properties", cfg.CacheTTL), func() { _ = client.Close() }, nil
	default:
		return nil, nil, errors.New("invalid CACHE_BACKEND (use none or redis)")
	}
}
