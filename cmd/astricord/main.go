// Command astricord runs the authorization and realtime gateway
// service: the REST control plane on one port, health and metrics on
// another, and the websocket gateway mounted under the main listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/AstromanXD/Astricord-sub001/pkg/api"
	"github.com/AstromanXD/Astricord-sub001/pkg/async"
	"github.com/AstromanXD/Astricord-sub001/pkg/auth"
	"github.com/AstromanXD/Astricord-sub001/pkg/config"
	"github.com/AstromanXD/Astricord-sub001/pkg/hub"
	"github.com/AstromanXD/Astricord-sub001/pkg/middleware"
	"github.com/AstromanXD/Astricord-sub001/pkg/observability"
	"github.com/AstromanXD/Astricord-sub001/pkg/permissions"
	"github.com/AstromanXD/Astricord-sub001/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "astricord: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrusLevel(cfg.Observability.LogLevel))

	// The observability helpers (otel, health) carry their own slog
	// logger; everything else logs through logrus.
	obsLog := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var providers *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		providers, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, obsLog)
		if err != nil {
			return fmt.Errorf("init otel: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.ShutdownOTel(shutdownCtx, providers, obsLog); err != nil {
				log.WithError(err).Warn("OTel shutdown failed")
			}
		}()
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	cm, err := storage.NewConnectionManager(storage.ConnectionConfigFromStorage(cfg.Storage), log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer cm.Close()
	cm.StartHealthCheckRoutine(ctx, time.Minute)

	migrateCtx, cancelMigrate := context.WithTimeout(ctx, 2*time.Minute)
	err = permissions.RunMigrations(migrateCtx, cm.Primary())
	cancelMigrate()
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := storage.NewRedisClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := permissions.NewSQLStore(cm.Primary()).WithReader(cm.Replica())
	resolver := permissions.NewResolver(store)

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenCacheSize)
	if err != nil {
		return fmt.Errorf("init token verifier: %w", err)
	}

	eventHub := hub.NewRegistry(log, metrics)
	gateway := hub.NewGateway(eventHub, verifier, log, metrics, hub.GatewayOptions{
		SendBuffer:  cfg.Gateway.SendBuffer,
		CheckOrigin: originChecker(cfg.Gateway.AllowedOrigins),
	})

	server := api.NewServer(api.Options{
		Store:          store,
		Resolver:       resolver,
		Registry:       eventHub,
		Gateway:        gateway,
		Cache:          redisClient,
		Auth:           middleware.NewAuthMiddleware(verifier, false),
		RateLimit:      middleware.NewDistributedRateLimitMiddleware(redisClient.GetClient()),
		Log:            log,
		Metrics:        metrics,
		TracingEnabled: cfg.Observability.OTelEnabled,
	})

	janitor := cron.New()
	_, err = janitor.AddFunc(cfg.Janitor.TimeoutSweepSchedule, func() {
		async.SafeGo(ctx, 30*time.Second, "timeout sweep", obsLog, func(sweepCtx context.Context) error {
			swept, err := store.SweepExpiredTimeouts(sweepCtx, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("sweep expired timeouts: %w", err)
			}
			if swept > 0 {
				log.WithField("swept", swept).Info("Cleared expired timeouts")
			}
			if metrics != nil {
				metrics.TimeoutsSweptTotal.Add(float64(swept))
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("schedule timeout sweep: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	if path := os.Getenv("ASTRICORD_CONFIG_FILE"); path != "" {
		async.Go(ctx, "config watch", obsLog, func(ctx context.Context) error {
			return config.Watch(ctx, path, log, func(next *config.Config) {
				log.SetLevel(logrusLevel(next.Observability.LogLevel))
			})
		})
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(cm.Primary(), redisClient.GetClient()))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:     healthMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Draining the gateway first closes every websocket, which
		// runs each connection's unsubscribe and presence cleanup.
		gateway.Shutdown()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("API server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Health server shutdown failed")
		}
		return nil
	})
	return g.Wait()
}

// originChecker builds the websocket origin policy. An empty allowlist
// keeps the upgrader default of accepting any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func logrusLevel(level observability.LogLevel) logrus.Level {
	switch level {
	case observability.DebugLevel:
		return logrus.DebugLevel
	case observability.WarnLevel:
		return logrus.WarnLevel
	case observability.ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
