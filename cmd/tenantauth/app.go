package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/httpapi"
	otelexport "github.com/MrEthical07/tenantauth/metrics/export/otel"
	"github.com/MrEthical07/tenantauth/metrics/export/prometheus"
	"github.com/MrEthical07/tenantauth/notify"
	"github.com/MrEthical07/tenantauth/storage/memory"
	"github.com/MrEthical07/tenantauth/storage/postgres"
	"github.com/MrEthical07/tenantauth/storage/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type App struct {
	cfg     *Config
	logger  zerolog.Logger
	engine  *tenantauth.Engine
	echo    *echo.Echo
	closers []func()
}

// NewApp connects every backing service and wires the engine. On error the
// already opened connections are closed.
func NewApp(ctx context.Context, cfg *Config, logger zerolog.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	cfg, logger := app.cfg, app.logger

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	app.closers = append(app.closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	users, tenants, err := app.openStore(ctx)
	if err != nil {
		return err
	}

	builder := tenantauth.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithUserRepository(users).
		WithTenantRepository(tenants).
		WithLogger(logger).
		WithNotifier(app.notifier())
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(tenantauth.NewLogSink(logger.With().Str("stream", "audit").Logger()))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	app.engine = engine
	app.closers = append(app.closers, engine.Close)

	engineCfg := engine.Config()
	for _, w := range engineCfg.Lint() {
		logger.Warn().Str("code", w.Code).Msg(w.Message)
	}

	e := httpapi.New(engine, logger).Echo()
	if cfg.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(prometheus.NewPrometheusExporter(engine).Handler()))
		if cfg.OTelMetrics {
			if err := app.mountOTel(e); err != nil {
				return err
			}
		}
	}
	app.echo = e

	return nil
}

// mountOTel registers the engine's instruments on an OpenTelemetry meter and
// serves a pull-based JSON snapshot of them at /metrics/otel.
func (app *App) mountOTel(e *echo.Echo) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter, err := otelexport.NewOTelExporter(provider.Meter("tenantauth"), app.engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return fmt.Errorf("otel exporter: %w", err)
	}
	app.closers = append(app.closers, func() {
		_ = exporter.Close()
		_ = provider.Shutdown(context.Background())
	})

	e.GET("/metrics/otel", func(c echo.Context) error {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(c.Request().Context(), &rm); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, rm.ScopeMetrics)
	})
	return nil
}

func (app *App) openStore(ctx context.Context) (tenantauth.UserRepository, tenantauth.TenantRepository, error) {
	switch app.cfg.Store {
	case storePostgres:
		if app.cfg.Migrate {
			if err := postgres.Migrate(app.cfg.PostgresDSN); err != nil {
				return nil, nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		pool, err := postgres.Open(ctx, app.cfg.PostgresDSN, app.cfg.PostgresMaxConns)
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, pool.Close)
		return postgres.NewUserRepository(pool), postgres.NewTenantRepository(pool), nil

	case storeSQLite:
		db, err := sqlite.Open(ctx, app.cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if app.cfg.Migrate {
			if err := db.ApplyMigrations(); err != nil {
				return nil, nil, fmt.Errorf("sqlite migrate: %w", err)
			}
		}
		return db.Users(), db.Tenants(), nil

	default:
		app.logger.Warn().Msg("using the in-memory store; accounts are lost on restart")
		return memory.NewUserStore(), memory.NewTenantStore(), nil
	}
}

// notifier publishes to NATS when configured and always logs notices. A NATS
// outage at startup degrades to log-only delivery.
func (app *App) notifier() tenantauth.EmailNotifier {
	logNotifier := notify.NewLog(app.logger)
	logNotifier.IncludeToken = app.cfg.AppEnv == "local"
	if app.cfg.NATSURL == "" {
		return logNotifier
	}

	nc, err := nats.Connect(app.cfg.NATSURL, nats.Name("tenantauth"))
	if err != nil {
		app.logger.Error().Err(err).Msg("nats connect failed; notices are only logged")
		return logNotifier
	}
	app.closers = append(app.closers, func() { _ = nc.Drain() })
	return notify.Multi{
		notify.NewNATS(nc, notify.WithSubjects(app.cfg.NATSVerifySubject, app.cfg.NATSResetSubject)),
		logNotifier,
	}
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info().Str("addr", app.cfg.HTTPAddr).Str("store", app.cfg.Store).Msg("listening")
		errCh <- app.echo.Start(app.cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGrace)
		defer cancel()
		return app.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases resources in reverse order of acquisition.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}
