package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"

	"github.com/senthilkumarv/aq-telemetry/internal/catalog"
	"github.com/senthilkumarv/aq-telemetry/internal/config"
	"github.com/senthilkumarv/aq-telemetry/internal/database"
	"github.com/senthilkumarv/aq-telemetry/internal/events"
	"github.com/senthilkumarv/aq-telemetry/internal/handlers"
	"github.com/senthilkumarv/aq-telemetry/internal/influx"
	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/metrics"
	"github.com/senthilkumarv/aq-telemetry/internal/retry"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.json", "Path to config file")
	dbPath := flag.String("db", "", "Path to SQLite database file (overrides config)")
	port := flag.String("port", "", "Server port (overrides config)")
	widgetsPath := flag.String("widgets", "", "Path to widget catalog (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfigWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Override with command line flags if provided
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *widgetsPath != "" {
		cfg.Widgets.Path = *widgetsPath
	}

	logger, closer, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_exited", slog.String("error", err.Error()))
		closer.Close()
		os.Exit(1)
	}
}

// dataSource is the executor backing dashboards plus its health check
type dataSource struct {
	exec  telemetry.Executor
	ping  func(context.Context) error
	close func() error
	db    *database.DB
}

func openDataSource(cfg *config.Config) (*dataSource, error) {
	switch cfg.DataSource {
	case config.DataSourceSQLite:
		db, err := database.NewDB(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return &dataSource{exec: database.NewExecutor(db), ping: db.Ping, close: db.Close, db: db}, nil
	default:
		client, err := influx.NewClient(influx.ClientConfig{
			Host:            cfg.Influx.Host,
			Token:           cfg.Influx.Token,
			Database:        cfg.Influx.Database,
			RetentionPolicy: cfg.Influx.RetentionPolicy,
			Timeout:         cfg.Influx.Timeout.Duration,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize influx client: %w", err)
		}
		return &dataSource{exec: client, ping: client.Ping, close: func() error { return nil }}, nil
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	cat, err := catalog.Load(cfg.Widgets.Path)
	if err != nil {
		if catalog.IsConfigError(err) {
			return fmt.Errorf("invalid widget catalog: %w", err)
		}
		return err
	}
	logger.Info("catalog_loaded",
		slog.String("path", cfg.Widgets.Path),
		slog.Int("tiles", len(cat.Tiles)),
		slog.Int("charts", len(cat.Charts)),
		slog.Int("series", cat.SeriesCount()))

	src, err := openDataSource(cfg)
	if err != nil {
		return err
	}
	defer src.close()
	logger.Info("data_source_initialized", slog.String("kind", cfg.DataSource))

	m := metrics.New()

	exec := src.exec
	if cfg.Breaker.Enabled {
		exec = telemetry.NewBreakerExecutor(exec, telemetry.BreakerSettings{
			Name:        cfg.DataSource,
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout.Duration,
			OnStateChange: func(_, to gobreaker.State) {
				m.SetBreakerState(float64(to))
			},
		}, logger)
	}

	publisher, err := events.NewPublisher(events.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	defer publisher.Close()

	// Initialize services
	assembler := services.NewAssembler(exec,
		services.WithMaxConcurrency(cfg.Dashboard.MaxConcurrency),
		services.WithQueryTimeout(cfg.Dashboard.QueryTimeout.Duration),
		services.WithMaxPoints(cfg.Dashboard.MaxPoints),
		services.WithReporter(services.NewReporter(logger, m, publisher)),
		services.WithMetrics(m),
		services.WithLogger(logger),
	)

	discovery := cfg.Aquariums.DiscoveryQuery
	if discovery == "" && cfg.DataSource == config.DataSourceSQLite {
		discovery = services.SQLiteDiscoveryQuery
	}
	aquariums := services.NewAquariumService(exec, cfg.Aquariums.IDs, discovery, logger,
		services.WithDiscoveryTTL(cfg.Aquariums.DiscoveryTTL.Duration))

	// Initialize handlers with config
	dashOpts := handlers.DashboardOptions{
		DefaultHours:   cfg.Dashboard.DefaultHours,
		MaxHours:       cfg.Dashboard.MaxHours,
		RequestTimeout: cfg.Dashboard.RequestTimeout.Duration,
	}
	dashboard := handlers.NewDashboardHandler(assembler, aquariums, cat, dashOpts, logger)
	readiness := &handlers.Readiness{}
	routes := handlers.Routes{
		Dashboard: dashboard,
		Stream:    handlers.NewStreamHandler(dashboard),
		Aquariums: handlers.NewAquariumHandler(aquariums, logger),
		Readiness: readiness,
		Config:    handlers.NewConfigHandler(dashOpts, cfg.Dashboard.MaxPoints, cat),
	}
	if src.db != nil {
		routes.Load = handlers.NewLoadHandler(services.NewLoader(src.db, logger), cfg.Data.RawDataFolder, logger)
		routes.Generate = handlers.NewGeneratorHandler(services.NewGenerator(src.db, logger), generateDefaults(cfg), logger)
		routes.Upload = handlers.NewUploadHandler(services.NewUploadService(src.db, logger), logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The service starts serving before the data source answers; /readyz
	// reports when it has.
	go func() {
		err := retry.Do(ctx, src.ping,
			retry.WithMaxAttempts(10),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				logger.Warn("data_source_ping_failed",
					slog.Int("attempt", attempt),
					slog.Duration("retry_in", delay),
					slog.String("error", err.Error()))
			}))
		if err != nil {
			logger.Warn("data_source_unreachable", slog.String("error", err.Error()))
			return
		}
		readiness.MarkReady()
		logger.Info("data_source_ready")
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(routes, m, logger),
		ReadHeaderTimeout: cfg.Server.ReadTimeout.Duration,
		ReadTimeout:       cfg.Server.ReadTimeout.Duration,
		WriteTimeout:      cfg.Server.WriteTimeout.Duration,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_starting",
			slog.String("addr", addr),
			slog.Bool("local_store", src.db != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func generateDefaults(cfg *config.Config) services.GenerateOptions {
	probes := make([]services.ProbeSpec, 0, len(cfg.Data.Generator.Probes))
	for _, p := range cfg.Data.Generator.Probes {
		probes = append(probes, services.ProbeSpec{ProbeType: p.ProbeType, Name: p.Name, Min: p.Min, Max: p.Max})
	}
	return services.GenerateOptions{
		Hosts:      cfg.Aquariums.IDs,
		Probes:     probes,
		Hours:      cfg.Data.Generator.Hours,
		Interval:   cfg.Data.Generator.Interval.Duration,
		Sequential: cfg.Data.Generator.Sequential,
	}
}
