package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.ecosistema.dev/plataforma/statecore/internal/admin"
	"git.ecosistema.dev/plataforma/statecore/internal/api"
	"git.ecosistema.dev/plataforma/statecore/internal/config"
	"git.ecosistema.dev/plataforma/statecore/internal/events"
	"git.ecosistema.dev/plataforma/statecore/internal/history"
	"git.ecosistema.dev/plataforma/statecore/internal/journal"
	"git.ecosistema.dev/plataforma/statecore/internal/metrics"
	"git.ecosistema.dev/plataforma/statecore/internal/realtime"
	"git.ecosistema.dev/plataforma/statecore/internal/store"
	"git.ecosistema.dev/plataforma/statecore/internal/syncer"
	"git.ecosistema.dev/plataforma/statecore/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"statecore.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" default:"1" help:"Run the state daemon"`

	Version struct{} `cmd:"" help:"Print the version and exit"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "version":
		fmt.Println(version.Version)
	default:
		if err := serve(); err != nil {
			slog.Error("daemon failed", "error", err)
			os.Exit(1)
		}
	}
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)
	bus := events.NewBus()
	defer bus.Close()

	var hist *history.Log
	if !cfg.History.Disabled {
		hist = history.NewLog(cfg.History.MaxEntries)
	}

	manager := store.New(store.Options{
		Bus:      bus,
		Recorder: recorder,
		History:  hist,
		Version:  version.Version,
	})

	var client *api.Client
	if cfg.Sync.Enabled {
		client = api.NewClient(cfg.Sync.Endpoint, cfg.Sync.Timeout, cfg.Sync.BackoffPolicy())
	}

	if client != nil {
		stopReporting := reportCriticalErrors(ctx, bus, client)
		defer stopReporting()
	}

	for _, mod := range builtinModules(client) {
		manager.RegisterModule(ctx, mod)
	}

	engine, closeBackend, err := persistenceEngine(cfg.Persistence, manager)
	if err != nil {
		return err
	}
	if closeBackend != nil {
		defer closeBackend()
	}
	if engine != nil {
		manager.SetPersistence(engine)
	}

	var transport realtime.Transport
	if cfg.Realtime.Enabled {
		transport, err = realtime.NewNATSTransport(cfg.Realtime.NATSURL, cfg.Realtime.Subject)
		if err != nil {
			return err
		}
		defer transport.Close()
	}

	var syncEngine *syncer.Engine
	if cfg.Sync.Enabled || cfg.Realtime.Enabled || engine != nil {
		syncEngine, err = syncer.New(syncer.Options{
			Manager:   manager,
			Server:    serverClient(client),
			Transport: transport,
			Persist:   engine,
			Recorder:  recorder,
			Interval:  cfg.Sync.Interval,
			Backoff:   cfg.Sync.BackoffPolicy(),
			QueueCap:  cfg.Sync.QueueCap,
		})
		if err != nil {
			return err
		}
	}

	// Middleware order is fixed: mutations are logged, validated,
	// persisted, queued for sync, then recorded in history. The sync
	// stage broadcasts beyond this process, so it must come after every
	// stage that can veto the commit; history never vetoes.
	manager.Use(store.LoggerMiddleware{})
	manager.Use(store.ValidatorMiddleware{})
	if engine != nil {
		manager.Use(store.PersistenceMiddleware{Engine: engine})
	}
	if syncEngine != nil {
		manager.Use(syncEngine.Middleware())
	}
	if hist != nil {
		manager.Use(store.HistoryMiddleware{Log: hist})
	}

	manager.Hydrate(ctx)

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		stopJournal := journalMutations(ctx, bus, j)
		defer stopJournal()
	}

	if syncEngine != nil {
		if err := syncEngine.Start(ctx); err != nil {
			return err
		}
		defer syncEngine.Stop(context.Background())
	}

	server := admin.New(admin.Options{
		Addr:    cfg.Server.Addr,
		Manager: manager,
		Sync:    syncEngine,
		Metrics: metrics.HTTPHandler(registry),
	})
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	slog.Info("statecore daemon running",
		"instance", manager.InstanceID(),
		"modules", len(manager.Modules()),
		"addr", cfg.Server.Addr)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadConfig() (config.Config, error) {
	if _, err := os.Stat(CLI.Config); os.IsNotExist(err) {
		slog.Info("no configuration file, using defaults", "path", CLI.Config)
		return config.Default(), nil
	}
	return config.Load(CLI.Config)
}

func setupLogging(cfg config.LoggingConfig) {
	if CLI.Verbose {
		cfg.Level = "debug"
	}
	slog.SetDefault(slog.New(cfg.Handler()))
}

