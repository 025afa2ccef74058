package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xReLogic/colofail/internal/config"
	"github.com/0xReLogic/colofail/internal/gate"
	"github.com/0xReLogic/colofail/internal/logging"
	"github.com/0xReLogic/colofail/internal/panel"
	"github.com/0xReLogic/colofail/internal/registry"
	"github.com/0xReLogic/colofail/internal/server"
	"github.com/0xReLogic/colofail/internal/store"
	"github.com/0xReLogic/colofail/internal/tracing"
)

// seedRegistry merges the seed file with inline seed entries; inline wins.
func seedRegistry(cfg config.SeedConfig) (registry.FailingCountries, error) {
	fc := registry.FailingCountries{}
	if cfg.File != "" {
		fromFile, err := registry.LoadSeedFile(cfg.File)
		if err != nil {
			return nil, err
		}
		fc = fromFile
	}
	for code, delay := range registry.FromStringMap(cfg.FailingCountries) {
		fc[code] = delay
	}
	return fc, nil
}

func main() {
	// Parse command line flags
	flags := pflag.NewFlagSet("colofail", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to configuration file")
	flags.String("listen-port", "8787", "Port to listen on")
	flags.String("store-backend", "memory", "Registry store backend: memory, file or redis")
	flags.String("redis-addr", "localhost:6379", "Redis address for the redis backend")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	_ = flags.Parse(os.Args[1:])

	// Load configuration
	v, err := config.New(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set environment for logger
	if cfg.Logging.Environment != "" {
		os.Setenv("COLOFAIL_ENV", cfg.Logging.Environment)
	}
	if err := logging.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() { _ = logging.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracing(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			logging.LogError("Failed to initialize tracing", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer shutdown()
			logging.LogInfo("Tracing initialized", map[string]interface{}{
				"service":  cfg.Tracing.ServiceName,
				"endpoint": cfg.Tracing.Endpoint,
			})
		}
	}

	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logging.GetLogger().Fatal("failed_to_open_store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer backend.Close()

	seed, err := seedRegistry(cfg.Seed)
	if err != nil {
		logging.GetLogger().Fatal("failed_to_read_seed", zap.Error(err))
	}
	seeded, err := backend.Seed(ctx, seed)
	if err != nil {
		logging.GetLogger().Fatal("failed_to_seed_store", zap.Error(err))
	}
	logging.LogInfo("store_ready", map[string]interface{}{
		"backend": cfg.Store.Backend,
		"seeded":  seeded,
		"seed":    seed.Codes(),
	})

	g := gate.New(backend, gate.Options{
		CountryHeader:  cfg.Geo.Header,
		DefaultCountry: cfg.Geo.DefaultCountry,
		Panel:          panel.FromConfig(cfg.Panel),
	})
	srv := server.NewHTTPServer(":"+cfg.ListenPort, g, backend)

	if *configPath != "" {
		config.Watch(v, func(next *config.Config, ev fsnotify.Event, err error) {
			if err != nil {
				logging.LogError("config_reload_failed", map[string]interface{}{
					"file":  ev.Name,
					"error": err.Error(),
				})
				return
			}
			logging.SetLevel(next.Logging.Level)
			logging.LogInfo("config_reloaded", map[string]interface{}{
				"file":      ev.Name,
				"log_level": next.Logging.Level,
			})
		})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(srv.Start)
	eg.Go(func() error {
		<-egCtx.Done()
		logging.GetLogger().Info("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logging.GetLogger().Info("colofail_started",
		zap.String("listen_port", cfg.ListenPort),
		zap.String("store", cfg.Store.Backend),
		zap.String("country_header", cfg.Geo.Header),
	)

	if err := eg.Wait(); err != nil {
		logging.GetLogger().Error("server_stopped", zap.Error(err))
	}
}
