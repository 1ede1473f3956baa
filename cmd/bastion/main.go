// Bastion proxy server — sits between a mud and its clients, running
// every line through the plugin fabric, and serves the admin API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bastionmud/bastion/pkg/api"
	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/config"
	"github.com/bastionmud/bastion/pkg/database"
	"github.com/bastionmud/bastion/pkg/dispatch"
	"github.com/bastionmud/bastion/pkg/feed"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/alias"
	"github.com/bastionmud/bastion/pkg/plugins/core/clients"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
	"github.com/bastionmud/bastion/pkg/plugins/core/events"
	"github.com/bastionmud/bastion/pkg/plugins/core/proxy"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
	"github.com/bastionmud/bastion/pkg/plugins/core/timers"
	"github.com/bastionmud/bastion/pkg/plugins/core/triggers"
	"github.com/bastionmud/bastion/pkg/records"
	"github.com/bastionmud/bastion/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupLogging configures the default slog logger from config.
func setupLogging(cfg *config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// buildCatalog assembles the compiled-in plugin catalog: the core
// engines plus every optional plugin the binary ships.
func buildCatalog(settingsStore settings.Store, historyStore commands.HistoryStore) (*plugin.Catalog, error) {
	cat := plugin.NewCatalog()
	for _, def := range []plugin.Definition{
		settings.Definition(settingsStore),
		commands.Definition(historyStore),
		events.Definition(),
		triggers.Definition(),
		timers.Definition(),
		clients.Definition(),
		proxy.Definition(),
		alias.Definition(),
	} {
		if err := cat.Add(def); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting bastion", "version", version.Full(), "config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log)

	// 2. Open the database. An empty path runs everything in memory.
	var settingsStore settings.Store
	var historyStore commands.HistoryStore
	var stateStore plugin.StateStore
	var dbClient *database.Client
	if path := cfg.DatabasePath(); path != "" {
		dbClient, err = database.NewClient(ctx, path)
		if err != nil {
			slog.Error("Failed to open database", "path", path, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		settingsStore = database.NewSettingsStore(dbClient)
		historyStore = database.NewHistoryStore(dbClient)
		stateStore = database.NewStateStore(dbClient)
		slog.Info("Database opened", "path", path)
	} else {
		settingsStore = settings.NewMemoryStore()
		historyStore = commands.NewMemoryHistory()
		stateStore = plugin.NewMemoryState()
		slog.Warn("No database configured, state will not survive a restart")
	}

	// 3. Build the core fabric: bus, capability registry, dispatcher,
	// runtime, pipeline
	log := slog.Default()
	b := bus.New(log)
	records.EventStackSnapshot = b.Stack
	caps := capability.NewRegistry(log)
	dispatcher := dispatch.New(log, cfg.Dispatch.QueueSize)

	rt := &plugin.Runtime{
		Log:        log,
		Bus:        b,
		Caps:       caps,
		Dispatcher: dispatcher,
		Config:     cfg,
		State:      stateStore,
	}
	rt.Pipeline = pipeline.New(log, b, proxy.NewFormatSource(rt))

	// Shutdown requests (signals, the shutdown command, server errors)
	// funnel into one channel.
	shutdownCh := make(chan struct{})
	var shutdownOnce sync.Once
	rt.RequestShutdown = func() {
		shutdownOnce.Do(func() { close(shutdownCh) })
	}

	// 4. Assemble the plugin catalog and the manager
	catalog, err := buildCatalog(settingsStore, historyStore)
	if err != nil {
		slog.Error("Failed to build plugin catalog", "error", err)
		os.Exit(1)
	}
	manager := plugin.NewManager(log, rt, catalog)

	// 5. Start the dispatcher and load plugins on it
	dispatcher.Start(ctx)
	var loadErr error
	if err := dispatcher.Do(ctx, "load plugins", func() {
		loadErr = manager.LoadAll(cfg.Plugins.Enabled...)
	}); err != nil {
		slog.Error("Dispatcher unavailable during startup", "error", err)
		os.Exit(1)
	}
	if loadErr != nil {
		slog.Error("Failed to load plugins", "error", loadErr)
		dispatcher.Stop()
		os.Exit(1)
	}
	slog.Info("Plugins loaded", "order", manager.LoadOrder())

	// 6. Start the live feed and tap it into the bus
	hub := feed.NewHub(log, 10*time.Second)
	hub.Start(ctx)
	tap := feed.NewTap(log, hub, b)
	if err := dispatcher.Do(ctx, "install feed tap", func() { tap.Install() }); err != nil {
		slog.Error("Failed to install feed tap", "error", err)
	}

	// 7. Start the admin API (non-blocking)
	errCh := make(chan error, 1)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(log, rt)
		apiServer.SetHistory(historyStore)
		apiServer.SetFeed(hub)
		apiServer.SetAllowedWSOrigins(cfg.API.AllowedWSOrigins)
		if dbClient != nil {
			apiServer.SetDatabase(dbClient)
		}
		go func() {
			addr := cfg.APIAddr()
			slog.Info("Admin API listening", "addr", addr)
			if err := apiServer.Start(addr); err != nil && err != http.ErrServerClosed {
				slog.Error("Admin API error", "error", err)
				errCh <- err
			}
		}()
	}

	slog.Info("Bastion started", "listen", cfg.ListenAddr())

	// 8. Wait for a shutdown signal, a shutdown command, or a server
	// error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case <-shutdownCh:
		slog.Info("Shutdown requested")
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown: save and unload plugins on the dispatcher,
	// which closes the listener, the client sessions and the mud
	// connection through the proxy engine's Uninitialize
	stopCtx, stopCancel := context.WithTimeout(ctx, 10*time.Second)
	defer stopCancel()
	if err := dispatcher.Do(stopCtx, "shutdown plugins", func() {
		manager.SaveAll()
		manager.Shutdown()
		tap.Remove()
	}); err != nil {
		slog.Warn("Plugin shutdown did not complete", "error", err)
	}

	// 10. Stop the admin API, the feed and the dispatcher
	if apiServer != nil {
		httpCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := apiServer.Shutdown(httpCtx); err != nil {
			slog.Error("Admin API shutdown error", "error", err)
		}
		httpCancel()
	}
	hub.Stop()
	dispatcher.Stop()

	slog.Info("Shutdown complete")
}
