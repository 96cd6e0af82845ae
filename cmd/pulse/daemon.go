package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/pulse/internal/api"
	"github.com/energizer-project/pulse/internal/cli"
	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/connector"
	"github.com/energizer-project/pulse/internal/db"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/health"
	"github.com/energizer-project/pulse/internal/monitor"
	"github.com/energizer-project/pulse/internal/network"
	"github.com/energizer-project/pulse/internal/scheduler"
	"github.com/energizer-project/pulse/internal/telemetry"
	"github.com/energizer-project/pulse/internal/util"
)

const (
	shutdownTimeout = 30 * time.Second
	apiBindRetries  = 15
)

type daemonOptions struct {
	configDir string
	noCLI     bool
}

func runDaemon(parent context.Context, opts *daemonOptions) error {
	fmt.Printf(banner, version)
	fmt.Println()

	// Defaults until the config is loaded.
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Info().
		Str("version", version).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting Pulse")

	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging := cfg.GetApplicationData().Logging
	if err := util.InitLogger(util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxSizeMB:  logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
		Console:    true,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	if err := validateOrSetup(cfg); err != nil {
		return err
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eventBus := events.NewEventBus()
	defer eventBus.Stop()

	// The console "quit" command shuts the daemon down.
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(context.Context, events.Event) error {
		cancel()
		return nil
	})

	app := cfg.GetApplicationData()
	store, err := db.NewStore(app.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()
	store.Attach(eventBus)

	plugin := monitor.NewPlugin(cfg, eventBus,
		network.NewPingClient(network.DefaultTimeout),
		network.NewQueryClient(network.DefaultTimeout))

	var apiServer *api.Server
	if app.API.Enabled {
		apiServer = api.NewServer(cfg, eventBus, plugin, api.Options{Version: version, History: store})
	}

	var mqttHandler *telemetry.MQTTHandler
	if app.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus, version)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	notifier := connector.NewDiscordNotifier(cfg, eventBus)
	healthMgr := health.NewManager(cfg, eventBus, plugin.Poller())
	sched := scheduler.NewScheduler(cfg, store)

	var wg sync.WaitGroup
	goTask := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("task", name).Msg("starting")
			fn()
		}()
	}

	if apiServer != nil {
		goTask("api", func() {
			if err := startWithRetry(ctx, "API server", apiServer.Start, apiBindRetries); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
			}
		})
	}
	if mqttHandler != nil {
		goTask("mqtt", func() {
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		})
	}
	goTask("discord", func() { notifier.Run(ctx) })
	goTask("health", func() { healthMgr.Start(ctx) })
	goTask("scheduler", func() { sched.Start(ctx) })

	// Sinks are attached before the first poll so the baseline reaches them.
	if err := plugin.OnLoad(ctx); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	if !opts.noCLI {
		console := cli.NewCLI(cfg, eventBus, plugin, store)
		// Not tracked by wg: a blocked stdin read must not hold up shutdown.
		go console.Start(ctx)
	}

	<-ctx.Done()
	log.Info().Msg("initiating graceful shutdown...")

	plugin.OnUnload(context.Background())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(shutdownTimeout):
		log.Warn().Dur("timeout", shutdownTimeout).Msg("shutdown timed out, forcing exit")
	}

	log.Info().Msg("Pulse stopped")
	return nil
}

// validateOrSetup logs validation findings and runs the setup wizard on a
// first run. Any other invalid configuration is fatal.
func validateOrSetup(cfg *config.Config) error {
	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if validation.IsValid() {
		return nil
	}

	if !cfg.IsFirstRun() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		return fmt.Errorf("configuration validation failed, please fix the errors above")
	}

	log.Info().Msg("first run detected, launching setup wizard")
	if err := config.RunSetupWizard(cfg, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("setup wizard failed: %w", err)
	}
	if result := config.Validate(cfg); !result.IsValid() {
		return fmt.Errorf("configuration still invalid after setup: %w", result.Errors[0])
	}
	return nil
}

// startWithRetry retries startFn on bind errors with a fixed delay.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
