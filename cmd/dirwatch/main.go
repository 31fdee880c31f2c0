package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dirwatch"
	"dirwatch/internal/cli"
	"dirwatch/internal/config"
	"dirwatch/internal/logging"
	"dirwatch/internal/metrics"
	"dirwatch/internal/otel"
	"dirwatch/internal/version"
	"dirwatch/internal/watcher"
)

const tracingShutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	return runWithSignals(args, out, errOut, os.LookupEnv, signalCh)
}

func runWithSignals(args []string, out io.Writer, errOut io.Writer, lookup func(string) (string, bool), signalCh <-chan os.Signal) int {
	cfg, err := parseArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitCodeSuccess
		}
		fmt.Fprintln(errOut, err)
		return exitCodeUsage
	}
	if cfg.ShowVersion {
		cli.PrintVersion(out, "dirwatch")
		return exitCodeSuccess
	}

	settings, err := loadSettings(cfg, lookup)
	if err != nil {
		fmt.Fprintf(errOut, "dirwatch: %v\n", err)
		return exitCodeUsage
	}
	level, _ := logging.ParseLevel(settings.Log.Level)
	logger := logging.NewLoggerWithOutput(nil, level, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := watchShutdownSignals(logger, cancel, signalCh)
	defer stopSignals()

	shutdownTracing := setupTracing(ctx, settings, logger)
	defer shutdownTracing()

	registry := &metrics.Registry{}
	controller, err := watcher.NewController(watcher.Options{
		Root:              settings.Watch.Root,
		PollInterval:      settings.Watch.PollInterval,
		BufferSize:        int(settings.Watch.BufferSize),
		MaxBufferSize:     int(settings.Watch.MaxBufferSize),
		ResyncOnInvariant: settings.Watch.ResyncOnInvariant,
		Logger:            logger,
		Metrics:           registry,
	})
	if err != nil {
		logger.Error("watcher setup failed", map[string]string{logging.FieldError: err.Error()})
		return exitCodeFailure
	}
	events, _ := controller.SubscribeKinds(cfg.Kinds...)
	printed := printEvents(out, events)

	if path := resolveConfigPath(cfg, lookup); path != "" {
		startReload(ctx, path, cfg, settings, lookup, logger)
	}

	runErr := controller.Run(ctx)
	<-printed

	if settings.Metrics.File != "" {
		if err := writeMetricsFile(settings.Metrics.File, registry); err != nil {
			logger.Warn("metrics file not written", map[string]string{
				logging.FieldPath:  settings.Metrics.File,
				logging.FieldError: err.Error(),
			})
		}
	}
	if runErr != nil {
		return exitCodeFailure
	}
	return exitCodeSuccess
}

// printEvents writes one line per event until the controller closes its bus.
func printEvents(out io.Writer, events <-chan watcher.Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			fmt.Fprintln(out, formatEvent(ev))
		}
	}()
	return done
}

func formatEvent(ev watcher.Event) string {
	entry := "file"
	if ev.IsDir {
		entry = "dir"
	}
	return strings.Join([]string{ev.Kind.String(), entry, ev.Path}, " ")
}

func startReload(ctx context.Context, path string, cfg Config, settings config.Settings, lookup func(string) (string, bool), logger *logging.Logger) {
	defaults, err := fs.ReadFile(dirwatch.EmbeddedConfigFS, dirwatch.DefaultConfigPath)
	if err != nil {
		return
	}
	load := func() (config.Settings, error) {
		overrides, err := config.EnvOverrides(lookup)
		if err != nil {
			return config.Settings{}, err
		}
		for key, value := range cfg.Overrides {
			overrides[key] = value
		}
		return config.LoadSettings(path, defaults, overrides)
	}
	if err := startConfigReload(ctx, path, settings, load, logger); err != nil {
		logger.Warn("config reload disabled", map[string]string{
			logging.FieldPath:  path,
			logging.FieldError: err.Error(),
		})
	}
}

func setupTracing(ctx context.Context, settings config.Settings, logger *logging.Logger) func() {
	options := otel.SDKOptionsFromEnv(otel.SDKOptions{
		Enabled:      settings.Otel.Enabled,
		HTTPEndpoint: settings.Otel.Endpoint,
		ServiceName:  settings.Otel.ServiceName,
	})
	options.ServiceVersion = version.Version

	shutdown, err := otel.SetupSDK(ctx, options)
	if err != nil {
		logger.Warn("tracing disabled", map[string]string{logging.FieldError: err.Error()})
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", map[string]string{logging.FieldError: err.Error()})
		}
	}
}
