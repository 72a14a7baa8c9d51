// Package cmd runs the bot process: resolve and load the config, build the
// app, then hand it to the Telegram runtime until SIGINT or SIGTERM.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/AcmeNiles/AcmeTradeBot/core/config"
	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	coretelegram "github.com/AcmeNiles/AcmeTradeBot/core/telegram"
)

const component = "app"

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is what Run drives.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Readiness is optionally implemented by a TelegramApp to describe the
// upstreams and listeners it serves. The attributes go on the ready line.
type Readiness interface {
	ReadyAttrs() []slog.Attr
}

// Options configure Run.
type Options struct {
	AppName string

	// ConfigPath is the explicit --config value; see ResolveConfigPath.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// ResolveConfigPath returns the first non-empty of flag, $envVar and fallback.
func ResolveConfigPath(flag, envVar, fallback string) (string, error) {
	if envVar == "" {
		envVar = "CONFIG_PATH"
	}
	for _, p := range []string{flag, os.Getenv(envVar), fallback} {
		if p != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("cmd: no config path: pass --config or set %s", envVar)
}

// Run loads configuration, bootstraps the app and blocks in the Telegram
// runtime. Startup failures are returned before the runtime starts.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	name := opts.AppName
	if name == "" {
		name = "bot"
	}
	ctx := logger.Background()
	startedAt := time.Now()

	path, err := ResolveConfigPath(opts.ConfigPath, opts.ConfigEnvVar, opts.DefaultConfigPath)
	if err != nil {
		return err
	}
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config %s: %w", path, err)
	}
	if cfg.CoreConfig() == nil {
		return fmt.Errorf("cmd: %s has no core configuration", path)
	}
	logger.Info(ctx, component, "config.loaded",
		slog.String("app", name),
		slog.String("path", path),
	)

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap %s: %w", name, err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		// the logger is gone at this point
		if err := shutdownLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "%s: logger shutdown: %v\n", name, err)
		}
	}()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	var ready []slog.Attr
	if r, ok := app.(Readiness); ok {
		ready = r.ReadyAttrs()
	}
	runOpts = withLifecycleLogs(runOpts, name, startedAt, ready)

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(sigCtx, runOpts)
}

// withLifecycleLogs logs the ready line after the app's own OnStart hook
// succeeds and the shutdown line before its OnStop hook.
func withLifecycleLogs(opts coretelegram.RunOptions, name string, startedAt time.Time, ready []slog.Attr) coretelegram.RunOptions {
	onStart, onStop := opts.OnStart, opts.OnStop
	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		attrs := append([]slog.Attr{
			slog.String("app", name),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		}, ready...)
		logger.Info(ctx, component, "ready", attrs...)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, component, "shutdown", slog.String("app", name))
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
	return opts
}
