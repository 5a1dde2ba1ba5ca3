package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/diarkit/config"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/observability"
)

// App carries the configuration, logger and telemetry shared by every
// diarkit command, and runs them through one lifecycle:
// telemetry → OnStart hooks → ready check → OnReady hooks → work → OnStop hooks.
type App struct {
	Name    string
	Version string
	Cfg     *config.Config
	Logger  *logger.Logger
	Metrics *observability.PipelineMetrics

	gracefulTimeout time.Duration
	checkers        []observability.HealthChecker
	telemetry       observability.ShutdownFunc

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp applies defaults to cfg, validates it and initializes the logger.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	app := &App{
		Name:            cfg.Name,
		Version:         cfg.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging, cfg.Name)
		app.Logger = logger.GetGlobalLogger()
	}

	// Instruments bind to the global provider and start exporting once
	// telemetry is initialized during startup.
	metrics, err := observability.NewPipelineMetrics(observability.Meter())
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	app.Metrics = metrics
	return app, nil
}

// AddHealthChecker registers a dependency for the ready check and /health.
func (a *App) AddHealthChecker(checkers ...observability.HealthChecker) {
	a.checkers = append(a.checkers, checkers...)
}

// HealthCheckers returns the registered checkers.
func (a *App) HealthCheckers() []observability.HealthChecker {
	return a.checkers
}

// ReadyCheck reports an error naming every dependency that is down.
func (a *App) ReadyCheck(ctx context.Context) error {
	sh := observability.Check(ctx, a.Name, a.Version, a.checkers...)
	var down []string
	for _, h := range sh.Components {
		if h.Status == observability.HealthStatusUp {
			continue
		}
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		down = append(down, detail)
	}
	if len(down) > 0 {
		return fmt.Errorf("unhealthy dependencies: %v", down)
	}
	return nil
}

// Run starts the app and blocks until a signal or ctx cancellation, then
// shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.Logger.Info("application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// RunTask runs a finite task inside the lifecycle. SIGINT and SIGTERM
// cancel the task's context; shutdown runs once the task returns.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Debug("starting application", logger.Fields(
		"name", a.Name,
		"version", a.Version,
		"environment", a.Cfg.Environment,
	))

	shutdown, err := observability.Init(ctx, a.Cfg.Telemetry, a.Name, a.Version, a.Cfg.Environment)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.telemetry = shutdown

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Logger.Debug("application started", logger.Fields(
		logger.FieldDuration, time.Since(start).Milliseconds(),
		"dependencies", len(a.checkers),
	))
	return nil
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return nil
	}
}

// Shutdown runs the stop sequence. Use it when managing your own lifecycle.
func (a *App) Shutdown(_ context.Context) error {
	return a.stop()
}

// stop runs OnStop hooks in reverse registration order, then flushes
// telemetry, all within the graceful timeout.
func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	for i := len(a.onStop) - 1; i >= 0; i-- {
		if err := a.onStop[i](ctx); err != nil {
			a.Logger.Error("onStop hook error", logger.Fields(logger.FieldError, err.Error()))
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
	}

	if a.telemetry != nil {
		if err := a.telemetry(ctx); err != nil {
			a.Logger.Error("telemetry shutdown error", logger.Fields(logger.FieldError, err.Error()))
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
		a.telemetry = nil
	}

	a.Logger.Debug("application shutdown complete")
	return shutdownErr
}
