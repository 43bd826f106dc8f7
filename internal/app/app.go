// Package app wires the configuration, HTTP server and maintenance
// scheduler into one runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/altafino/invoice-analyzer/internal/analysis"
	"github.com/altafino/invoice-analyzer/internal/api"
	"github.com/altafino/invoice-analyzer/internal/artifact"
	"github.com/altafino/invoice-analyzer/internal/config"
	"github.com/altafino/invoice-analyzer/internal/errorlog"
	"github.com/altafino/invoice-analyzer/internal/extract"
	"github.com/altafino/invoice-analyzer/internal/logger"
	"github.com/altafino/invoice-analyzer/internal/progress"
	"github.com/altafino/invoice-analyzer/internal/scheduler"
	"github.com/altafino/invoice-analyzer/internal/types"
	"github.com/altafino/invoice-analyzer/internal/validation"
	"github.com/labstack/echo/v4"
)

// Version is stamped at build time.
var Version = "dev"

// App represents the main application
type App struct {
	cfgMu     sync.RWMutex
	cfg       *types.Config
	configDir string
	configID  string
	logger    *slog.Logger

	echo       *echo.Echo
	tracker    *progress.Tracker
	service    *analysis.Service
	store      artifact.Store
	failureLog *errorlog.Manager
	scheduler  *scheduler.Scheduler
	watcher    *config.ConfigWatcher
	wg         sync.WaitGroup
}

// New creates a new application instance
func New(baseLogger *slog.Logger, configDir string, configID string) (*App, error) {
	app := &App{
		configDir: configDir,
		configID:  configID,
	}

	config.InitLogger(baseLogger)
	if err := config.LoadConfigs(configDir); err != nil {
		return nil, fmt.Errorf("failed to load configs: %w", err)
	}

	cfg, err := selectConfig(configID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", cfg.Meta.ID, err)
	}
	app.cfg = cfg
	app.logger = logger.Setup(cfg)

	store, err := artifact.NewStore(context.Background(), cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}
	app.store = store

	failureLog, err := errorlog.NewManager(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create failure log: %w", err)
	}
	app.failureLog = failureLog

	app.tracker = progress.NewTracker(app.logger)
	app.service = analysis.NewService(cfg, app.tracker, extract.NewExtractor(app.logger), store, app.logger)
	app.service.SetFailureLog(failureLog)
	app.scheduler = scheduler.NewScheduler(app.logger)

	app.echo = echo.New()
	api.SetupMiddleware(app.echo, cfg)
	api.RegisterRoutes(app.echo, api.NewHandlers(&api.Dependencies{
		Config:   cfg,
		Logger:   app.logger,
		Tracker:  app.tracker,
		Analysis: app.service,
		Store:    store,
		Version:  Version,
	}))

	return app, nil
}

func selectConfig(configID string) (*types.Config, error) {
	if configID != "" {
		return config.GetConfig(configID)
	}
	enabled := config.GetEnabledConfigs()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no enabled configuration found")
	}
	return enabled[0], nil
}

// Logger exposes the configured application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Config returns the most recently accepted configuration.
func (a *App) Config() *types.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// applyReload swaps in a validated configuration. The previous config value
// is never written to, so components built against it keep a consistent
// view; swapped-in settings take effect where the new pointer is read.
func (a *App) applyReload(cfg *types.Config) {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	a.cfg = cfg
}

// Start starts all application services
func (a *App) Start() error {
	watcher, err := config.StartWatcher(a.configDir, a.logger)
	if err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	a.watcher = watcher

	if err := a.scheduleMaintenance(); err != nil {
		return err
	}
	a.scheduler.Start()

	a.wg.Add(1)
	go a.watchConfigs()

	cfg := a.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.echo.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	a.echo.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second
	a.echo.Server.IdleTimeout = time.Duration(cfg.Server.IdleTimeout) * time.Second

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("starting HTTP server", "addr", addr)
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server stopped", "error", err)
		}
	}()

	return nil
}

func (a *App) scheduleMaintenance() error {
	jobRetention := time.Duration(a.cfg.Analysis.JobRetention) * time.Minute
	if err := a.scheduler.ScheduleTask("purge-jobs", jobRetention, func() {
		a.tracker.CleanupExpired(jobRetention)
		a.service.CleanupExpired(jobRetention)
	}); err != nil {
		return err
	}

	retention := time.Duration(a.cfg.Artifacts.Retention) * time.Minute
	interval := time.Duration(a.cfg.Artifacts.CleanupInterval) * time.Minute
	if err := a.scheduler.ScheduleTask("purge-artifacts", interval, func() {
		if _, err := a.store.PurgeExpired(retention); err != nil {
			a.logger.Warn("artifact cleanup failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if a.cfg.Analysis.FailureLog.Enabled {
		return a.scheduler.ScheduleTask("purge-failure-logs", 24*time.Hour, func() {
			if err := a.failureLog.CleanupOldErrors(); err != nil {
				a.logger.Warn("failure log cleanup failed", "error", err)
			}
		})
	}
	return nil
}

// Stop gracefully stops all application services
func (a *App) Stop() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.echo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.echo.Shutdown(ctx); err != nil {
			a.logger.Warn("HTTP server shutdown", "error", err)
		}
	}
	if a.failureLog != nil {
		if err := a.failureLog.Close(); err != nil {
			a.logger.Warn("failure log close", "error", err)
		}
	}
	a.wg.Wait()
}

// watchConfigs re-validates configuration on change. Running components keep
// the config they were built with; the accepted config is swapped in as a
// whole and picked up on the next restart.
func (a *App) watchConfigs() {
	defer a.wg.Done()

	for range a.watcher.ReloadChan() {
		a.logger.Info("configuration change detected")

		cfg, err := selectConfig(a.configID)
		if err != nil {
			a.logger.Error("failed to reload config", "error", err)
			continue
		}
		if err := validation.ValidateConfig(cfg); err != nil {
			a.logger.Error("reloaded configuration is invalid, keeping the old one",
				"id", cfg.Meta.ID,
				"error", err,
			)
			continue
		}

		a.applyReload(cfg)
		a.logger.Info("configuration reloaded", "id", cfg.Meta.ID)
	}
}
