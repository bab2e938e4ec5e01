package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tgrall/gears-explorer/internal/config"
	"github.com/tgrall/gears-explorer/internal/directory"
	"github.com/tgrall/gears-explorer/internal/explorer"
	"github.com/tgrall/gears-explorer/internal/httpserver"
	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
	"github.com/tgrall/gears-explorer/internal/logger"
	"github.com/tgrall/gears-explorer/internal/notify"
	"github.com/tgrall/gears-explorer/internal/redis"
	"github.com/tgrall/gears-explorer/internal/settings"
	"github.com/tgrall/gears-explorer/internal/version"
)

type App struct {
	cfg       *config.Config
	logger    logger.Logger
	server    *httpserver.Server
	manager   *redis.Manager
	directory *directory.Service
	watcher   *settings.Watcher
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	center := notify.NewCenter(cfg.NotificationBuffer)

	manager := redis.NewManager(redis.ConnectOptions{
		DialTimeout:  cfg.RedisDT,
		ReadTimeout:  cfg.RedisRT,
		WriteTimeout: cfg.RedisWT,
		PoolSize:     cfg.RedisPoolSize,
		PingTimeout:  cfg.RedisPingTimeout,
	}, loggerClient.With(logger.String("component", "redis")), center)

	dir := directory.New(manager, center,
		loggerClient.With(logger.String("component", "directory")), cfg.AggregationMode)

	store := settings.NewStore(cfg.SettingsFile, settings.Settings{
		URL:             cfg.RedisURL,
		AggregationMode: cfg.AggregationMode,
	})
	a := &App{
		cfg:       cfg,
		logger:    loggerClient,
		manager:   manager,
		directory: dir,
	}
	a.watcher = settings.NewWatcher(store, a.onSettingsEvent,
		loggerClient.With(logger.String("component", "settings")), cfg.SettingsPollInterval)

	exp := explorer.New(dir, a.watcher, center, loggerClient)

	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		Explorer:      exp,
		Notifications: center,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
	}
	a.server = httpserver.New(cfg, loggerClient, d)

	return a
}

// onSettingsEvent applies a settings change. Only an endpoint change
// rebuilds the session.
func (a *App) onSettingsEvent(ctx context.Context, ev settings.Event) {
	switch e := ev.(type) {
	case settings.EndpointChanged:
		if err := a.directory.Reconnect(ctx, e.URL); err != nil {
			// already reported to the user by the connection manager
			a.logger.Debug("reconnect after endpoint change failed", logger.Error(err))
		}
	case settings.AggregationModeChanged:
		a.directory.SetMode(e.Mode)
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting gears-explorer v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("gears-explorer %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load connects to the configured endpoint, if any
	if err := a.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start settings watcher: %w", err)
	}
	a.logger.Info("settings watcher started",
		logger.String("file", a.cfg.SettingsFile),
		logger.Duration("interval", a.cfg.SettingsPollInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.shutdownRedis()
		return err
	}

	a.watcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.shutdownRedis()
	a.logger.Info("✅ gears-explorer stopped cleanly")
	return nil
}

// shutdownRedis lets pending unregisters finish, then closes the session.
func (a *App) shutdownRedis() {
	a.directory.Wait()
	a.directory.Disconnect()
	a.logger.Info("✅ Redis session closed")
}
