// Package server builds the application's dependencies and runs them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/award-watcher/internal/alert"
	"github.com/JakeFAU/award-watcher/internal/alert/email"
	alertpubsub "github.com/JakeFAU/award-watcher/internal/alert/pubsub"
	"github.com/JakeFAU/award-watcher/internal/alert/pushover"
	"github.com/JakeFAU/award-watcher/internal/api"
	"github.com/JakeFAU/award-watcher/internal/clock/system"
	"github.com/JakeFAU/award-watcher/internal/config"
	"github.com/JakeFAU/award-watcher/internal/fetcher/headless"
	"github.com/JakeFAU/award-watcher/internal/hash/sha256"
	"github.com/JakeFAU/award-watcher/internal/history/postgres"
	"github.com/JakeFAU/award-watcher/internal/id/uuid"
	"github.com/JakeFAU/award-watcher/internal/logging"
	"github.com/JakeFAU/award-watcher/internal/metrics"
	"github.com/JakeFAU/award-watcher/internal/monitor"
	"github.com/JakeFAU/award-watcher/internal/points"
	filestore "github.com/JakeFAU/award-watcher/internal/store/file"
	gcsstore "github.com/JakeFAU/award-watcher/internal/store/gcs"
)

// App contains the application's dependencies.
type App struct {
	cfg           config.Config
	logger        *zap.Logger
	loop          *monitor.Loop
	statusServer  *api.Server
	storage       *storage.Client
	history       *postgres.HistoryStore
	pubsubClient  *pubsub.Client
	pubsubChannel *alertpubsub.Channel
}

// Build creates the application's dependencies. Optional integrations are
// only constructed when configured.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.Strings("origins", cfg.Monitor.Origins),
		zap.Strings("dates", cfg.Monitor.Dates),
		zap.Int64("threshold", cfg.Monitor.PointsThreshold),
	)

	clock := system.New()
	browser, err := headless.NewBrowser(headless.Config{
		PageLoadTimeout: cfg.Browser.PageLoadTimeout,
		ElementTimeout:  cfg.Browser.ElementTimeout,
		SettleDelay:     cfg.Browser.SettleDelay,
		Headless:        cfg.Browser.Headless,
		UserAgent:       cfg.Browser.UserAgent,
		ExecPath:        cfg.Browser.ExecPath,
	}, cfg.Target(), clock, logging.Component(logger, "extractor"))
	if err != nil {
		return nil, fmt.Errorf("browser init failed: %w", err)
	}

	local, err := filestore.New(cfg.Store.Path, logging.Component(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}
	store, err := app.setupMirror(ctx, local)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	var history points.HistoryRecorder
	if err := app.setupHistory(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if app.history != nil {
		history = app.history
	}

	channels, err := app.setupChannels(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	dispatcher := alert.NewDispatcher(channels, cfg.Alerts.Timeout, logging.Component(logger, "alert"))
	if len(channels) == 0 {
		app.logger.Warn("no alert channels enabled, alerts will only be logged")
	} else {
		app.logger.Info("alert channels enabled", zap.Strings("channels", dispatcher.Names()))
	}

	app.loop, err = monitor.New(monitor.Config{
		Keys:             cfg.Keys(),
		Threshold:        cfg.Monitor.PointsThreshold,
		PacingDelay:      cfg.Monitor.PacingDelay,
		SweepInterval:    cfg.Monitor.SweepInterval,
		MaxSessionFaults: cfg.Monitor.MaxSessionFaults,
		PersistTimeout:   cfg.Store.PersistTimeout,
	}, monitor.Deps{
		Browser:    browser,
		Store:      store,
		Dispatcher: dispatcher,
		History:    history,
		Clock:      clock,
		IDs:        uuid.New(),
	}, logging.Component(logger, "monitor"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("monitor init failed: %w", err)
	}

	if cfg.Status.Enabled {
		app.statusServer = api.NewServer(app.loop, local, logging.Component(logger, "api"))
	}
	return app, nil
}

func (a *App) setupMirror(ctx context.Context, local *filestore.Store) (points.ValueStore, error) {
	if a.cfg.Store.GCSBucket == "" {
		return local, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	a.storage = client
	mirror, err := gcsstore.New(local, client, sha256.New(), gcsstore.Config{
		Bucket: a.cfg.Store.GCSBucket,
		Object: a.cfg.Store.GCSObject,
	}, logging.Component(a.logger, "mirror"))
	if err != nil {
		return nil, fmt.Errorf("gcs mirror init failed: %w", err)
	}
	a.logger.Info("mirroring snapshots to GCS", zap.String("uri", mirror.URI()))
	return mirror, nil
}

func (a *App) setupHistory(ctx context.Context) error {
	if a.cfg.History.DSN == "" {
		return nil
	}
	hist, err := postgres.New(ctx, postgres.Config{
		DSN:   a.cfg.History.DSN,
		Table: a.cfg.History.Table,
	})
	if err != nil {
		return fmt.Errorf("history store init failed: %w", err)
	}
	a.history = hist
	if err := hist.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("history schema init failed: %w", err)
	}
	a.logger.Info("recording observation history", zap.String("table", a.cfg.History.Table))
	return nil
}

func (a *App) setupChannels(ctx context.Context) ([]points.AlertChannel, error) {
	channels, err := buildChannels(a.cfg.Alerts)
	if err != nil {
		return nil, err
	}
	if !a.cfg.Alerts.PubSub.Enabled {
		return channels, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.Alerts.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	ch, err := alertpubsub.New(client.Topic(a.cfg.Alerts.PubSub.Topic))
	if err != nil {
		return nil, fmt.Errorf("pubsub channel init failed: %w", err)
	}
	a.pubsubChannel = ch
	return append(channels, ch), nil
}

// buildChannels constructs the channels that need no client connection.
func buildChannels(cfg config.AlertsConfig) ([]points.AlertChannel, error) {
	var channels []points.AlertChannel
	if cfg.Email.Enabled {
		ch, err := email.New(email.Config{
			From:     cfg.Email.From,
			Password: cfg.Email.Password,
			To:       cfg.Email.To,
			SMTPHost: cfg.Email.SMTPHost,
			SMTPPort: cfg.Email.SMTPPort,
		})
		if err != nil {
			return nil, fmt.Errorf("email channel init failed: %w", err)
		}
		channels = append(channels, ch)
	}
	if cfg.Pushover.Enabled {
		ch, err := pushover.New(pushover.Config{
			UserKey:  cfg.Pushover.UserKey,
			APIToken: cfg.Pushover.APIToken,
			Priority: cfg.Pushover.Priority,
			Retry:    cfg.Pushover.Retry,
			Expire:   cfg.Pushover.Expire,
			Sound:    cfg.Pushover.Sound,
			Endpoint: cfg.Pushover.Endpoint,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("pushover channel init failed: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// Run starts the optional status server and blocks in the monitor loop until
// SIGINT, SIGTERM or ctx cancellation.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if a.statusServer != nil {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Status.Port),
			Handler:           a.statusServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("status server started", zap.Int("port", a.cfg.Status.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("status server error", zap.Error(err))
			}
		}()
	}

	a.logger.Info("monitor started")
	err := a.loop.Run(ctx)
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if srv != nil {
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Error("status server shutdown error", zap.Error(shutdownErr))
		}
	}
	if closeErr := a.Close(shutdownCtx); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close releases every client the App opened.
func (a *App) Close(_ context.Context) error {
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubChannel != nil {
		a.pubsubChannel.Close()
		a.pubsubChannel = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.history != nil {
		a.history.Close()
		a.history = nil
	}
}
