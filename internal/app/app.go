package app

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bassista/tankwatch/internal/analytics"
	"github.com/bassista/tankwatch/internal/cache"
	"github.com/bassista/tankwatch/internal/config"
	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/observability"
	"github.com/bassista/tankwatch/internal/profile"
	"github.com/bassista/tankwatch/internal/scheduler"
	"github.com/bassista/tankwatch/internal/telemetry"
)

// App is the application container (immutable dependencies + lifecycle
// context). It is not a request context; handlers should still use gin's
// request context.
type App struct {
	Config    *config.Config
	Profiles  *profile.Store
	Source    telemetry.Source
	Cache     *cache.StoreCache
	Results   *analytics.ResultCache
	Refresher *scheduler.Refresher
	Metrics   *observability.Metrics
	Clock     clockwork.Clock

	BaseCtx context.Context
	Cancel  context.CancelFunc

	refreshDone <-chan struct{}
}

func New(
	cfg *config.Config,
	profiles *profile.Store,
	source telemetry.Source,
	store *cache.StoreCache,
	results *analytics.ResultCache,
	refresher *scheduler.Refresher,
	metrics *observability.Metrics,
	clock clockwork.Clock,
) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if profiles == nil {
		return nil, errors.New("profile store is nil")
	}
	if source == nil {
		return nil, errors.New("telemetry source is nil")
	}
	if store == nil {
		return nil, errors.New("store cache is nil")
	}
	if results == nil {
		return nil, errors.New("result cache is nil")
	}
	if refresher == nil {
		return nil, errors.New("refresher is nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:    cfg,
		Profiles:  profiles,
		Source:    source,
		Cache:     store,
		Results:   results,
		Refresher: refresher,
		Metrics:   metrics,
		Clock:     clock,
		BaseCtx:   ctx,
		Cancel:    cancel,
	}, nil
}

// StartBackground starts the profile document watcher and the refresh loop.
func (a *App) StartBackground() {
	if err := a.Profiles.StartWatcher(a.BaseCtx); err != nil {
		logger.WithComponent("app").Fatalf("cannot start profile watcher: %v", err)
	}
	a.refreshDone = a.Refresher.Start(a.BaseCtx)
}

// Shutdown cancels the lifecycle context and waits for the refresh loop to
// finish its final persistence pass.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()

	if a.refreshDone != nil {
		select {
		case <-a.refreshDone:
		case <-time.After(a.Config.Server.ShutDownTimeout):
			logger.WithComponent("app").Warn("refresh loop did not stop within the shutdown timeout")
		}
	}
}
