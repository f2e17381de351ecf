package engine

import (
	"context"

	"github.com/BrooksPoltl/snapsync/internal/bus"
	"github.com/BrooksPoltl/snapsync/internal/config"
	"github.com/BrooksPoltl/snapsync/internal/logging"
	"github.com/BrooksPoltl/snapsync/internal/remote"
	"github.com/BrooksPoltl/snapsync/internal/send"
	"github.com/BrooksPoltl/snapsync/internal/store"
	"github.com/BrooksPoltl/snapsync/internal/subs"
	"github.com/BrooksPoltl/snapsync/internal/unread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the configuration and remote implementations passed to the
// fx module by the host application.
type Params struct {
	Config     *config.Config
	Client     remote.Client
	Subscriber remote.Subscriber
}

// Module returns the fx module for the sync engine, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("engine",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStore,
			provideCoordinator,
			provideManager,
			provideAggregator,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(p.Config.LogPath)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStore(p Params, b *bus.Bus, logger *zap.Logger) *store.Store {
	return store.New(p.Config.UserID, b, logger)
}

func provideCoordinator(p Params, st *store.Store, b *bus.Bus, logger *zap.Logger) *send.Coordinator {
	return send.NewCoordinator(st, p.Client, b, logger, p.Config.MaxMessageLength)
}

func provideManager(p Params, st *store.Store, b *bus.Bus, logger *zap.Logger) *subs.Manager {
	return subs.NewManager(st, p.Subscriber, b, logger)
}

func provideAggregator(p Params, st *store.Store, b *bus.Bus, logger *zap.Logger) *unread.Aggregator {
	return unread.NewAggregator(st, p.Client, b, logger, p.Config.UnreadReconcileInterval())
}

func provideEngine(
	p Params,
	st *store.Store,
	coordinator *send.Coordinator,
	manager *subs.Manager,
	aggregator *unread.Aggregator,
	logger *zap.Logger,
) *Engine {
	return NewEngine(st, coordinator, manager, aggregator, p.Client, logger, p.Config.FetchLimit)
}

func registerLifecycle(lc fx.Lifecycle, eng *Engine, aggregator *unread.Aggregator, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			aggregator.Start(context.Background())
			logger.Info("sync engine started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			aggregator.Stop()
			eng.CloseAll()
			logger.Info("sync engine stopped")
			return nil
		},
	})
}
