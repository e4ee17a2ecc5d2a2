package daemon

import (
	"context"

	"github.com/cursyhq/cursy/internal/auth"
	"github.com/cursyhq/cursy/internal/bus"
	"github.com/cursyhq/cursy/internal/channel"
	"github.com/cursyhq/cursy/internal/chat"
	"github.com/cursyhq/cursy/internal/config"
	"github.com/cursyhq/cursy/internal/lock"
	"github.com/cursyhq/cursy/internal/logging"
	"github.com/cursyhq/cursy/internal/recipients"
	"github.com/cursyhq/cursy/internal/rest"
	"github.com/cursyhq/cursy/internal/send"
	"github.com/cursyhq/cursy/internal/session"
	"github.com/cursyhq/cursy/internal/status"
	"github.com/cursyhq/cursy/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAuth,
			provideRESTClient,
			provideRecipients,
			providePresence,
			provideIngestor,
			provideChannelManager,
			provideCoordinator,
			provideChatService,
			provideWatcher,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		logger.Info("no config file, using defaults", zap.Error(err))
		return &config.Config{
			APIBaseURL: config.DefaultAPIBaseURL,
			SocketURL:  config.DefaultSocketURL,
		}
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAuth(p Params) (*auth.Manager, error) {
	return auth.NewManager(session.CredentialsPath(p.SessionName))
}

func provideRESTClient(cfg *config.Config, am *auth.Manager) *rest.Client {
	return rest.NewClient(cfg.APIBaseURL, am)
}

func provideRecipients() *recipients.Cache {
	return recipients.NewCache()
}

func providePresence(b *bus.Bus) *channel.Presence {
	return channel.NewPresence(b)
}

func provideIngestor(db *store.DB, am *auth.Manager, rc *recipients.Cache, presence *channel.Presence, b *bus.Bus, logger *zap.Logger) *channel.Ingestor {
	return channel.NewIngestor(db, am, rc, presence, b, logger)
}

func provideChannelManager(cfg *config.Config, am *auth.Manager, machine *status.Machine, ingest *channel.Ingestor, presence *channel.Presence, client *rest.Client, logger *zap.Logger) *channel.Manager {
	return channel.NewManager(cfg.SocketURL, am, machine, ingest, presence, client, logger)
}

func provideCoordinator(db *store.DB, mgr *channel.Manager, rc *recipients.Cache, am *auth.Manager, b *bus.Bus, logger *zap.Logger) *send.Coordinator {
	return send.NewCoordinator(db, mgr, rc, am, b, logger)
}

func provideChatService(client *rest.Client, db *store.DB, coord *send.Coordinator, rc *recipients.Cache, am *auth.Manager, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(client, db, coord, rc, am, b, logger)
}

func provideWatcher(db *store.DB, b *bus.Bus, logger *zap.Logger) *store.Watcher {
	return store.NewWatcher(db, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, mgr *channel.Manager, svc *chat.Service, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Speculative connect: logs and stays Disconnected when no
			// credentials exist yet.
			go func() {
				mgr.Start()
				if !mgr.Connected() {
					return
				}
				ctx := context.Background()
				if err := mgr.SeedOnlineUsers(ctx); err != nil {
					logger.Warn("failed to seed online users", zap.Error(err))
				}
				if _, err := svc.Conversations(ctx); err != nil {
					logger.Warn("initial conversation sync failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			mgr.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
