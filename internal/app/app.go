package app

import (
	"context"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/kafka"
	"github.com/nguyentranbao-ct/storefront/internal/repo/browser"
	"github.com/nguyentranbao-ct/storefront/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/storefront/internal/repo/storeapi"
	"github.com/nguyentranbao-ct/storefront/internal/repo/thumbnail"
	"github.com/nguyentranbao-ct/storefront/internal/server"
	"github.com/nguyentranbao-ct/storefront/internal/usecase"
	"github.com/nguyentranbao-ct/storefront/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Invoke builds the application graph and runs funcs against it.
func Invoke(conf *config.Config, funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	log.Debugw("config loaded", zap.Reflect("config", redacted(conf)))
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Supply(conf),
		Module,
		fx.Invoke(funcs...),
	)
}

// Module provides everything except the config.
var Module = fx.Options(
	fx.Provide(
		newCurrencyRegistry,
		newWorkerPool,
		newThumbnails,

		storeapi.NewClient,
		thumbnail.NewLoader,
		browser.NewLauncher,

		mongodb.NewDB,
		mongodb.NewReceiptRepository,
		kafka.NewPublisher,

		usecase.NewJournal,
		usecase.NewCatalogLoader,
		usecase.NewStore,
		newCheckoutDeps,

		server.NewHandler,
	),
	fx.Invoke(mongodb.EnsureReceiptIndexes),
)

// RunStore ticks the store controller for the lifetime of the app.
func RunStore(lc fx.Lifecycle, sd fx.Shutdowner, store usecase.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	log := logger.MustNamed("app")
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := store.Run(ctx); err != nil {
					log.Errorw("store controller failed", "error", err)
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func redacted(conf *config.Config) config.Config {
	c := *conf
	c.Session.Key = "***"
	c.Journal.TokenKey = "***"
	c.Mongo.Password = "***"
	return c
}
