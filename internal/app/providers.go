package app

import (
	"context"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/repo/browser"
	"github.com/nguyentranbao-ct/storefront/internal/repo/storeapi"
	"github.com/nguyentranbao-ct/storefront/internal/repo/thumbnail"
	"github.com/nguyentranbao-ct/storefront/internal/usecase"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"go.uber.org/fx"
)

func newCurrencyRegistry(conf *config.Config) (*models.CurrencyRegistry, error) {
	return models.LoadCurrencyRegistry(conf.Currency.File)
}

// newWorkerPool is the executor every blocking store call runs on.
func newWorkerPool(lc fx.Lifecycle, conf *config.Config) async.Executor {
	pool := async.NewPool(conf.Workers.PoolSize)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Stop()
			return nil
		},
	})
	return pool
}

func newThumbnails(l thumbnail.Loader) usecase.ImageStarter {
	return l
}

func newCheckoutDeps(
	api storeapi.Client,
	exec async.Executor,
	launcher browser.Launcher,
	journal usecase.Journal,
) usecase.CheckoutDeps {
	return usecase.CheckoutDeps{
		API:     api,
		Exec:    exec,
		Browser: launcher,
		Journal: journal,
	}
}
