package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	pkgmdw "github.com/nguyentranbao-ct/storefront/internal/server/middleware"
	"github.com/nguyentranbao-ct/storefront/pkg/logger"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"go.uber.org/fx"
)

func StartServer(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	conf *config.Config,
	handler Controller,
) {
	e := NewEcho(conf, handler)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logctx.Infow(ctx, "starting HTTP server", "addr", conf.Server.Addr)
				if err := e.Start(conf.Server.Addr); !errors.Is(err, http.ErrServerClosed) {
					logctx.Errorw(ctx, "HTTP server stopped", "error", err)
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

// NewEcho builds the control API.
func NewEcho(conf *config.Config, handler Controller) *echo.Echo {
	log := logger.MustNamed("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = pkgmdw.NewValidator()
	e.HTTPErrorHandler = pkgmdw.ErrorHandler(log, storeErrors)

	logConfig := pkgmdw.LogRequestConfig{
		Logger: log,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == "/metrics"
		},
		Generation: handler.Generation,
	}

	e.Use(pkgmdw.Metrics())
	e.Use(pkgmdw.RequestID())
	if conf.Server.CORSOrigin != "" {
		e.Use(pkgmdw.CORS(regexp.MustCompile(conf.Server.CORSOrigin)))
	}
	e.Use(pkgmdw.LogRequest(logConfig))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logctx.Errorw(c.Request().Context(), "PANIC RECOVER", "error", err, "stack", string(stack))
			return err
		},
	}))
	if conf.Server.Pprof {
		pkgmdw.PprofWrap(e, "")
	}

	e.GET("/health", handler.Health)

	api := e.Group("/api/v1")
	api.GET("/state", pkgmdw.WrapHandler(handler.State))
	api.GET("/catalog", pkgmdw.WrapHandler(handler.Catalog))
	api.POST("/offers/:id/view", pkgmdw.WrapHandler(handler.ViewOffer))
	api.POST("/viewer/close", pkgmdw.WrapHandler(handler.CloseViewer))
	api.PUT("/cart", pkgmdw.WrapHandler(handler.PutCart))
	api.DELETE("/cart/:offer_id", pkgmdw.WrapHandler(handler.RemoveCart))
	api.POST("/checkout", pkgmdw.WrapHandler(handler.Checkout))
	api.POST("/actions", pkgmdw.WrapHandler(handler.Press))
	api.GET("/receipts", pkgmdw.WrapHandler(handler.Receipts))

	return e
}
