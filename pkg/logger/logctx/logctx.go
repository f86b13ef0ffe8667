// Package logctx logs with the fields carried by a request context.
package logctx

import (
	"context"

	"github.com/nguyentranbao-ct/storefront/pkg/ctxval"
	"github.com/nguyentranbao-ct/storefront/pkg/logger"
	"go.uber.org/zap"
)

var log = logger.MustNamed("store")

func with(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return log
	}
	if fields := ctxval.Fields(ctx); len(fields) > 0 {
		return log.With(fields...)
	}
	return log
}

func Debugw(ctx context.Context, msg string, kv ...any) { with(ctx).Debugw(msg, kv...) }
func Infow(ctx context.Context, msg string, kv ...any)  { with(ctx).Infow(msg, kv...) }
func Warnw(ctx context.Context, msg string, kv ...any)  { with(ctx).Warnw(msg, kv...) }
func Errorw(ctx context.Context, msg string, kv ...any) { with(ctx).Errorw(msg, kv...) }

func Infof(ctx context.Context, template string, args ...any) {
	with(ctx).Infof(template, args...)
}

func Errorf(ctx context.Context, template string, args ...any) {
	with(ctx).Errorf(template, args...)
}
