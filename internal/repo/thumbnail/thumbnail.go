// Package thumbnail downloads offer images and scales them to the size
// shown next to an offer.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/repo/storeapi"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"go.uber.org/fx"
)

// DefaultSize is the edge of the square box thumbnails are fitted into.
const DefaultSize = 40

type Loader interface {
	// Start begins loading ref in the background.
	Start(ctx context.Context, ref string) *async.Task[image.Image]
	Load(ctx context.Context, ref string) (image.Image, error)
}

type loader struct {
	api  storeapi.Client
	exec async.Executor
	size int
}

// NewLoader runs downloads on a pool of their own, stopped with the app, so
// thumbnails never hold up workers that checkout steps need.
func NewLoader(lc fx.Lifecycle, api storeapi.Client, conf *config.Config) Loader {
	pool := async.NewPool(conf.Workers.ImagePoolSize)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Stop()
			return nil
		},
	})
	return New(api, pool, conf.Store.ThumbnailSize)
}

func New(api storeapi.Client, exec async.Executor, size int) Loader {
	if size <= 0 {
		size = DefaultSize
	}
	return &loader{api: api, exec: exec, size: size}
}

func (l *loader) Start(ctx context.Context, ref string) *async.Task[image.Image] {
	return async.Submit(ctx, l.exec, func(ctx context.Context) (image.Image, error) {
		return l.Load(ctx, ref)
	})
}

func (l *loader) Load(ctx context.Context, ref string) (image.Image, error) {
	// Work queued for a catalog that has since been replaced.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := l.api.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", ref, err)
	}
	return Fit(img, l.size), nil
}

// Fit scales img so that its longer edge is size pixels, keeping the aspect
// ratio.
func Fit(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}
	if w > h {
		return imaging.Resize(img, size, max(h*size/w, 1), imaging.Lanczos)
	}
	return imaging.Resize(img, max(w*size/h, 1), size, imaging.Lanczos)
}
