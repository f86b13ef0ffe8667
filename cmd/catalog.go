package cmd

import (
	"context"
	"fmt"
	"image"
	"os/signal"
	"syscall"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/repo/storeapi"
	"github.com/nguyentranbao-ct/storefront/internal/repo/thumbnail"
	"github.com/nguyentranbao-ct/storefront/internal/usecase"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/tmplx"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultCatalogFormat = `{{.ID}}	{{.Name}}	{{default "-" .Price}}	{{default "/" .Path}}	{{.Image}}`

// CatalogLine is what --format templates render, once per offer.
type CatalogLine struct {
	ID       string
	Version  string
	Name     string
	Desc     string
	Path     string
	Price    string
	Category string
	Image    string
}

var catalogFormat string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Fetch the catalog once and print its offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := tmplx.Parse("format", catalogFormat,
			tmplx.WithSample(CatalogLine{ID: "hat", Name: "Hat"}, tmplx.NotEmpty))
		if err != nil {
			return fmt.Errorf("--format: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		registry, err := models.LoadCurrencyRegistry(conf.Currency.File)
		if err != nil {
			return err
		}
		api, err := storeapi.NewClient(conf)
		if err != nil {
			return err
		}
		images := async.NewPool(conf.Workers.ImagePoolSize)
		defer images.Stop()

		thumbs := thumbnail.New(api, images, conf.Store.ThumbnailSize)
		cat, err := usecase.NewCatalogLoader(api, registry, thumbs).Load(ctx)
		if err != nil {
			return err
		}
		sizes, err := prefetchThumbnails(ctx, cat.Offers, conf.Workers.ImagePoolSize)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, o := range cat.Offers {
			line := CatalogLine{
				ID:       o.ID,
				Version:  o.Version,
				Name:     o.Name,
				Desc:     o.Desc,
				Path:     cat.Path(o.Category),
				Category: o.Category,
				Image:    sizes[i],
			}
			if o.Price != nil {
				line.Price = o.Price.String()
			}
			text, err := tmpl.Render(line)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(out, text); err != nil {
				return err
			}
		}
		if cat.Credit != nil {
			_, err = fmt.Fprintf(out, "store credit: %s\n", cat.Credit)
		}
		return err
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogFormat, "format", defaultCatalogFormat, "text/template rendered for every offer")
}

// prefetchThumbnails waits for every offer image and describes the outcome.
// A failed image is reported, not returned.
func prefetchThumbnails(ctx context.Context, offers []*models.Offer, limit int) ([]string, error) {
	sizes := make([]string, len(offers))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, o := range offers {
		if o.Image == nil {
			sizes[i] = usecase.ImageNone
			continue
		}
		g.Go(func() error {
			img, err := o.Image.Wait(ctx)
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				sizes[i] = usecase.ImageFailed
			default:
				sizes[i] = describe(img)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sizes, nil
}

func describe(img image.Image) string {
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
}
