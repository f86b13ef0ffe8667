package usecase

import (
	"context"
	"fmt"
	"image"
	"slices"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/repo/storeapi"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
)

// ImageStarter starts loading the image behind a catalog reference.
type ImageStarter interface {
	Start(ctx context.Context, ref string) *async.Task[image.Image]
}

type CatalogLoader interface {
	Load(ctx context.Context) (*models.Catalog, error)
}

type catalogLoader struct {
	api      storeapi.Client
	registry *models.CurrencyRegistry
	images   ImageStarter
}

func NewCatalogLoader(api storeapi.Client, registry *models.CurrencyRegistry, images ImageStarter) CatalogLoader {
	return &catalogLoader{
		api:      api,
		registry: registry,
		images:   images,
	}
}

func (l *catalogLoader) Load(ctx context.Context) (*models.Catalog, error) {
	list, err := l.api.Fetch(ctx, "offers")
	if err != nil {
		return nil, fmt.Errorf("fetch offers: %w", err)
	}
	return DecodeCatalog(ctx, list, l.registry, l.images)
}

// DecodeCatalog builds a catalog from the records of the offers function.
// An error record aborts with a *models.MessageError. Image loads are started
// on images, which may be nil.
func DecodeCatalog(ctx context.Context, list ttol.List, registry *models.CurrencyRegistry, images ImageStarter) (*models.Catalog, error) {
	var (
		offers     []*models.Offer
		categories []*models.Category
		credit     *models.Price
		order      int
	)
	for i, v := range list {
		rec, err := ttol.AsList(v)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if len(rec) == 0 {
			return nil, fmt.Errorf("record %d: empty", i)
		}
		kind, err := ttol.AsString(rec[0])
		if err != nil {
			return nil, fmt.Errorf("record %d kind: %w", i, err)
		}

		switch kind {
		case "offer":
			offer, err := decodeOffer(ctx, rec, registry, images)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			offer.SortKey = order
			order++
			offers = append(offers, offer)
		case "cat":
			cat, err := decodeCategory(rec)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			cat.SortKey = order
			order++
			categories = append(categories, cat)
		case "error":
			msg := msgLoadFailed
			if len(rec) > 1 {
				if text, err := ttol.AsString(rec[1]); err == nil && text != "" {
					msg = text
				}
			}
			return nil, models.NewMessageError(msg)
		case "credit":
			if len(rec) < 2 {
				return nil, fmt.Errorf("record %d: credit without price", i)
			}
			p, err := decodePrice(rec[1], registry)
			if err != nil {
				return nil, fmt.Errorf("record %d credit: %w", i, err)
			}
			credit = &p
		}
	}

	slices.SortStableFunc(offers, func(a, b *models.Offer) int { return a.SortKey - b.SortKey })
	slices.SortStableFunc(categories, func(a, b *models.Category) int { return a.SortKey - b.SortKey })

	c := models.NewCatalog(offers, categories, credit)
	warnDangling(ctx, c)
	return c, nil
}

// fields walks the tag/value pairs of a record starting at from. A trailing
// tag without a value is ignored.
func fields(rec ttol.List, from int, fn func(tag string, val ttol.Value) error) error {
	for a := from; a+1 < len(rec); a += 2 {
		tag, err := ttol.AsString(rec[a])
		if err != nil {
			return fmt.Errorf("tag at %d: %w", a, err)
		}
		if err := fn(tag, rec[a+1]); err != nil {
			return fmt.Errorf("%s: %w", tag, err)
		}
	}
	return nil
}

func decodeOffer(ctx context.Context, rec ttol.List, registry *models.CurrencyRegistry, images ImageStarter) (*models.Offer, error) {
	if len(rec) < 3 {
		return nil, fmt.Errorf("offer: want id and version, got %d values", len(rec)-1)
	}
	id, err := ttol.AsString(rec[1])
	if err != nil {
		return nil, fmt.Errorf("offer id: %w", err)
	}
	ver, err := ttol.AsString(rec[2])
	if err != nil {
		return nil, fmt.Errorf("offer %s version: %w", id, err)
	}

	offer := &models.Offer{ID: id, Version: ver}
	err = fields(rec, 3, func(tag string, val ttol.Value) error {
		var err error
		switch tag {
		case "name":
			offer.Name, err = ttol.AsString(val)
		case "desc":
			offer.Desc, err = ttol.AsString(val)
		case "cat":
			offer.Category, err = ttol.AsString(val)
		case "img":
			var ref string
			if ref, err = ttol.AsString(val); err == nil && images != nil {
				offer.Image = images.Start(ctx, ref)
			}
		case "price":
			var p models.Price
			if p, err = decodePrice(val, registry); err == nil {
				offer.Price = &p
			}
		case "monad":
			offer.Singleton = true
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", id, err)
	}
	return offer, nil
}

func decodeCategory(rec ttol.List) (*models.Category, error) {
	if len(rec) < 2 {
		return nil, fmt.Errorf("cat: missing id")
	}
	id, err := ttol.AsString(rec[1])
	if err != nil {
		return nil, fmt.Errorf("cat id: %w", err)
	}
	cat := &models.Category{ID: id}
	err = fields(rec, 2, func(tag string, val ttol.Value) error {
		var err error
		switch tag {
		case "name":
			cat.Name, err = ttol.AsString(val)
		case "cat":
			cat.Parent, err = ttol.AsString(val)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cat %s: %w", id, err)
	}
	return cat, nil
}

func decodePrice(v ttol.Value, registry *models.CurrencyRegistry) (models.Price, error) {
	l, err := ttol.AsList(v)
	if err != nil {
		return models.Price{}, err
	}
	if len(l) != 2 {
		return models.Price{}, fmt.Errorf("price: want (symbol, amount), got %d values", len(l))
	}
	symbol, err := ttol.AsString(l[0])
	if err != nil {
		return models.Price{}, fmt.Errorf("price symbol: %w", err)
	}
	amount, err := ttol.AsInt(l[1])
	if err != nil {
		return models.Price{}, fmt.Errorf("price amount: %w", err)
	}
	return models.ParsePrice(registry, symbol, amount)
}

// warnDangling logs category references that do not resolve. They are
// treated as the root everywhere.
func warnDangling(ctx context.Context, c *models.Catalog) {
	seen := make(map[string]struct{})
	warn := func(kind, owner, id string) {
		if id == "" {
			return
		}
		if _, ok := c.Category(id); ok {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		logctx.Warnw(ctx, "dangling category reference", "kind", kind, "owner", owner, "category", id)
	}
	for _, cat := range c.Categories {
		warn("cat", cat.ID, cat.Parent)
	}
	for _, o := range c.Offers {
		warn("offer", o.ID, o.Category)
	}
}
