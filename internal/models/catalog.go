package models

import (
	"image"
	"strings"

	"github.com/nguyentranbao-ct/storefront/pkg/async"
)

type Offer struct {
	ID        string
	Version   string
	Name      string
	Desc      string
	Category  string
	Price     *Price
	Image     *async.Task[image.Image]
	Singleton bool
	SortKey   int
}

type Category struct {
	ID      string
	Name    string
	Parent  string
	SortKey int
}

// Catalog is the immutable result of one fetch of the store's offers.
type Catalog struct {
	Offers     []*Offer
	Categories []*Category
	Credit     *Price

	byID    map[string]*Category
	offerID map[string]*Offer
}

func NewCatalog(offers []*Offer, categories []*Category, credit *Price) *Catalog {
	c := &Catalog{
		Offers:     offers,
		Categories: categories,
		Credit:     credit,
		byID:       make(map[string]*Category, len(categories)),
		offerID:    make(map[string]*Offer, len(offers)),
	}
	for _, cat := range categories {
		c.byID[cat.ID] = cat
	}
	for _, o := range offers {
		if _, ok := c.offerID[o.ID]; !ok {
			c.offerID[o.ID] = o
		}
	}
	return c
}

// Category looks up a category. The empty id is the root and never resolves.
func (c *Catalog) Category(id string) (*Category, bool) {
	if id == "" {
		return nil, false
	}
	cat, ok := c.byID[id]
	return cat, ok
}

func (c *Catalog) Offer(id string) (*Offer, bool) {
	o, ok := c.offerID[id]
	return o, ok
}

// Parent returns the resolved parent of cat, or nil when cat sits at the
// root, including when its parent id does not resolve.
func (c *Catalog) Parent(cat *Category) *Category {
	p, ok := c.Category(cat.Parent)
	if !ok {
		return nil
	}
	return p
}

// resolve maps an id to itself when it names a known category and to the
// root otherwise.
func (c *Catalog) resolve(id string) string {
	if _, ok := c.Category(id); ok {
		return id
	}
	return ""
}

// Children lists the categories directly under parentID, in catalog order.
// An empty parentID lists the root level.
func (c *Catalog) Children(parentID string) []*Category {
	parentID = c.resolve(parentID)
	var ret []*Category
	for _, cat := range c.Categories {
		if c.resolve(cat.Parent) == parentID && cat.ID != parentID {
			ret = append(ret, cat)
		}
	}
	return ret
}

// OffersIn lists the offers directly in categoryID, in catalog order.
func (c *Catalog) OffersIn(categoryID string) []*Offer {
	categoryID = c.resolve(categoryID)
	var ret []*Offer
	for _, o := range c.Offers {
		if c.resolve(o.Category) == categoryID {
			ret = append(ret, o)
		}
	}
	return ret
}

// Path renders the names from the root down to categoryID, separated by
// " / ". Parent cycles stop at the first repeated category.
func (c *Catalog) Path(categoryID string) string {
	var names []string
	seen := map[string]bool{}
	for cat, ok := c.Category(categoryID); ok && !seen[cat.ID]; cat, ok = c.Category(cat.Parent) {
		seen[cat.ID] = true
		names = append(names, cat.Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, " / ")
}

// DefaultCurrency picks the currency a new cart for this catalog uses: the
// first priced offer's, else the credit's, else fallback.
func (c *Catalog) DefaultCurrency(fallback *Currency) *Currency {
	for _, o := range c.Offers {
		if o.Price != nil && o.Price.Currency != nil {
			return o.Price.Currency
		}
	}
	if c.Credit != nil && c.Credit.Currency != nil {
		return c.Credit.Currency
	}
	return fallback
}
