package usecase

import (
	"fmt"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/util"
)

type View struct {
	State      ControllerState `json:"state"`
	Status     Status          `json:"status"`
	Generation int64           `json:"generation"`
	Cart       CartView        `json:"cart"`
	Viewer     *OfferView      `json:"viewer,omitempty"`
	Checkout   *CheckoutView   `json:"checkout,omitempty"`
}

type CheckoutView struct {
	Method models.CheckoutMethod `json:"method"`
	State  CheckoutState         `json:"state"`
}

type CartView struct {
	Currency string         `json:"currency,omitempty"`
	Items    []CartLineView `json:"items"`
	Total    string         `json:"total,omitempty"`
	Amount   int64          `json:"amount"`
	// Error is set when the total cannot be computed.
	Error string `json:"error,omitempty"`
}

type CartLineView struct {
	OfferID  string `json:"offer_id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Total    string `json:"total"`
}

type OfferView struct {
	ID         string      `json:"id"`
	Version    string      `json:"version"`
	Name       string      `json:"name"`
	Desc       string      `json:"desc,omitempty"`
	Category   string      `json:"category,omitempty"`
	Price      string      `json:"price,omitempty"`
	Singleton  bool        `json:"singleton"`
	Image      string      `json:"image"`
	Validation ViewerState `json:"validation,omitempty"`
}

type CategoryView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CatalogPage struct {
	Category string         `json:"category"`
	Path     string         `json:"path"`
	Children []CategoryView `json:"children"`
	Offers   []OfferView    `json:"offers"`
	Credit   string         `json:"credit,omitempty"`
}

// Image load states reported in OfferView.Image.
const (
	ImageNone    = "none"
	ImageLoading = "loading"
	ImageReady   = "ready"
	ImageFailed  = "failed"
)

func offerView(o *models.Offer) OfferView {
	v := OfferView{
		ID:        o.ID,
		Version:   o.Version,
		Name:      o.Name,
		Desc:      o.Desc,
		Category:  o.Category,
		Singleton: o.Singleton,
		Image:     imageState(o),
	}
	if o.Price != nil {
		v.Price = o.Price.String()
	}
	return v
}

func imageState(o *models.Offer) string {
	if o.Image == nil {
		return ImageNone
	}
	_, done, err := poll(o.Image)
	switch {
	case !done:
		return ImageLoading
	case err != nil:
		return ImageFailed
	default:
		return ImageReady
	}
}

func newCartView(cart *models.Cart) (v CartView) {
	v.Items = make([]CartLineView, 0, len(cart.Items))
	if cart.Currency != nil {
		v.Currency = cart.Currency.Symbol
	}
	for _, item := range cart.Items {
		v.Items = append(v.Items, CartLineView{
			OfferID:  item.Offer.ID,
			Name:     item.Offer.Name,
			Quantity: item.Quantity,
			Total:    item.Total().String(),
		})
	}
	defer func() {
		if r := recover(); r != nil {
			v.Error = fmt.Sprint(r)
		}
	}()
	total := cart.Total()
	v.Total = total.String()
	v.Amount = total.Amount
	return v
}

func catalogPage(cat *models.Catalog, categoryID string) *CatalogPage {
	page := &CatalogPage{
		Category: categoryID,
		Path:     cat.Path(categoryID),
		Children: util.ConvertList(cat.Children(categoryID), func(c *models.Category) CategoryView {
			return CategoryView{ID: c.ID, Name: c.Name}
		}),
		Offers: util.ConvertList(cat.OffersIn(categoryID), offerView),
	}
	if cat.Credit != nil {
		page.Credit = cat.Credit.String()
	}
	return page
}
