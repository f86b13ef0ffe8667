package models

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
)

// MaxQuantity is the largest quantity Put accepts for a single offer.
const MaxQuantity = 99

var ErrNotForSale = errors.New("offer has no price")

type CartItem struct {
	Offer    *Offer
	Quantity int64
}

// Total is the item's price times its quantity.
func (i *CartItem) Total() Price {
	if i.Offer.Price == nil {
		return Price{}
	}
	return Price{Currency: i.Offer.Price.Currency, Amount: i.Offer.Price.Amount * i.Quantity}
}

// Cart is an ordered list of items priced in a single currency. Items are
// keyed by offer identity, so a cart belongs to the catalog it was built
// from.
type Cart struct {
	Items    []*CartItem
	Currency *Currency
}

func NewCart(currency *Currency) *Cart {
	return &Cart{Currency: currency}
}

// Item returns the item holding offer, if any.
func (c *Cart) Item(offer *Offer) (*CartItem, bool) {
	for _, item := range c.Items {
		if item.Offer == offer {
			return item, true
		}
	}
	return nil, false
}

// AddOrGetItem returns the item holding offer, appending one with quantity
// zero when there is none.
func (c *Cart) AddOrGetItem(offer *Offer) *CartItem {
	if item, ok := c.Item(offer); ok {
		return item
	}
	item := &CartItem{Offer: offer}
	c.Items = append(c.Items, item)
	return item
}

func (c *Cart) Remove(item *CartItem) bool {
	i := slices.Index(c.Items, item)
	if i < 0 {
		return false
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	return true
}

// Put sets the quantity of offer. Singleton offers are always bought once,
// quantities are capped at MaxQuantity and a quantity of zero or less removes
// the item. The returned item is nil when it was removed.
func (c *Cart) Put(offer *Offer, quantity int64) (*CartItem, error) {
	if offer.Price == nil {
		return nil, fmt.Errorf("%s: %w", offer.ID, ErrNotForSale)
	}
	if quantity <= 0 {
		if item, ok := c.Item(offer); ok {
			c.Remove(item)
		}
		return nil, nil
	}
	if offer.Singleton {
		quantity = 1
	}
	item := c.AddOrGetItem(offer)
	item.Quantity = min(quantity, MaxQuantity)
	return item, nil
}

func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Total sums all items. Unpriced items contribute nothing. It panics with
// ErrConflictingCurrencies if an item is priced in another currency, which
// only happens when offers from different catalogs are mixed.
func (c *Cart) Total() Price {
	var amount int64
	for _, item := range c.Items {
		if item.Offer.Price == nil {
			continue
		}
		p := item.Total()
		if p.Currency != c.Currency {
			panic(fmt.Errorf("%w: cart in %s, %s priced in %s",
				ErrConflictingCurrencies, c.Currency, item.Offer.ID, p.Currency))
		}
		amount += p.Amount
	}
	return Price{Currency: c.Currency, Amount: amount}
}

// Encode renders the items for a checkout request, one
// ("offer", id, "ver", version, "num", quantity) list per item, in cart
// order.
func (c *Cart) Encode() ttol.List {
	ret := make(ttol.List, 0, len(c.Items))
	for _, item := range c.Items {
		ret = append(ret, ttol.Of(
			"offer", item.Offer.ID,
			"ver", item.Offer.Version,
			"num", item.Quantity,
		))
	}
	return ret
}

// CartLine is one decoded cart item as the store server sees it.
type CartLine struct {
	OfferID  string
	Version  string
	Quantity int64
}

// DecodeCartItems reverses Encode.
func DecodeCartItems(l ttol.List) ([]CartLine, error) {
	ret := make([]CartLine, 0, len(l))
	for i, v := range l {
		fields, err := ttol.AsList(v)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		m, err := ttol.Map(fields)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		line := CartLine{
			OfferID: ttol.Lookup(m, "offer"),
			Version: ttol.Lookup(m, "ver"),
		}
		if line.Quantity, err = ttol.AsInt(m["num"]); err != nil {
			return nil, fmt.Errorf("item %d num: %w", i, err)
		}
		ret = append(ret, line)
	}
	return ret, nil
}
