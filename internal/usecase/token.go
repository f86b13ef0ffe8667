package usecase

import (
	"errors"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

var (
	ErrTokenConsumed    = errors.New("transaction token already used")
	ErrTokenForeignCart = errors.New("transaction token was issued for another cart")
)

// TxnToken is the opaque authorization returned by a credit submit. Only the
// submit step creates one, and it can be redeemed once, for the cart it was
// issued for.
type TxnToken struct {
	value    string
	cart     *models.Cart
	consumed bool
}

func issueToken(cart *models.Cart, value string) *TxnToken {
	return &TxnToken{value: value, cart: cart}
}

func (t *TxnToken) consume(cart *models.Cart) (string, error) {
	if t == nil || t.cart == nil || t.cart != cart {
		return "", ErrTokenForeignCart
	}
	if t.consumed {
		return "", ErrTokenConsumed
	}
	t.consumed = true
	return t.value, nil
}

func (t *TxnToken) Consumed() bool {
	return t != nil && t.consumed
}
