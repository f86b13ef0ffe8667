package models

import (
	"time"
)

type CheckoutMethod string

const (
	CheckoutMethodRedirect CheckoutMethod = "paypal"
	CheckoutMethodCredit   CheckoutMethod = "credit"
)

// CheckoutOutcome is the terminal state a checkout machine ended in.
type CheckoutOutcome string

const (
	OutcomeRedirected      CheckoutOutcome = "redirected"
	OutcomeLaunchFailed    CheckoutOutcome = "launch_failed"
	OutcomeCompleted       CheckoutOutcome = "completed"
	OutcomeObsolete        CheckoutOutcome = "obsolete"
	OutcomeInvalid         CheckoutOutcome = "invalid"
	OutcomeRejected        CheckoutOutcome = "rejected"
	OutcomeUnexpectedError CheckoutOutcome = "unexpected_error"
)

type ReceiptLine struct {
	OfferID  string `bson:"offer_id" json:"offer_id"`
	Version  string `bson:"version" json:"version"`
	Name     string `bson:"name,omitempty" json:"name,omitempty"`
	Quantity int64  `bson:"quantity" json:"quantity"`
	Amount   int64  `bson:"amount" json:"amount"`
}

// CheckoutReceipt is the journal record of one finished checkout attempt.
type CheckoutReceipt struct {
	ID         ObjectID        `bson:"_id,omitempty" json:"id"`
	Username   string          `bson:"username" json:"username"`
	Method     CheckoutMethod  `bson:"method" json:"method"`
	Outcome    CheckoutOutcome `bson:"outcome" json:"outcome"`
	Currency   string          `bson:"currency" json:"currency"`
	Total      int64           `bson:"total" json:"total"`
	CreditUsed int64           `bson:"credit_used,omitempty" json:"credit_used,omitempty"`
	Lines      []ReceiptLine   `bson:"lines" json:"lines"`
	Message    string          `bson:"message,omitempty" json:"message,omitempty"`
	// SealedToken is the encrypted transaction token of a credit checkout.
	SealedToken string `bson:"sealed_token,omitempty" json:"-"`
	Generation  int64  `bson:"generation" json:"generation"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (CheckoutReceipt) CollectionName() string {
	return "checkout_receipts"
}

// NewReceipt captures the cart as it was submitted.
func NewReceipt(method CheckoutMethod, cart *Cart) *CheckoutReceipt {
	r := &CheckoutReceipt{
		Method: method,
		Lines:  make([]ReceiptLine, 0, len(cart.Items)),
	}
	if cart.Currency != nil {
		r.Currency = cart.Currency.Symbol
	}
	for _, item := range cart.Items {
		r.Lines = append(r.Lines, ReceiptLine{
			OfferID:  item.Offer.ID,
			Version:  item.Offer.Version,
			Name:     item.Offer.Name,
			Quantity: item.Quantity,
			Amount:   item.Total().Amount,
		})
		r.Total += item.Total().Amount
	}
	return r
}
