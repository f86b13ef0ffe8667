package usecase

import (
	"context"
	"errors"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/repo/storeapi"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
)

var (
	ErrValidationPending = errors.New("offer is still being validated")
	ErrOfferInvalid      = errors.New("offer cannot be bought")
)

type ViewerState string

const (
	ViewerValidating ViewerState = "validating"
	ViewerReady      ViewerState = "ready"
	ViewerInvalid    ViewerState = "invalid"
	ViewerObsolete   ViewerState = "obsolete"
)

// Viewer shows one offer and asks the store whether it can still be bought
// at the version the catalog holds. Validation is advisory: if the store
// cannot be reached the offer is treated as valid.
type Viewer struct {
	ctx      context.Context
	offer    *models.Offer
	validate *async.Task[ttol.List]
	state    ViewerState
	message  string
}

func NewViewer(ctx context.Context, api storeapi.Client, exec async.Executor, offer *models.Offer) *Viewer {
	v := &Viewer{
		ctx:   ctx,
		offer: offer,
		state: ViewerValidating,
	}
	v.validate = async.Submit(ctx, exec, func(ctx context.Context) (ttol.List, error) {
		return api.Fetch(ctx, "validate", "offer", offer.ID, "ver", offer.Version)
	})
	return v
}

func (v *Viewer) Offer() *models.Offer { return v.offer }
func (v *Viewer) State() ViewerState   { return v.state }

// Message is the store's reason for refusing the offer.
func (v *Viewer) Message() string { return v.message }

func (v *Viewer) Tick() {
	if v.validate == nil {
		return
	}
	res, done, err := poll(v.validate)
	if !done {
		return
	}
	v.validate = nil
	if err != nil {
		logctx.Warnw(v.ctx, "offer validation failed, allowing purchase", "offer", v.offer.ID, "error", causeOf(err))
		res = ttol.Of("status", "ok")
	}

	stat, err := ttol.Map(res)
	if err != nil {
		logctx.Warnw(v.ctx, "malformed validation response", "offer", v.offer.ID, "error", err)
		stat = map[string]ttol.Value{"status": ttol.String("ok")}
	}
	switch status := ttol.Lookup(stat, "status"); status {
	case "ok":
		v.state = ViewerReady
	case "invalid":
		v.state = ViewerInvalid
		v.message = ttol.Lookup(stat, "msg")
	case "obsolete":
		v.state = ViewerObsolete
	default:
		logctx.Warnw(v.ctx, "unknown validation status", "offer", v.offer.ID, "status", status)
		v.state = ViewerInvalid
	}
}

// Add puts quantity of the offer into cart once validation succeeded.
func (v *Viewer) Add(cart *models.Cart, quantity int64) (*models.CartItem, error) {
	switch v.state {
	case ViewerReady:
		return cart.Put(v.offer, quantity)
	case ViewerValidating:
		return nil, ErrValidationPending
	default:
		return nil, ErrOfferInvalid
	}
}

func (v *Viewer) Status() Status {
	s := Status{
		Message: v.offer.Name,
		Detail:  v.offer.Desc,
		Buttons: []string{ButtonBack},
	}
	switch v.state {
	case ViewerValidating:
		s.Detail = msgValidating
	case ViewerInvalid:
		s.Detail = v.message
	}
	return s
}
