package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
)

var (
	ErrInvalidState     = errors.New("not available in the current state")
	ErrNoSuchAction     = errors.New("no such action")
	ErrStaleGeneration  = errors.New("catalog generation has changed")
	ErrNotViewed        = errors.New("offer must be viewed before it is added")
	ErrControllerClosed = errors.New("store controller is not running")
)

type ControllerState string

const (
	StateLoading  ControllerState = "loading"
	StateBroken   ControllerState = "broken"
	StateBrowsing ControllerState = "browsing"
	StateViewing  ControllerState = "viewing"
	StateCheckout ControllerState = "checkout"
)

// Store drives the catalog lifecycle. All state lives on a single loop
// goroutine started by Run; every other method hands a closure to that loop
// and waits for it.
type Store interface {
	Run(ctx context.Context) error
	Generation() int64

	View(ctx context.Context) (*View, error)
	Browse(ctx context.Context, categoryID string) (*CatalogPage, error)
	ViewOffer(ctx context.Context, offerID string) (*OfferView, error)
	CloseViewer(ctx context.Context) error
	PutCart(ctx context.Context, offerID string, quantity int64) (*CartView, error)
	RemoveCart(ctx context.Context, offerID string) (*CartView, error)
	Checkout(ctx context.Context) (*View, error)
	// Press presses a button of the current status. When generation is
	// non-nil the press is refused if the catalog has been reloaded since.
	Press(ctx context.Context, button string, generation *int64) (*View, error)
	Receipts(ctx context.Context, limit int64) ([]*models.CheckoutReceipt, error)
}

type controller struct {
	loader   CatalogLoader
	deps     CheckoutDeps
	registry *models.CurrencyRegistry
	period   time.Duration

	cmds       chan func()
	stopped    chan struct{}
	running    atomic.Bool
	generation atomic.Int64

	// Owned by the loop goroutine.
	ctx context.Context
	// genCtx is cancelled when the catalog it loaded is replaced. Checkouts
	// run on ctx.
	genCtx    context.Context
	cancelGen context.CancelFunc
	state     ControllerState
	load      *async.Task[*models.Catalog]
	loadErr   error
	catalog   *models.Catalog
	cart      *models.Cart
	viewer    *Viewer
	checkout  Checkout
}

func NewStore(conf *config.Config, loader CatalogLoader, deps CheckoutDeps, registry *models.CurrencyRegistry) Store {
	return newController(loader, deps, registry, conf.Store.TickInterval)
}

func newController(loader CatalogLoader, deps CheckoutDeps, registry *models.CurrencyRegistry, period time.Duration) *controller {
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	return &controller{
		loader:   loader,
		deps:     deps,
		registry: registry,
		period:   period,
		cmds:     make(chan func()),
		stopped:  make(chan struct{}),
		state:    StateLoading,
	}
}

// Run loads the first catalog and ticks until ctx is done.
func (c *controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("store controller already running")
	}
	defer close(c.stopped)

	c.ctx = ctx
	c.startLoad()
	defer func() { c.cancelGen() }()
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	logctx.Infow(ctx, "store controller started", "tick", c.period)
	for {
		select {
		case <-ctx.Done():
			logctx.Infow(ctx, "store controller stopped", "generation", c.generation.Load())
			return nil
		case cmd := <-c.cmds:
			cmd()
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *controller) Generation() int64 {
	return c.generation.Load()
}

// do runs fn on the loop goroutine and waits for it.
func (c *controller) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	cmd := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("store command panicked: %v", r)
			}
		}()
		done <- fn()
	}
	select {
	case c.cmds <- cmd:
	case <-c.stopped:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *controller) tick() {
	defer func() {
		if r := recover(); r != nil {
			logctx.Errorw(c.ctx, "store tick panicked", "state", c.state, "panic", r)
			c.Back()
		}
	}()

	switch c.state {
	case StateLoading:
		cat, done, err := poll(c.load)
		if !done {
			return
		}
		c.load = nil
		if err != nil {
			c.loadErr = causeOf(err)
			c.state = StateBroken
			logctx.Errorw(c.ctx, "failed to load catalog", "generation", c.generation.Load(), "error", c.loadErr)
			return
		}
		c.catalog = cat
		c.cart = models.NewCart(cat.DefaultCurrency(c.registry.Default()))
		c.state = StateBrowsing
		logctx.Infow(c.ctx, "catalog loaded",
			"generation", c.generation.Load(),
			"offers", len(cat.Offers),
			"categories", len(cat.Categories),
		)
	case StateViewing:
		c.viewer.Tick()
		if c.viewer.State() == ViewerObsolete {
			logctx.Infow(c.ctx, "offer is obsolete, reloading", "offer", c.viewer.Offer().ID)
			c.Reload()
		}
	case StateCheckout:
		c.checkout.Tick()
	}
}

func (c *controller) startLoad() {
	gen := c.generation.Add(1)
	c.state = StateLoading
	c.loadErr = nil
	c.catalog = nil
	c.cart = nil
	c.viewer = nil
	c.checkout = nil
	if c.cancelGen != nil {
		c.cancelGen()
	}
	c.genCtx, c.cancelGen = context.WithCancel(c.ctx)
	logctx.Debugw(c.ctx, "loading catalog", "generation", gen)
	c.load = async.Submit(c.genCtx, c.deps.Exec, c.loader.Load)
}

// Back returns from a checkout to browsing with the same catalog and cart.
func (c *controller) Back() {
	if c.catalog == nil {
		c.startLoad()
		return
	}
	c.checkout = nil
	c.viewer = nil
	c.state = StateBrowsing
}

// Reload discards the catalog and cart and fetches a new catalog.
func (c *controller) Reload() {
	c.startLoad()
}

func (c *controller) status() Status {
	switch c.state {
	case StateLoading:
		return Status{Message: msgLoading, Buttons: []string{}}
	case StateBroken:
		msg := msgLoadFailed
		var me *models.MessageError
		if errors.As(c.loadErr, &me) {
			msg = me.Message
		}
		return Status{Message: msg, Buttons: []string{ButtonReload}}
	case StateViewing:
		return c.viewer.Status()
	case StateCheckout:
		return c.checkout.Status()
	}
	if c.cart.Empty() {
		return Status{Message: msgCartEmpty, Buttons: []string{}}
	}
	return Status{
		Message: tmplCartTotal.MustRender(map[string]string{"Total": c.cartView().Total}),
		Buttons: []string{ButtonCheckout},
	}
}

func (c *controller) browsable() error {
	if c.state != StateBrowsing && c.state != StateViewing {
		return fmt.Errorf("%w: %s", ErrInvalidState, c.state)
	}
	return nil
}

func (c *controller) View(ctx context.Context) (*View, error) {
	var v *View
	err := c.do(ctx, func() error {
		v = c.view()
		return nil
	})
	return v, err
}

func (c *controller) view() *View {
	v := &View{
		State:      c.state,
		Status:     c.status(),
		Generation: c.generation.Load(),
	}
	if c.cart != nil {
		v.Cart = c.cartView()
	}
	if c.viewer != nil {
		ov := offerView(c.viewer.Offer())
		ov.Validation = c.viewer.State()
		v.Viewer = &ov
	}
	if c.checkout != nil {
		v.Checkout = &CheckoutView{
			Method: c.checkout.Method(),
			State:  c.checkout.State(),
		}
	}
	return v
}

func (c *controller) Browse(ctx context.Context, categoryID string) (*CatalogPage, error) {
	var page *CatalogPage
	err := c.do(ctx, func() error {
		if c.catalog == nil {
			return fmt.Errorf("%w: %s", ErrInvalidState, c.state)
		}
		if categoryID != "" {
			if _, ok := c.catalog.Category(categoryID); !ok {
				return fmt.Errorf("category %s: %w", categoryID, models.ErrNotFound)
			}
		}
		page = catalogPage(c.catalog, categoryID)
		return nil
	})
	return page, err
}

func (c *controller) ViewOffer(ctx context.Context, offerID string) (*OfferView, error) {
	var ov OfferView
	err := c.do(ctx, func() error {
		if err := c.browsable(); err != nil {
			return err
		}
		offer, ok := c.catalog.Offer(offerID)
		if !ok {
			return fmt.Errorf("offer %s: %w", offerID, models.ErrNotFound)
		}
		c.viewer = NewViewer(c.genCtx, c.deps.API, c.deps.Exec, offer)
		c.state = StateViewing
		ov = offerView(offer)
		ov.Validation = c.viewer.State()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ov, nil
}

func (c *controller) CloseViewer(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.state != StateViewing {
			return fmt.Errorf("%w: %s", ErrInvalidState, c.state)
		}
		c.viewer = nil
		c.state = StateBrowsing
		return nil
	})
}

func (c *controller) PutCart(ctx context.Context, offerID string, quantity int64) (*CartView, error) {
	var cv CartView
	err := c.do(ctx, func() error {
		if err := c.browsable(); err != nil {
			return err
		}
		offer, ok := c.catalog.Offer(offerID)
		if !ok {
			return fmt.Errorf("offer %s: %w", offerID, models.ErrNotFound)
		}
		switch {
		case c.viewer != nil && c.viewer.Offer() == offer:
			if _, err := c.viewer.Add(c.cart, quantity); err != nil {
				return err
			}
		default:
			if _, ok := c.cart.Item(offer); !ok && quantity > 0 {
				return ErrNotViewed
			}
			if _, err := c.cart.Put(offer, quantity); err != nil {
				return err
			}
		}
		cv = c.cartView()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

func (c *controller) RemoveCart(ctx context.Context, offerID string) (*CartView, error) {
	var cv CartView
	err := c.do(ctx, func() error {
		if err := c.browsable(); err != nil {
			return err
		}
		offer, ok := c.catalog.Offer(offerID)
		if !ok {
			return fmt.Errorf("offer %s: %w", offerID, models.ErrNotFound)
		}
		item, ok := c.cart.Item(offer)
		if !ok {
			return fmt.Errorf("cart item %s: %w", offerID, models.ErrNotFound)
		}
		c.cart.Remove(item)
		cv = c.cartView()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

func (c *controller) Checkout(ctx context.Context) (*View, error) {
	var v *View
	err := c.do(ctx, func() error {
		if err := c.startCheckout(); err != nil {
			return err
		}
		v = c.view()
		return nil
	})
	return v, err
}

func (c *controller) startCheckout() error {
	if err := c.browsable(); err != nil {
		return err
	}
	co, err := NewCheckout(c.ctx, c.deps, c, c.catalog, c.cart, c.generation.Load())
	if err != nil {
		return err
	}
	c.viewer = nil
	c.checkout = co
	c.state = StateCheckout
	logctx.Infow(c.ctx, "checkout started", "method", co.Method(), "items", len(c.cart.Items))
	return nil
}

func (c *controller) Press(ctx context.Context, button string, generation *int64) (*View, error) {
	var v *View
	err := c.do(ctx, func() error {
		if generation != nil && *generation != c.generation.Load() {
			return ErrStaleGeneration
		}
		if err := c.press(button); err != nil {
			return err
		}
		v = c.view()
		return nil
	})
	return v, err
}

func (c *controller) press(button string) error {
	switch {
	case c.state == StateBroken && button == ButtonReload:
		c.Reload()
	case c.state == StateBrowsing && button == ButtonCheckout:
		return c.startCheckout()
	case c.state == StateViewing && button == ButtonBack:
		c.viewer = nil
		c.state = StateBrowsing
	case c.state == StateCheckout:
		if !c.checkout.Press(button) {
			return fmt.Errorf("%w: %q", ErrNoSuchAction, button)
		}
	default:
		return fmt.Errorf("%w: %q", ErrNoSuchAction, button)
	}
	return nil
}

func (c *controller) Receipts(ctx context.Context, limit int64) ([]*models.CheckoutReceipt, error) {
	if c.deps.Journal == nil {
		return []*models.CheckoutReceipt{}, nil
	}
	return c.deps.Journal.Recent(ctx, limit)
}

func (c *controller) cartView() CartView {
	return newCartView(c.cart)
}
