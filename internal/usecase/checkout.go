package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/repo/browser"
	"github.com/nguyentranbao-ct/storefront/internal/repo/storeapi"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
)

var ErrEmptyCart = errors.New("cart is empty")

type CheckoutState string

const (
	StateSubmitting     CheckoutState = "submitting"
	StateLaunching      CheckoutState = "launching"
	StateConfirmPending CheckoutState = "confirm_pending"
	StateExecuting      CheckoutState = "executing"
	StateDone           CheckoutState = "done"
	StateLaunchFailed   CheckoutState = "launch_failed"
	StateObsolete       CheckoutState = "obsolete"
	StateInvalid        CheckoutState = "invalid"
	StateRejected       CheckoutState = "rejected"
	StateUnexpected     CheckoutState = "unexpected_error"
)

// Navigator moves the store out of a checkout. Back returns to browsing
// with the same catalog and cart; Reload discards both and fetches a new
// catalog.
type Navigator interface {
	Back()
	Reload()
}

// Checkout is a checkout state machine driven by the controller's tick loop.
type Checkout interface {
	Tick()
	Status() Status
	State() CheckoutState
	// Press runs the action behind one of the buttons of the current status.
	// It reports false, and does nothing, for any other button.
	Press(button string) bool
	Method() models.CheckoutMethod
}

type CheckoutDeps struct {
	API     storeapi.Client
	Exec    async.Executor
	Browser browser.Launcher
	// Journal may be nil.
	Journal Journal
}

// NewCheckout picks the machine for cart: credit when the catalog's credit
// covers the total, off-site payment otherwise.
func NewCheckout(ctx context.Context, deps CheckoutDeps, nav Navigator, cat *models.Catalog, cart *models.Cart, generation int64) (co Checkout, err error) {
	if cart.Empty() {
		return nil, ErrEmptyCart
	}
	defer func() {
		if r := recover(); r != nil {
			co, err = nil, fmt.Errorf("cart total: %v", r)
		}
	}()
	total := cart.Total()
	if cat.Credit != nil && cat.Credit.Currency == total.Currency && cat.Credit.Amount >= total.Amount {
		return NewCreditCheckout(ctx, deps, nav, cat, cart, generation), nil
	}
	return NewRedirectCheckout(ctx, deps, nav, cat, cart, generation), nil
}

type action struct {
	name string
	fn   func()
}

// machine holds what both checkout flows share: the status display, the
// button actions and the journal entry written on the first terminal state.
type machine struct {
	ctx        context.Context
	deps       CheckoutDeps
	nav        Navigator
	cat        *models.Catalog
	cart       *models.Cart
	method     models.CheckoutMethod
	generation int64

	state      CheckoutState
	status     Status
	actions    map[string]func()
	finished   bool
	creditUsed int64
	txn        string
}

func newMachine(ctx context.Context, deps CheckoutDeps, nav Navigator, cat *models.Catalog, cart *models.Cart, method models.CheckoutMethod, generation int64) machine {
	return machine{
		ctx:        ctx,
		deps:       deps,
		nav:        nav,
		cat:        cat,
		cart:       cart,
		method:     method,
		generation: generation,
	}
}

func (m *machine) Status() Status {
	s := m.status
	s.Buttons = append([]string(nil), m.status.Buttons...)
	return s
}

func (m *machine) State() CheckoutState {
	return m.state
}

func (m *machine) Method() models.CheckoutMethod {
	return m.method
}

func (m *machine) Press(button string) bool {
	fn, ok := m.actions[button]
	if !ok {
		return false
	}
	fn()
	return true
}

func (m *machine) show(state CheckoutState, msg, detail string, actions ...action) {
	m.state = state
	m.status = Status{
		Message: msg,
		Detail:  detail,
		Buttons: make([]string, 0, len(actions)),
		URL:     m.status.URL,
	}
	m.actions = make(map[string]func(), len(actions))
	for _, a := range actions {
		m.status.Buttons = append(m.status.Buttons, a.name)
		m.actions[a.name] = a.fn
	}
}

func (m *machine) back() action   { return action{ButtonReturn, m.nav.Back} }
func (m *machine) reload() action { return action{ButtonReload, m.nav.Reload} }

// settle handles every step response other than ok.
func (m *machine) settle(stat map[string]ttol.Value) {
	switch status := ttol.Lookup(stat, "status"); status {
	case "obsolete":
		m.show(StateObsolete, msgObsolete, "", m.reload())
		m.finish(models.OutcomeObsolete)
	case "invalid":
		m.show(StateInvalid, msgInvalid, ttol.Lookup(stat, "msg"), m.reload())
		m.finish(models.OutcomeInvalid)
	case "err":
		m.show(StateRejected, msgUnexpected, ttol.Lookup(stat, "msg"), m.back())
		m.finish(models.OutcomeRejected)
	default:
		m.unexpected(fmt.Errorf("unknown checkout status %q", status))
	}
}

func (m *machine) unexpected(err error) {
	err = causeOf(err)
	logctx.Errorw(m.ctx, "checkout failed", "method", m.method, "state", m.state, "error", err)
	m.show(StateUnexpected, msgUnexpected, causeDetail(err), m.back())
	m.finish(models.OutcomeUnexpectedError)
}

// finish journals the first terminal state the machine reaches.
func (m *machine) finish(outcome models.CheckoutOutcome) {
	if m.finished {
		return
	}
	m.finished = true
	if m.deps.Journal == nil {
		return
	}
	receipt := models.NewReceipt(m.method, m.cart)
	receipt.Outcome = outcome
	receipt.Message = m.status.Detail
	receipt.CreditUsed = m.creditUsed
	receipt.Generation = m.generation
	m.deps.Journal.Record(m.ctx, receipt, m.txn)
}

// recoverTick turns a panic inside a tick into an unexpected error status.
func (m *machine) recoverTick() {
	if r := recover(); r != nil {
		m.unexpected(fmt.Errorf("panic: %v", r))
	}
}

// poll returns the outcome of task once it is done. done is false while the
// task is still pending.
func poll[T any](task *async.Task[T]) (value T, done bool, err error) {
	value, err = task.Result()
	if errors.Is(err, async.ErrPending) {
		return value, false, nil
	}
	return value, true, err
}

func causeOf(err error) error {
	var deferred *async.DeferredError
	if errors.As(err, &deferred) {
		return deferred.Cause
	}
	return err
}

func decodeStatus(l ttol.List) (map[string]ttol.Value, error) {
	stat, err := ttol.Map(l)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return stat, nil
}

// checkoutBody is the checkout request: the encoded cart, the payment method
// and, when useCredit is set, the amount of store credit to apply.
func checkoutBody(cart *models.Cart, method models.CheckoutMethod, useCredit *int64) ttol.List {
	body := ttol.Of("cart", cart.Encode(), "method", string(method))
	if useCredit != nil {
		body = append(body, ttol.String("usecredit"), ttol.Int(*useCredit))
	}
	return body
}
