package usecase

import (
	"context"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
)

// CreditCheckout pays for the cart with store credit in two steps: the
// submit authorizes the purchase and returns a transaction token, which the
// execute step redeems after the user confirms.
type CreditCheckout struct {
	machine
	total   models.Price
	submit  *async.Task[ttol.List]
	execute *async.Task[ttol.List]
	token   *TxnToken
}

func NewCreditCheckout(ctx context.Context, deps CheckoutDeps, nav Navigator, cat *models.Catalog, cart *models.Cart, generation int64) *CreditCheckout {
	m := &CreditCheckout{
		machine: newMachine(ctx, deps, nav, cat, cart, models.CheckoutMethodCredit, generation),
	}
	m.start()
	return m
}

func (m *CreditCheckout) start() {
	defer m.recoverTick()
	m.total = m.cart.Total()
	m.creditUsed = m.total.Amount
	body := checkoutBody(m.cart, m.method, &m.total.Amount)
	m.show(StateSubmitting, msgCheckingOut, "")
	m.submit = async.Submit(m.ctx, m.deps.Exec, func(ctx context.Context) (ttol.List, error) {
		return m.deps.API.Post(ctx, "checkout", body)
	})
}

func (m *CreditCheckout) Tick() {
	defer m.recoverTick()

	if m.submit != nil {
		res, done, err := poll(m.submit)
		if !done {
			return
		}
		m.submit = nil
		if err != nil {
			m.unexpected(err)
			return
		}
		m.submitted(res)
	}

	if m.execute != nil {
		res, done, err := poll(m.execute)
		if !done {
			return
		}
		m.execute = nil
		if err != nil {
			m.unexpected(err)
			return
		}
		m.executed(res)
	}
}

func (m *CreditCheckout) submitted(res ttol.List) {
	stat, err := decodeStatus(res)
	if err != nil {
		m.unexpected(err)
		return
	}
	if ttol.Lookup(stat, "status") != "ok" {
		m.settle(stat)
		return
	}
	m.token = issueToken(m.cart, ttol.Lookup(stat, "cart"))
	m.show(StateConfirmPending, msgCreditCoverage,
		tmplConfirmCredit.MustRender(map[string]string{"Total": m.total.String()}),
		action{ButtonConfirm, m.authorize},
		m.back(),
	)
}

func (m *CreditCheckout) authorize() {
	if m.state != StateConfirmPending {
		return
	}
	txn, err := m.token.consume(m.cart)
	if err != nil {
		m.unexpected(err)
		return
	}
	m.txn = txn
	m.show(StateExecuting, msgExecuting, "")
	m.execute = async.Submit(m.ctx, m.deps.Exec, func(ctx context.Context) (ttol.List, error) {
		return m.deps.API.Post(ctx, "creditfin", nil, "cart", txn)
	})
}

func (m *CreditCheckout) executed(res ttol.List) {
	stat, err := decodeStatus(res)
	if err != nil {
		m.unexpected(err)
		return
	}
	if ttol.Lookup(stat, "status") != "ok" {
		m.settle(stat)
		return
	}
	m.show(StateDone, msgThankYou, msgCompleted, m.reload())
	m.finish(models.OutcomeCompleted)
}
