package usecase

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
)

// RedirectCheckout submits the cart for off-site payment and opens the
// returned payment page in a web browser.
type RedirectCheckout struct {
	machine
	submit *async.Task[ttol.List]
	launch *async.Task[*url.URL]
}

func NewRedirectCheckout(ctx context.Context, deps CheckoutDeps, nav Navigator, cat *models.Catalog, cart *models.Cart, generation int64) *RedirectCheckout {
	m := &RedirectCheckout{
		machine: newMachine(ctx, deps, nav, cat, cart, models.CheckoutMethodRedirect, generation),
	}
	m.start()
	return m
}

func (m *RedirectCheckout) start() {
	defer m.recoverTick()
	var useCredit *int64
	if credit := m.cat.Credit; credit != nil {
		useCredit = &credit.Amount
		m.creditUsed = credit.Amount
	}
	body := checkoutBody(m.cart, m.method, useCredit)
	m.show(StateSubmitting, msgCheckingOut, "")
	m.submit = async.Submit(m.ctx, m.deps.Exec, func(ctx context.Context) (ttol.List, error) {
		return m.deps.API.Post(ctx, "checkout", body)
	})
}

func (m *RedirectCheckout) Tick() {
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

	if m.launch != nil {
		_, done, err := poll(m.launch)
		if !done {
			return
		}
		m.launch = nil
		if err != nil {
			cause := causeOf(err)
			logctx.Warnw(m.ctx, "could not launch web browser", "url", m.status.URL, "error", cause)
			m.show(StateLaunchFailed, msgNoBrowser, causeDetail(cause), m.back())
			m.finish(models.OutcomeLaunchFailed)
			return
		}
		m.show(StateDone, msgThankYou, msgFollowBrowser, m.reload())
		m.finish(models.OutcomeRedirected)
	}
}

func (m *RedirectCheckout) submitted(res ttol.List) {
	stat, err := decodeStatus(res)
	if err != nil {
		m.unexpected(err)
		return
	}
	if ttol.Lookup(stat, "status") != "ok" {
		m.settle(stat)
		return
	}

	raw := ttol.Lookup(stat, "url")
	m.status.URL = raw
	m.state = StateLaunching
	m.launch = async.Submit(m.ctx, m.deps.Exec, func(ctx context.Context) (*url.URL, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("payment url %q is not absolute", raw)
		}
		return u, m.deps.Browser.Open(ctx, u)
	})
}
