package usecase

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeps(api *fakeAPI, launcher *fakeLauncher, journal *fakeJournal) CheckoutDeps {
	deps := CheckoutDeps{API: api, Exec: inline, Browser: launcher}
	if journal != nil {
		deps.Journal = journal
	}
	return deps
}

func TestRedirectCheckout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		response    ttol.List
		err         error
		launchErr   error
		wantState   CheckoutState
		wantMessage string
		wantDetail  string
		wantButton  string
		wantOutcome models.CheckoutOutcome
		wantOpened  int
	}{
		{
			name:        "ok launches browser",
			response:    statusOK("url", "https://pay.example/x"),
			wantState:   StateDone,
			wantMessage: msgThankYou,
			wantDetail:  msgFollowBrowser,
			wantButton:  ButtonReload,
			wantOutcome: models.OutcomeRedirected,
			wantOpened:  1,
		},
		{
			name:        "browser launch fails",
			response:    statusOK("url", "https://pay.example/x"),
			launchErr:   errors.New("no display"),
			wantState:   StateLaunchFailed,
			wantMessage: msgNoBrowser,
			wantDetail:  "no display",
			wantButton:  ButtonReturn,
			wantOutcome: models.OutcomeLaunchFailed,
			wantOpened:  1,
		},
		{
			name:        "relative url cannot be launched",
			response:    statusOK("url", "pay/x"),
			wantState:   StateLaunchFailed,
			wantMessage: msgNoBrowser,
			wantDetail:  `payment url "pay/x" is not absolute`,
			wantButton:  ButtonReturn,
			wantOutcome: models.OutcomeLaunchFailed,
		},
		{
			name:        "obsolete",
			response:    ttol.Of("status", "obsolete"),
			wantState:   StateObsolete,
			wantMessage: msgObsolete,
			wantButton:  ButtonReload,
			wantOutcome: models.OutcomeObsolete,
		},
		{
			name:        "invalid",
			response:    ttol.Of("status", "invalid", "msg", "Hat is sold out"),
			wantState:   StateInvalid,
			wantMessage: msgInvalid,
			wantDetail:  "Hat is sold out",
			wantButton:  ButtonReload,
			wantOutcome: models.OutcomeInvalid,
		},
		{
			name:        "server error",
			response:    ttol.Of("status", "err", "msg", "payments are down"),
			wantState:   StateRejected,
			wantMessage: msgUnexpected,
			wantDetail:  "payments are down",
			wantButton:  ButtonReturn,
			wantOutcome: models.OutcomeRejected,
		},
		{
			name:        "unknown status",
			response:    ttol.Of("status", "maybe"),
			wantState:   StateUnexpected,
			wantMessage: msgUnexpected,
			wantDetail:  `unknown checkout status "maybe"`,
			wantButton:  ButtonReturn,
			wantOutcome: models.OutcomeUnexpectedError,
		},
		{
			name:        "transport failure",
			err:         models.NewIOError("checkout", errors.New("connection refused")),
			wantState:   StateUnexpected,
			wantMessage: msgUnexpected,
			wantDetail:  "store io: checkout: connection refused",
			wantButton:  ButtonReturn,
			wantOutcome: models.OutcomeUnexpectedError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(-1)
			api := newFakeAPI(func(apiCall) (ttol.List, error) { return tt.response, tt.err })
			launcher := &fakeLauncher{err: tt.launchErr}
			journal := &fakeJournal{}
			nav := &fakeNav{}

			m := NewRedirectCheckout(t.Context(), newDeps(api, launcher, journal), nav, f.catalog, f.cart, 7)
			assert.Equal(t, StateSubmitting, m.State())
			assert.Equal(t, msgCheckingOut, m.Status().Message)
			assert.Empty(t, m.Status().Buttons)

			m.Tick()
			m.Tick()

			assert.Equal(t, tt.wantState, m.State())
			st := m.Status()
			assert.Equal(t, tt.wantMessage, st.Message)
			assert.Equal(t, tt.wantDetail, st.Detail)
			assert.Equal(t, []string{tt.wantButton}, st.Buttons)
			assert.Len(t, launcher.Opened(), tt.wantOpened)
			assert.Equal(t, 1, api.CallsTo("checkout"), "a single submit")

			records := journal.Records()
			require.Len(t, records, 1)
			assert.Equal(t, tt.wantOutcome, records[0].receipt.Outcome)
			assert.Equal(t, models.CheckoutMethodRedirect, records[0].receipt.Method)
			assert.EqualValues(t, 7, records[0].receipt.Generation)
			assert.EqualValues(t, 250, records[0].receipt.Total)

			require.True(t, m.Press(tt.wantButton))
			if tt.wantButton == ButtonReload {
				assert.Equal(t, 1, nav.reloads)
			} else {
				assert.Equal(t, 1, nav.backs)
			}
			assert.False(t, m.Press(ButtonConfirm))
		})
	}
}

func TestRedirectCheckoutBody(t *testing.T) {
	t.Parallel()

	f := newFixture(40)
	api := newFakeAPI(func(apiCall) (ttol.List, error) { return statusOK("url", "https://pay.example/x"), nil })
	m := NewRedirectCheckout(t.Context(), newDeps(api, &fakeLauncher{}, nil), &fakeNav{}, f.catalog, f.cart, 1)
	m.Tick()
	require.Equal(t, StateDone, m.State())
	assert.Equal(t, "https://pay.example/x", m.Status().URL)

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "POST", calls[0].Method)
	body, err := ttol.Map(calls[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "paypal", ttol.Lookup(body, "method"))
	assert.Equal(t, ttol.Int(40), body["usecredit"])

	items, err := ttol.AsList(body["cart"])
	require.NoError(t, err)
	lines, err := models.DecodeCartItems(items)
	require.NoError(t, err)
	assert.Equal(t, []models.CartLine{{OfferID: "hat", Version: "3", Quantity: 2}}, lines)
}

func TestRedirectCheckoutWithoutCredit(t *testing.T) {
	t.Parallel()

	f := newFixture(-1)
	api := newFakeAPI(func(apiCall) (ttol.List, error) { return ttol.Of("status", "obsolete"), nil })
	m := NewRedirectCheckout(t.Context(), newDeps(api, &fakeLauncher{}, nil), &fakeNav{}, f.catalog, f.cart, 1)
	m.Tick()

	body, err := ttol.Map(api.Calls()[0].Body)
	require.NoError(t, err)
	_, ok := body["usecredit"]
	assert.False(t, ok)
}

func TestRedirectCheckoutPollsWhilePending(t *testing.T) {
	t.Parallel()

	f := newFixture(-1)
	release := make(chan struct{})
	api := newFakeAPI(func(apiCall) (ttol.List, error) {
		<-release
		return statusOK("url", "https://pay.example/x"), nil
	})
	deps := newDeps(api, &fakeLauncher{}, nil)
	deps.Exec = async.Goroutines

	m := NewRedirectCheckout(t.Context(), deps, &fakeNav{}, f.catalog, f.cart, 1)
	for range 5 {
		m.Tick()
		assert.Equal(t, StateSubmitting, m.State())
		assert.False(t, m.Press(ButtonReturn))
	}
	close(release)

	require.Eventually(t, func() bool {
		m.Tick()
		return m.State() == StateDone
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, api.CallsTo("checkout"))
}

func TestCreditCheckout(t *testing.T) {
	t.Parallel()

	f := newFixture(1000)
	api := newFakeAPI(func(call apiCall) (ttol.List, error) {
		switch call.Fn {
		case "checkout":
			return statusOK("cart", "TOK1"), nil
		case "creditfin":
			return statusOK(), nil
		}
		return nil, errors.New("unexpected call " + call.Fn)
	})
	journal := &fakeJournal{}
	nav := &fakeNav{}
	m := NewCreditCheckout(t.Context(), newDeps(api, &fakeLauncher{}, journal), nav, f.catalog, f.cart, 3)

	m.Tick()
	require.Equal(t, StateConfirmPending, m.State())
	st := m.Status()
	assert.Equal(t, msgCreditCoverage, st.Message)
	assert.Equal(t, "Do you wish to continue? $2.50 of store credit will be used.", st.Detail)
	assert.Equal(t, []string{ButtonConfirm, ButtonReturn}, st.Buttons)

	require.True(t, m.Press(ButtonConfirm))
	assert.Equal(t, StateExecuting, m.State())
	assert.Equal(t, msgExecuting, m.Status().Message)
	assert.False(t, m.Press(ButtonConfirm), "no buttons while executing")

	m.Tick()
	require.Equal(t, StateDone, m.State())
	assert.Equal(t, msgThankYou, m.Status().Message)
	assert.Equal(t, msgCompleted, m.Status().Detail)

	assert.False(t, m.Press(ButtonConfirm))
	m.Tick()

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "checkout", calls[0].Fn)
	body, err := ttol.Map(calls[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "credit", ttol.Lookup(body, "method"))
	assert.Equal(t, ttol.Int(250), body["usecredit"])

	assert.Equal(t, "creditfin", calls[1].Fn)
	assert.Equal(t, "POST", calls[1].Method)
	assert.Nil(t, calls[1].Body)
	assert.Equal(t, []string{"cart", "TOK1"}, calls[1].Params)

	records := journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeCompleted, records[0].receipt.Outcome)
	assert.Equal(t, "TOK1", records[0].txn)
	assert.EqualValues(t, 250, records[0].receipt.CreditUsed)

	require.True(t, m.Press(ButtonReload))
	assert.Equal(t, 1, nav.reloads)
}

func TestCreditCheckoutReturnAtConfirm(t *testing.T) {
	t.Parallel()

	f := newFixture(1000)
	api := newFakeAPI(func(apiCall) (ttol.List, error) { return statusOK("cart", "TOK1"), nil })
	journal := &fakeJournal{}
	nav := &fakeNav{}
	m := NewCreditCheckout(t.Context(), newDeps(api, &fakeLauncher{}, journal), nav, f.catalog, f.cart, 1)
	m.Tick()

	require.True(t, m.Press(ButtonReturn))
	assert.Equal(t, 1, nav.backs)
	assert.Equal(t, 0, api.CallsTo("creditfin"))
	assert.Empty(t, journal.Records(), "nothing finished")
}

func TestCreditCheckoutExecuteFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		execute    ttol.List
		err        error
		wantState  CheckoutState
		wantButton string
	}{
		{name: "obsolete", execute: ttol.Of("status", "obsolete"), wantState: StateObsolete, wantButton: ButtonReload},
		{name: "invalid", execute: ttol.Of("status", "invalid", "msg", "no"), wantState: StateInvalid, wantButton: ButtonReload},
		{name: "err", execute: ttol.Of("status", "err", "msg", "later"), wantState: StateRejected, wantButton: ButtonReturn},
		{name: "transport", err: errors.New("reset by peer"), wantState: StateUnexpected, wantButton: ButtonReturn},
		{name: "malformed", execute: ttol.Of(1, 2), wantState: StateUnexpected, wantButton: ButtonReturn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(1000)
			api := newFakeAPI(func(call apiCall) (ttol.List, error) {
				if call.Fn == "checkout" {
					return statusOK("cart", "TOK1"), nil
				}
				return tt.execute, tt.err
			})
			journal := &fakeJournal{}
			m := NewCreditCheckout(t.Context(), newDeps(api, &fakeLauncher{}, journal), &fakeNav{}, f.catalog, f.cart, 1)
			m.Tick()
			require.True(t, m.Press(ButtonConfirm))
			m.Tick()

			assert.Equal(t, tt.wantState, m.State())
			assert.Equal(t, []string{tt.wantButton}, m.Status().Buttons)
			require.Len(t, journal.Records(), 1)
			assert.Equal(t, "TOK1", journal.Records()[0].txn)
			assert.Equal(t, 2, len(api.Calls()))
		})
	}
}

func TestCreditCheckoutSubmitObsolete(t *testing.T) {
	t.Parallel()

	f := newFixture(1000)
	api := newFakeAPI(func(apiCall) (ttol.List, error) { return ttol.Of("status", "obsolete"), nil })
	nav := &fakeNav{}
	m := NewCreditCheckout(t.Context(), newDeps(api, &fakeLauncher{}, nil), nav, f.catalog, f.cart, 1)
	m.Tick()

	assert.Equal(t, StateObsolete, m.State())
	assert.Equal(t, msgObsolete, m.Status().Message)
	require.True(t, m.Press(ButtonReload))
	assert.Equal(t, 1, nav.reloads)
	assert.Equal(t, 0, api.CallsTo("creditfin"))
}

func TestCreditCheckoutConflictingCart(t *testing.T) {
	t.Parallel()

	f := newFixture(1000)
	eur := models.NewDecimalCurrency("EUR", 2, ",", "%s €")
	f.cart.AddOrGetItem(&models.Offer{ID: "x", Price: &models.Price{Currency: eur, Amount: 1}}).Quantity = 1

	var calls atomic.Int32
	api := newFakeAPI(func(apiCall) (ttol.List, error) {
		calls.Add(1)
		return statusOK(), nil
	})
	m := NewCreditCheckout(t.Context(), newDeps(api, &fakeLauncher{}, nil), &fakeNav{}, f.catalog, f.cart, 1)
	assert.Equal(t, StateUnexpected, m.State())
	assert.Contains(t, m.Status().Detail, "conflicting currencies")
	assert.Zero(t, calls.Load())
}

func TestNewCheckoutSelection(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(func(apiCall) (ttol.List, error) { return ttol.Of("status", "obsolete"), nil })
	deps := newDeps(api, &fakeLauncher{}, nil)

	t.Run("credit covers total", func(t *testing.T) {
		f := newFixture(250)
		co, err := NewCheckout(t.Context(), deps, &fakeNav{}, f.catalog, f.cart, 1)
		require.NoError(t, err)
		assert.IsType(t, &CreditCheckout{}, co)
		assert.Equal(t, models.CheckoutMethodCredit, co.Method())
	})

	t.Run("credit short", func(t *testing.T) {
		f := newFixture(249)
		co, err := NewCheckout(t.Context(), deps, &fakeNav{}, f.catalog, f.cart, 1)
		require.NoError(t, err)
		assert.IsType(t, &RedirectCheckout{}, co)
	})

	t.Run("no credit", func(t *testing.T) {
		f := newFixture(-1)
		co, err := NewCheckout(t.Context(), deps, &fakeNav{}, f.catalog, f.cart, 1)
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutMethodRedirect, co.Method())
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(1000)
		f.cart = models.NewCart(f.usd)
		_, err := NewCheckout(t.Context(), deps, &fakeNav{}, f.catalog, f.cart, 1)
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("conflicting currencies", func(t *testing.T) {
		f := newFixture(1000)
		eur := models.NewDecimalCurrency("EUR", 2, ",", "%s €")
		f.cart.AddOrGetItem(&models.Offer{ID: "x", Price: &models.Price{Currency: eur, Amount: 1}}).Quantity = 1
		_, err := NewCheckout(t.Context(), deps, &fakeNav{}, f.catalog, f.cart, 1)
		assert.ErrorContains(t, err, "conflicting currencies")
	})
}

func TestTxnToken(t *testing.T) {
	t.Parallel()

	cart := models.NewCart(nil)
	tok := issueToken(cart, "TOK1")

	_, err := tok.consume(models.NewCart(nil))
	assert.ErrorIs(t, err, ErrTokenForeignCart)
	assert.False(t, tok.Consumed())

	v, err := tok.consume(cart)
	require.NoError(t, err)
	assert.Equal(t, "TOK1", v)
	assert.True(t, tok.Consumed())

	_, err = tok.consume(cart)
	assert.ErrorIs(t, err, ErrTokenConsumed)

	var forged TxnToken
	_, err = forged.consume(cart)
	assert.ErrorIs(t, err, ErrTokenForeignCart)

	var none *TxnToken
	_, err = none.consume(cart)
	assert.ErrorIs(t, err, ErrTokenForeignCart)
}
