package usecase

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sync"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
)

// inline runs submitted work before Submit returns, so tasks are done as
// soon as they exist.
var inline = async.ExecutorFunc(func(work func()) { work() })

type apiCall struct {
	Method string
	Fn     string
	Body   ttol.List
	Params []string
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	respond func(call apiCall) (ttol.List, error)
}

func newFakeAPI(respond func(call apiCall) (ttol.List, error)) *fakeAPI {
	return &fakeAPI{respond: respond}
}

func (f *fakeAPI) record(call apiCall) (ttol.List, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return f.respond(call)
}

func (f *fakeAPI) Fetch(_ context.Context, fn string, params ...string) (ttol.List, error) {
	return f.record(apiCall{Method: "GET", Fn: fn, Params: params})
}

func (f *fakeAPI) Post(_ context.Context, fn string, body ttol.List, params ...string) (ttol.List, error) {
	return f.record(apiCall{Method: "POST", Fn: fn, Body: body, Params: params})
}

func (f *fakeAPI) Download(context.Context, string) ([]byte, error) {
	return nil, errors.New("no images here")
}

func (f *fakeAPI) Resolve(ref string) (*url.URL, error) {
	return url.Parse("https://store.example/" + ref)
}

func (f *fakeAPI) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeAPI) CallsTo(fn string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Fn == fn {
			n++
		}
	}
	return n
}

type fakeLauncher struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (l *fakeLauncher) Open(_ context.Context, u *url.URL) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opened = append(l.opened, u.String())
	return l.err
}

func (l *fakeLauncher) Opened() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.opened)
}

type fakeNav struct {
	backs, reloads int
}

func (n *fakeNav) Back()   { n.backs++ }
func (n *fakeNav) Reload() { n.reloads++ }

type recordedReceipt struct {
	receipt *models.CheckoutReceipt
	txn     string
}

type fakeJournal struct {
	mu      sync.Mutex
	records []recordedReceipt
}

func (j *fakeJournal) Record(_ context.Context, r *models.CheckoutReceipt, txn string) *async.Task[*models.CheckoutReceipt] {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, recordedReceipt{receipt: r, txn: txn})
	return async.Completed(r)
}

func (j *fakeJournal) Recent(context.Context, int64) ([]*models.CheckoutReceipt, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ret := make([]*models.CheckoutReceipt, 0, len(j.records))
	for i := len(j.records) - 1; i >= 0; i-- {
		ret = append(ret, j.records[i].receipt)
	}
	return ret, nil
}

func (j *fakeJournal) Records() []recordedReceipt {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.records)
}

type fixture struct {
	registry *models.CurrencyRegistry
	usd      *models.Currency
	hat      *models.Offer
	cape     *models.Offer
	catalog  *models.Catalog
	cart     *models.Cart
}

// newFixture builds a catalog of a 1.25 hat and a singleton 3.00 cape with
// the given store credit, and a cart holding two hats.
func newFixture(credit int64) *fixture {
	reg := models.NewCurrencyRegistry()
	usd := reg.Default()
	f := &fixture{
		registry: reg,
		usd:      usd,
		hat:      &models.Offer{ID: "hat", Version: "3", Name: "Hat", Price: &models.Price{Currency: usd, Amount: 125}},
		cape:     &models.Offer{ID: "cape", Version: "1", Name: "Cape", Price: &models.Price{Currency: usd, Amount: 300}, Singleton: true, SortKey: 1},
	}
	var c *models.Price
	if credit >= 0 {
		c = &models.Price{Currency: usd, Amount: credit}
	}
	f.catalog = models.NewCatalog([]*models.Offer{f.hat, f.cape}, nil, c)
	f.cart = models.NewCart(usd)
	f.cart.AddOrGetItem(f.hat).Quantity = 2
	return f
}

func statusOK(extra ...any) ttol.List {
	return ttol.Of(append([]any{"status", "ok"}, extra...)...)
}
