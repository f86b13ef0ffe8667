package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/storefront/internal/server/middleware"
	"github.com/nguyentranbao-ct/storefront/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	usecase.Store

	err error

	mu         sync.Mutex
	pressed    string
	generation *int64
	limit      int64
	put        [2]any
}

func (s *fakeStore) Generation() int64 { return 3 }

func (s *fakeStore) View(context.Context) (*usecase.View, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.View{
		State:      usecase.StateBrowsing,
		Status:     usecase.Status{Message: "Cart is empty", Buttons: []string{}},
		Generation: 3,
	}, nil
}

func (s *fakeStore) Browse(_ context.Context, category string) (*usecase.CatalogPage, error) {
	if category == "missing" {
		return nil, fmt.Errorf("category %s: %w", category, models.ErrNotFound)
	}
	return &usecase.CatalogPage{Category: category, Path: "Hats", Children: []usecase.CategoryView{}}, nil
}

func (s *fakeStore) PutCart(_ context.Context, offerID string, quantity int64) (*usecase.CartView, error) {
	s.mu.Lock()
	s.put = [2]any{offerID, quantity}
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.CartView{Currency: "USD", Amount: 250, Total: "$2.50"}, nil
}

func (s *fakeStore) Press(_ context.Context, button string, generation *int64) (*usecase.View, error) {
	s.mu.Lock()
	s.pressed = button
	s.generation = generation
	s.mu.Unlock()
	if generation != nil && *generation != 3 {
		return nil, usecase.ErrStaleGeneration
	}
	return s.View(context.Background())
}

func (s *fakeStore) Receipts(_ context.Context, limit int64) ([]*models.CheckoutReceipt, error) {
	s.mu.Lock()
	s.limit = limit
	s.mu.Unlock()
	return []*models.CheckoutReceipt{{
		ID:          "r1",
		Method:      models.CheckoutMethodCredit,
		Outcome:     models.OutcomeCompleted,
		SealedToken: "secret",
	}}, nil
}

func (s *fakeStore) snapshot() (pressed string, generation *int64, limit int64, put [2]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pressed, s.generation, s.limit, s.put
}

func newTestServer(t *testing.T, store usecase.Store) *httptest.Server {
	t.Helper()
	e := NewEcho(&config.Config{}, NewHandler(store))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, header map[string]string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHealthAndState(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeStore{})

	code, body := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"healthy","service":"storefront","generation":3}`, body)

	code, body = do(t, srv, http.MethodGet, "/api/v1/state", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"success":true`)
	assert.Contains(t, body, `"state":"browsing"`)
	assert.Contains(t, body, `"message":"Cart is empty"`)
}

func TestCatalogNotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeStore{})

	code, body := do(t, srv, http.MethodGet, "/api/v1/catalog?category=hats", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"category":"hats"`)

	code, body = do(t, srv, http.MethodGet, "/api/v1/catalog?category=missing", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"success":false,"error_code":"not_found","error_message":"category missing: not found"}`, body)
}

func TestPutCart(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	srv := newTestServer(t, store)

	code, body := do(t, srv, http.MethodPut, "/api/v1/cart", `{"offer_id":"hat","quantity":2}`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"total":"$2.50"`)
	_, _, _, put := store.snapshot()
	assert.Equal(t, [2]any{"hat", int64(2)}, put)

	code, _ = do(t, srv, http.MethodPut, "/api/v1/cart", `{"offer_id":"hat","quantity":150}`, nil)
	assert.Equal(t, http.StatusOK, code)
	_, _, _, put = store.snapshot()
	assert.Equal(t, [2]any{"hat", int64(150)}, put, "large quantities are clamped by the cart")

	code, _ = do(t, srv, http.MethodPut, "/api/v1/cart", `{"offer_id":"hat","quantity":-1}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodPut, "/api/v1/cart", `{"quantity":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStoreErrorCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{usecase.ErrNotViewed, http.StatusConflict},
		{fmt.Errorf("%w: checkout", usecase.ErrInvalidState), http.StatusConflict},
		{models.ErrNotForSale, http.StatusConflict},
		{usecase.ErrOfferInvalid, http.StatusConflict},
		{usecase.ErrControllerClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("offer x: %w", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(t, &fakeStore{err: tt.err})
			code, body := do(t, srv, http.MethodPut, "/api/v1/cart", `{"offer_id":"hat","quantity":1}`, nil)
			assert.Equal(t, tt.want, code)
			assert.Contains(t, body, `"success":false`)
		})
	}
}

func TestPressWithGeneration(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	srv := newTestServer(t, store)

	code, _ := do(t, srv, http.MethodPost, "/api/v1/actions", `{"button":"Reload"}`, nil)
	assert.Equal(t, http.StatusOK, code)
	pressed, generation, _, _ := store.snapshot()
	assert.Equal(t, "Reload", pressed)
	assert.Nil(t, generation)

	code, _ = do(t, srv, http.MethodPost, "/api/v1/actions", `{"button":"Confirm"}`,
		map[string]string{pkgmdw.XStoreGeneration: "3"})
	assert.Equal(t, http.StatusOK, code)
	_, generation, _, _ = store.snapshot()
	require.NotNil(t, generation)
	assert.EqualValues(t, 3, *generation)

	code, body := do(t, srv, http.MethodPost, "/api/v1/actions", `{"button":"Confirm"}`,
		map[string]string{pkgmdw.XStoreGeneration: "2"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body, "generation")

	code, _ = do(t, srv, http.MethodPost, "/api/v1/actions", `{"button":"Buy"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReceiptsHideSealedToken(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	srv := newTestServer(t, store)

	code, body := do(t, srv, http.MethodGet, "/api/v1/receipts", "", nil)
	assert.Equal(t, http.StatusOK, code)
	_, _, limit, _ := store.snapshot()
	assert.EqualValues(t, defaultReceiptLimit, limit)
	assert.Contains(t, body, `"outcome":"completed"`)
	assert.NotContains(t, body, "secret")

	code, _ = do(t, srv, http.MethodGet, "/api/v1/receipts?limit=5", "", nil)
	assert.Equal(t, http.StatusOK, code)
	_, _, limit, _ = store.snapshot()
	assert.EqualValues(t, 5, limit)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeStore{})
	code, body := do(t, srv, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "no route matched")
}
