package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/usecase"
	"github.com/nguyentranbao-ct/storefront/pkg/ctxval"
)

const defaultReceiptLimit = 20

type CatalogRequest struct {
	Category string `query:"category"`
}

type OfferRequest struct {
	OfferID string `param:"id" validate:"required"`
}

type PutCartRequest struct {
	OfferID  string `json:"offer_id" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gte=0"`
}

type RemoveCartRequest struct {
	OfferID string `param:"offer_id" validate:"required"`
}

type PressRequest struct {
	Button string `json:"button" validate:"required,oneof=Reload Return Confirm Checkout Back"`
	// Generation refuses the press when the catalog was reloaded since the
	// client last looked.
	Generation *int64 `header:"X-Store-Generation" validate:"omitempty,gte=1"`
}

type ReceiptsRequest struct {
	Limit int64 `query:"limit" validate:"gte=0,lte=100"`
}

type Controller interface {
	Health(c echo.Context) error
	State(c echo.Context, req struct{}) (*usecase.View, error)
	Catalog(c echo.Context, req CatalogRequest) (*usecase.CatalogPage, error)
	ViewOffer(c echo.Context, req OfferRequest) (*usecase.OfferView, error)
	CloseViewer(c echo.Context, req struct{}) (*usecase.View, error)
	PutCart(c echo.Context, req PutCartRequest) (*usecase.CartView, error)
	RemoveCart(c echo.Context, req RemoveCartRequest) (*usecase.CartView, error)
	Checkout(c echo.Context, req struct{}) (*usecase.View, error)
	Press(c echo.Context, req PressRequest) (*usecase.View, error)
	Receipts(c echo.Context, req ReceiptsRequest) ([]*models.CheckoutReceipt, error)
	// Generation is the catalog generation currently shown.
	Generation() int64
}

type controller struct {
	store usecase.Store
}

func NewHandler(store usecase.Store) Controller {
	return &controller{
		store: store,
	}
}

func (h *controller) Generation() int64 {
	return h.store.Generation()
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "healthy",
		"service":    "storefront",
		"generation": h.store.Generation(),
	})
}

func (h *controller) State(c echo.Context, _ struct{}) (*usecase.View, error) {
	return h.store.View(c.Request().Context())
}

func (h *controller) Catalog(c echo.Context, req CatalogRequest) (*usecase.CatalogPage, error) {
	return h.store.Browse(c.Request().Context(), req.Category)
}

func (h *controller) ViewOffer(c echo.Context, req OfferRequest) (*usecase.OfferView, error) {
	ctx := c.Request().Context()
	ctxval.Set(ctx, ctxval.LogKey("offer_id"), req.OfferID)
	return h.store.ViewOffer(ctx, req.OfferID)
}

func (h *controller) CloseViewer(c echo.Context, _ struct{}) (*usecase.View, error) {
	ctx := c.Request().Context()
	if err := h.store.CloseViewer(ctx); err != nil {
		return nil, err
	}
	return h.store.View(ctx)
}

func (h *controller) PutCart(c echo.Context, req PutCartRequest) (*usecase.CartView, error) {
	ctx := c.Request().Context()
	ctxval.Set(ctx, ctxval.LogKey("offer_id"), req.OfferID)
	return h.store.PutCart(ctx, req.OfferID, req.Quantity)
}

func (h *controller) RemoveCart(c echo.Context, req RemoveCartRequest) (*usecase.CartView, error) {
	ctx := c.Request().Context()
	ctxval.Set(ctx, ctxval.LogKey("offer_id"), req.OfferID)
	return h.store.RemoveCart(ctx, req.OfferID)
}

func (h *controller) Checkout(c echo.Context, _ struct{}) (*usecase.View, error) {
	return h.store.Checkout(c.Request().Context())
}

func (h *controller) Press(c echo.Context, req PressRequest) (*usecase.View, error) {
	ctx := c.Request().Context()
	ctxval.Set(ctx, ctxval.LogKey("button"), req.Button)
	return h.store.Press(ctx, req.Button, req.Generation)
}

func (h *controller) Receipts(c echo.Context, req ReceiptsRequest) ([]*models.CheckoutReceipt, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultReceiptLimit
	}
	return h.store.Receipts(c.Request().Context(), limit)
}
