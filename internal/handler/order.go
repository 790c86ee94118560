package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jortega-dev/comandero/internal/controller"
	"github.com/jortega-dev/comandero/internal/order"
)

// OrderReader is the read-only order lookup used by the historical order
// endpoint. order.Service satisfies it.
type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

// TableOps is the controller surface the handler needs. *controller.Controller
// satisfies it.
type TableOps interface {
	OpenTable(ctx context.Context, tableID, openedBy string) (*order.Order, error)
	AddProduct(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error)
	RemoveProduct(ctx context.Context, tableID, productID string) (*order.Order, error)
	SetQuantity(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error)
	Save(ctx context.Context, tableID string) (*order.Order, error)
	Pay(ctx context.Context, tableID string, payment controller.Payment) (*order.Order, error)
	Cancel(ctx context.Context, tableID string) (*order.Order, error)
	ClearCache()
}

type OpenTableRequest struct {
	OpenedBy string `json:"opened_by" validate:"required"`
}

type AddProductRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type PayRequest struct {
	Method    string `json:"method" validate:"required"`
	Reference string `json:"reference"`
}

type LineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type OrderResponse struct {
	ID       string         `json:"id"`
	TableID  string         `json:"table_id"`
	OpenedBy string         `json:"opened_by"`
	OpenedAt time.Time      `json:"opened_at"`
	Status   string         `json:"status"`
	Lines    []LineResponse `json:"lines"`
	Total    string         `json:"total"`
}

// newOrderResponse renders money rounded to the minor unit. Rounding happens
// only here; the service carries full precision.
func newOrderResponse(o *order.Order) OrderResponse {
	lines := make([]LineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, LineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			Subtotal:    l.Subtotal().StringFixed(2),
		})
	}
	return OrderResponse{
		ID:       o.ID.String(),
		TableID:  o.TableID,
		OpenedBy: o.OpenedBy,
		OpenedAt: o.OpenedAt,
		Status:   string(o.Status),
		Lines:    lines,
		Total:    o.Total.StringFixed(2),
	}
}

// OrderHandler exposes the controller's table operations over HTTP.
type OrderHandler struct {
	ops      TableOps
	orders   OrderReader
	validate *validator.Validate
}

func NewOrderHandler(ops TableOps, orders OrderReader) *OrderHandler {
	return &OrderHandler{
		ops:      ops,
		orders:   orders,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Post("/tables/{id}/open", h.handleOpenTable)
	router.Post("/tables/{id}/lines", h.handleAddProduct)
	router.Put("/tables/{id}/lines/{productID}", h.handleSetQuantity)
	router.Delete("/tables/{id}/lines/{productID}", h.handleRemoveProduct)
	router.Post("/tables/{id}/save", h.handleSave)
	router.Post("/tables/{id}/pay", h.handlePay)
	router.Post("/tables/{id}/cancel", h.handleCancel)
	router.Post("/cache/clear", h.handleClearCache)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleOpenTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "id")

	var req OpenTableRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.ops.OpenTable(r.Context(), tableID, req.OpenedBy)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "id")

	var req AddProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.ops.AddProduct(r.Context(), tableID, req.ProductID, req.Quantity)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "id")
	productID := chi.URLParam(r, "productID")

	var req SetQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.ops.SetQuantity(r.Context(), tableID, productID, req.Quantity)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "id")
	productID := chi.URLParam(r, "productID")

	o, err := h.ops.RemoveProduct(r.Context(), tableID, productID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "id")

	o, err := h.ops.Save(r.Context(), tableID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "id")

	var req PayRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.ops.Pay(r.Context(), tableID, controller.Payment{Method: req.Method, Reference: req.Reference})
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "id")

	o, err := h.ops.Cancel(r.Context(), tableID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	h.ops.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// decode parses and validates a JSON body, responding with 400 on failure.
func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("handler: failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid request payload: %v", err))
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
		return false
	}

	return true
}
