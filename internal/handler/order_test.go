package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jortega-dev/comandero/internal/controller"
	"github.com/jortega-dev/comandero/internal/order"
	"github.com/jortega-dev/comandero/internal/table"
)

type mockOps struct {
	openTableFunc     func(ctx context.Context, tableID, openedBy string) (*order.Order, error)
	addProductFunc    func(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error)
	removeProductFunc func(ctx context.Context, tableID, productID string) (*order.Order, error)
	setQuantityFunc   func(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error)
	saveFunc          func(ctx context.Context, tableID string) (*order.Order, error)
	payFunc           func(ctx context.Context, tableID string, payment controller.Payment) (*order.Order, error)
	cancelFunc        func(ctx context.Context, tableID string) (*order.Order, error)
	clearCacheCalled  bool
}

func (m *mockOps) OpenTable(ctx context.Context, tableID, openedBy string) (*order.Order, error) {
	return m.openTableFunc(ctx, tableID, openedBy)
}

func (m *mockOps) AddProduct(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error) {
	return m.addProductFunc(ctx, tableID, productID, quantity)
}

func (m *mockOps) RemoveProduct(ctx context.Context, tableID, productID string) (*order.Order, error) {
	return m.removeProductFunc(ctx, tableID, productID)
}

func (m *mockOps) SetQuantity(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error) {
	return m.setQuantityFunc(ctx, tableID, productID, quantity)
}

func (m *mockOps) Save(ctx context.Context, tableID string) (*order.Order, error) {
	return m.saveFunc(ctx, tableID)
}

func (m *mockOps) Pay(ctx context.Context, tableID string, payment controller.Payment) (*order.Order, error) {
	return m.payFunc(ctx, tableID, payment)
}

func (m *mockOps) Cancel(ctx context.Context, tableID string) (*order.Order, error) {
	return m.cancelFunc(ctx, tableID)
}

func (m *mockOps) ClearCache() {
	m.clearCacheCalled = true
}

type mockOrderReader struct {
	getOrderFunc func(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

func (m *mockOrderReader) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getOrderFunc(ctx, id)
}

func newRouter(ops TableOps) *chi.Mux {
	return newRouterWithReader(ops, &mockOrderReader{})
}

func newRouterWithReader(ops TableOps, orders OrderReader) *chi.Mux {
	r := chi.NewRouter()
	NewOrderHandler(ops, orders).RegisterRoutes(r)
	return r
}

func sampleOrder() *order.Order {
	return &order.Order{
		ID:       uuid.Must(uuid.FromString("550e8400-e29b-41d4-a716-446655440000")),
		TableID:  "T01",
		OpenedBy: "ana",
		OpenedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Status:   order.StatusOpen,
		Lines: []order.Line{
			{ProductID: "coffee", ProductName: "Coffee", UnitPrice: decimal.RequireFromString("2.5"), Quantity: 3},
		},
		Total: decimal.RequireFromString("7.5"),
	}
}

func TestOrderHandler_OpenTable(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		openTable      func(ctx context.Context, tableID, openedBy string) (*order.Order, error)
		expectedStatus int
	}{
		{
			name: "success",
			body: `{"opened_by": "ana"}`,
			openTable: func(ctx context.Context, tableID, openedBy string) (*order.Order, error) {
				return sampleOrder(), nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing_opened_by",
			body:           `{}`,
			openTable:      nil,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid_json",
			body:           `{not json}`,
			openTable:      nil,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown_table",
			body: `{"opened_by": "ana"}`,
			openTable: func(ctx context.Context, tableID, openedBy string) (*order.Order, error) {
				return nil, fmt.Errorf("service: %w", table.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&mockOps{openTableFunc: tt.openTable})

			req := httptest.NewRequest(http.MethodPost, "/tables/T01/open", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestOrderHandler_OpenTable_ResponseBody(t *testing.T) {
	router := newRouter(&mockOps{
		openTableFunc: func(ctx context.Context, tableID, openedBy string) (*order.Order, error) {
			assert.Equal(t, "T01", tableID)
			assert.Equal(t, "ana", openedBy)
			return sampleOrder(), nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/tables/T01/open", bytes.NewBufferString(`{"opened_by": "ana"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", resp.ID)
	assert.Equal(t, "open", resp.Status)
	assert.Equal(t, "7.50", resp.Total)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "2.50", resp.Lines[0].UnitPrice)
	assert.Equal(t, "7.50", resp.Lines[0].Subtotal)
}

func TestOrderHandler_AddProduct(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		addProduct     func(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error)
		expectedStatus int
	}{
		{
			name: "success",
			body: `{"product_id": "coffee", "quantity": 2}`,
			addProduct: func(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error) {
				assert.Equal(t, "coffee", productID)
				assert.Equal(t, 2, quantity)
				return sampleOrder(), nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing_product_id",
			body:           `{"quantity": 2}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "negative_quantity_rejected_by_service",
			body: `{"product_id": "coffee", "quantity": -1}`,
			addProduct: func(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error) {
				return nil, fmt.Errorf("%w: quantity must be positive, got -1", order.ErrValidation)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "closed_order",
			body: `{"product_id": "coffee", "quantity": 1}`,
			addProduct: func(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error) {
				return nil, fmt.Errorf("%w: order is paid", order.ErrOrderClosed)
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&mockOps{addProductFunc: tt.addProduct})

			req := httptest.NewRequest(http.MethodPost, "/tables/T01/lines", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestOrderHandler_RemoveProduct(t *testing.T) {
	router := newRouter(&mockOps{
		removeProductFunc: func(ctx context.Context, tableID, productID string) (*order.Order, error) {
			assert.Equal(t, "T01", tableID)
			assert.Equal(t, "coffee", productID)
			o := sampleOrder()
			o.Lines = nil
			o.Total = decimal.Zero
			return o, nil
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/tables/T01/lines/coffee", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Lines)
	assert.Equal(t, "0.00", resp.Total)
}

func TestOrderHandler_SetQuantity(t *testing.T) {
	router := newRouter(&mockOps{
		setQuantityFunc: func(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error) {
			assert.Equal(t, 0, quantity)
			return sampleOrder(), nil
		},
	})

	req := httptest.NewRequest(http.MethodPut, "/tables/T01/lines/coffee", bytes.NewBufferString(`{"quantity": 0}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOrderHandler_Pay(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router := newRouter(&mockOps{
			payFunc: func(ctx context.Context, tableID string, payment controller.Payment) (*order.Order, error) {
				assert.Equal(t, "cash", payment.Method)
				o := sampleOrder()
				o.Status = order.StatusPaid
				return o, nil
			},
		})

		req := httptest.NewRequest(http.MethodPost, "/tables/T01/pay", bytes.NewBufferString(`{"method": "cash"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp OrderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "paid", resp.Status)
	})

	t.Run("already_paid", func(t *testing.T) {
		router := newRouter(&mockOps{
			payFunc: func(ctx context.Context, tableID string, payment controller.Payment) (*order.Order, error) {
				return nil, fmt.Errorf("%w: order is paid", order.ErrOrderClosed)
			},
		})

		req := httptest.NewRequest(http.MethodPost, "/tables/T01/pay", bytes.NewBufferString(`{"method": "cash"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestOrderHandler_GetOrder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router := newRouterWithReader(&mockOps{}, &mockOrderReader{
			getOrderFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())
				return sampleOrder(), nil
			},
		})

		req := httptest.NewRequest(http.MethodGet, "/orders/550e8400-e29b-41d4-a716-446655440000", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp OrderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "T01", resp.TableID)
		assert.Equal(t, "7.50", resp.Total)
	})

	t.Run("invalid_id", func(t *testing.T) {
		router := newRouter(&mockOps{})

		req := httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not_found", func(t *testing.T) {
		router := newRouterWithReader(&mockOps{}, &mockOrderReader{
			getOrderFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return nil, fmt.Errorf("service: %w", order.ErrOrderNotFound)
			},
		})

		req := httptest.NewRequest(http.MethodGet, "/orders/550e8400-e29b-41d4-a716-446655440000", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestOrderHandler_ClearCache(t *testing.T) {
	ops := &mockOps{}
	router := newRouter(ops)

	req := httptest.NewRequest(http.MethodPost, "/cache/clear", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, ops.clearCacheCalled)
}
