package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jortega-dev/comandero/internal/table"
)

type mockRegistry struct {
	getTableFunc   func(ctx context.Context, id string) (*table.Table, error)
	listTablesFunc func(ctx context.Context, filter table.Filter) ([]table.Table, error)
}

func (m *mockRegistry) GetTable(ctx context.Context, id string) (*table.Table, error) {
	return m.getTableFunc(ctx, id)
}

func (m *mockRegistry) ListTables(ctx context.Context, filter table.Filter) ([]table.Table, error) {
	return m.listTablesFunc(ctx, filter)
}

func (m *mockRegistry) SetStatus(ctx context.Context, id string, status table.Status) (*table.Table, error) {
	panic("not used by handler")
}

func (m *mockRegistry) Ensure(ctx context.Context, t table.Table) error {
	panic("not used by handler")
}

func newTablesRouter(registry table.Registry) *chi.Mux {
	r := chi.NewRouter()
	NewTableHandler(registry).RegisterRoutes(r)
	return r
}

func TestTableHandler_ListTables(t *testing.T) {
	router := newTablesRouter(&mockRegistry{
		listTablesFunc: func(ctx context.Context, filter table.Filter) ([]table.Table, error) {
			assert.Equal(t, "terrace", filter.Zone)
			assert.Equal(t, table.StatusFree, filter.Status)
			return []table.Table{
				{ID: "T01", Number: 1, Capacity: 4, Zone: "terrace", Status: table.StatusFree},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/tables?zone=terrace&status=free", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var tables []table.Table
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tables))
	require.Len(t, tables, 1)
	assert.Equal(t, "T01", tables[0].ID)
}

func TestTableHandler_ListTables_UnknownStatus(t *testing.T) {
	router := newTablesRouter(&mockRegistry{})

	req := httptest.NewRequest(http.MethodGet, "/tables?status=broken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTableHandler_GetTable(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router := newTablesRouter(&mockRegistry{
			getTableFunc: func(ctx context.Context, id string) (*table.Table, error) {
				assert.Equal(t, "T01", id)
				return &table.Table{ID: "T01", Number: 1, Capacity: 4, Status: table.StatusOccupied}, nil
			},
		})

		req := httptest.NewRequest(http.MethodGet, "/tables/T01", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var got table.Table
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, table.StatusOccupied, got.Status)
	})

	t.Run("not_found", func(t *testing.T) {
		router := newTablesRouter(&mockRegistry{
			getTableFunc: func(ctx context.Context, id string) (*table.Table, error) {
				return nil, table.ErrNotFound
			},
		})

		req := httptest.NewRequest(http.MethodGet, "/tables/T99", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
