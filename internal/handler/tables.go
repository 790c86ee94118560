package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jortega-dev/comandero/internal/table"
)

// TableHandler exposes read-only floor state.
type TableHandler struct {
	registry table.Registry
}

func NewTableHandler(registry table.Registry) *TableHandler {
	return &TableHandler{registry: registry}
}

func (h *TableHandler) RegisterRoutes(router chi.Router) {
	router.Get("/tables", h.handleListTables)
	router.Get("/tables/{id}", h.handleGetTable)
}

func (h *TableHandler) handleListTables(w http.ResponseWriter, r *http.Request) {
	filter := table.Filter{
		Zone:   r.URL.Query().Get("zone"),
		Status: table.Status(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondWithError(w, http.StatusBadRequest, "unknown table status")
		return
	}

	tables, err := h.registry.ListTables(r.Context(), filter)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, tables)
}

func (h *TableHandler) handleGetTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "id is required")
		return
	}

	t, err := h.registry.GetTable(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, t)
}
