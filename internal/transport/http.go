package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jortega-dev/comandero/internal/handler"
	"github.com/jortega-dev/comandero/internal/table"
)

func NewRouter(registry table.Registry, ops handler.TableOps, orders handler.OrderReader) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	handler.NewTableHandler(registry).RegisterRoutes(r)
	handler.NewOrderHandler(ops, orders).RegisterRoutes(r)

	return r
}
