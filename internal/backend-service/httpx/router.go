package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/cache"
)

func NewRouter(handler *Handler, idem cache.Cache) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireBearer)
		r.Use(Idempotency(idem, 24*time.Hour))

		r.Get("/cart/details", handler.CartDetails)
		r.Post("/cart/items", handler.AddToCart)
		r.Patch("/cart/items/{productID}", handler.SetQuantity)
		r.Delete("/cart/items/{productID}", handler.RemoveLine)
		r.Delete("/cart", handler.ClearCart)

		r.Get("/orders", handler.ListOrders)
		r.Post("/orders", handler.CreateOrder)
		r.Get("/orders/{id}/details", handler.OrderDetails)
		r.Patch("/orders/{id}/status", handler.UpdateOrderStatus)
	})

	return otelhttp.NewHandler(r, "mock-backend")
}
