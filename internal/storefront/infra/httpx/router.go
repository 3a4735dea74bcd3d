package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/infra/httpx/middlewares"
)

func NewRouter(handler *Handler, sessions *session.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachTracingMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Authenticate(sessions))

		r.Get("/cart", handler.GetCart)
		r.Post("/cart/items", handler.AddItem)
		r.Patch("/cart/items/{productID}", handler.SetQuantity)
		r.Post("/cart/items/{productID}/increment", handler.Increment)
		r.Post("/cart/items/{productID}/decrement", handler.Decrement)
		r.Delete("/cart/items/{productID}", handler.RemoveItem)
		r.Delete("/cart", handler.ClearCart)
		r.Post("/checkout", handler.Checkout)

		r.Post("/confirmations/{id}/confirm", handler.Confirm)
		r.Post("/confirmations/{id}/decline", handler.Decline)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.RequireAdmin)
			r.Get("/orders", handler.ListOrders)
			r.Get("/orders/{id}/details", handler.OrderDetails)
			r.Get("/orders/{id}/transitions", handler.Transitions)
			r.Post("/orders/{id}/status", handler.RequestStatusChange)
			r.Get("/journal/{subject}", handler.Journal)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
