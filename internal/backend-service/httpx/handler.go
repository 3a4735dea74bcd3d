// Package httpx exposes the mock remote store over REST.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/backend-service/app"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/contract/storev1"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

type Handler struct {
	store *app.Store
}

func NewHandler(store *app.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) CartDetails(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.CartDetails(userID(r)))
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req storev1.AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	line, err := h.store.AddToCart(userID(r), req.ProductID, req.Quantity, req.Subtotal)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req storev1.SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	line, err := h.store.SetQuantity(userID(r), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveLine(userID(r), chi.URLParam(r, "productID")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.store.ClearCart(userID(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.ListOrders())
}

func (h *Handler) OrderDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.store.OrderDetails(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req storev1.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.store.UpdateOrderStatus(chi.URLParam(r, "id"), status)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req storev1.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.UserID != userID(r) {
		writeError(w, http.StatusForbidden, "user_id does not match the caller")
		return
	}

	order, err := h.store.CreateOrder(req)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("total", order.Total.String()),
	)
	writeJSON(w, http.StatusCreated, order)
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var ite *domain.InvalidTransitionError
	switch {
	case errors.As(err, &ite):
		writeJSON(w, http.StatusUnprocessableEntity, storev1.Error{
			Error: err.Error(),
			From:  ite.From.String(),
			To:    ite.To.String(),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, app.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "store failure", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, storev1.Error{Error: msg})
}
