// Package httpx is the storefront's JSON API. Each request is served from
// the caller's workspace: their cart engine, order status machine and
// pending confirmations.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/cart"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/checkout"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/confirm"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/orderstatus"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/app"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

type Handler struct {
	workspaces *app.Registry
}

func NewHandler(workspaces *app.Registry) *Handler {
	return &Handler{workspaces: workspaces}
}

// workspace resolves the caller's workspace or writes the error response.
func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*app.Workspace, bool) {
	sess, _ := session.FromContext(r.Context())
	ws, err := h.workspaces.Open(r.Context(), sess)
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	return ws, true
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapCart(ws.Cart.Cart(), ws.Cart.State()))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ProductID == "" || req.UnitPrice.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_item", "product_id and a non-negative unit_price are required")
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	err := ws.Cart.AddItem(r.Context(), req.ProductID, req.Quantity, req.UnitPrice)
	switch {
	case errors.Is(err, cart.ErrAddInFlight):
		writeJSON(w, http.StatusAccepted, AddItemResponse{Accepted: false, Cart: mapCart(ws.Cart.Cart(), ws.Cart.State())})
	case err != nil:
		writeDomainError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, AddItemResponse{Accepted: true, Cart: mapCart(ws.Cart.Cart(), ws.Cart.State())})
	}
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	pending, err := ws.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "productID"), req.Quantity)
	h.writeQuantityResult(w, r, ws, pending, err)
}

func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	pending, err := ws.Cart.Increment(r.Context(), chi.URLParam(r, "productID"))
	h.writeQuantityResult(w, r, ws, pending, err)
}

func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	pending, err := ws.Cart.Decrement(r.Context(), chi.URLParam(r, "productID"))
	h.writeQuantityResult(w, r, ws, pending, err)
}

func (h *Handler) writeQuantityResult(w http.ResponseWriter, r *http.Request, ws *app.Workspace, pending *confirm.Pending, err error) {
	switch {
	case err != nil:
		writeDomainError(w, r, err)
	case pending != nil:
		ws.Confirmations.Put(pending)
		writeJSON(w, http.StatusAccepted, mapConfirmation(pending))
	default:
		writeJSON(w, http.StatusOK, mapCart(ws.Cart.Cart(), ws.Cart.State()))
	}
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	if _, found := ws.Cart.Cart().Line(productID); !found {
		writeError(w, http.StatusNotFound, "line_not_found", productID)
		return
	}
	pending := ws.Cart.RequestRemove(productID)
	ws.Confirmations.Put(pending)
	writeJSON(w, http.StatusAccepted, mapConfirmation(pending))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	pending := ws.Cart.RequestClear()
	ws.Confirmations.Put(pending)
	writeJSON(w, http.StatusAccepted, mapConfirmation(pending))
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	order, err := ws.Checkout.PlaceOrder(r.Context(), ws.Cart, req.Shipping)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Orders.Load(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(ws.Orders.Orders()))
}

func (h *Handler) OrderDetails(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	details, err := ws.Orders.Details(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapDetails(details))
}

func (h *Handler) Transitions(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	order, ok := h.order(w, r, ws, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TransitionsResponse{
		OrderID: order.ID,
		Current: order.Status.String(),
		Allowed: statusStrings(orderstatus.AllowedNextStates(order.Status)),
	})
}

// Journal lists the recorded mutations of one subject, newest first.
func (h *Handler) Journal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", raw)
			return
		}
		limit = n
	}
	entries, err := h.workspaces.History(r.Context(), chi.URLParam(r, "subject"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapJournal(entries))
}

func (h *Handler) RequestStatusChange(w http.ResponseWriter, r *http.Request) {
	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	target, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	order, ok := h.order(w, r, ws, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	pending, err := ws.Orders.RequestTransition(order.ID, order.Status, target)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ws.Confirmations.Put(pending)
	writeJSON(w, http.StatusAccepted, mapConfirmation(pending))
}

// order finds an order in the machine's list, loading the list once when
// the id is unknown.
func (h *Handler) order(w http.ResponseWriter, r *http.Request, ws *app.Workspace, id string) (domain.Order, bool) {
	if o, ok := ws.Orders.Order(id); ok {
		return o, true
	}
	if err := ws.Orders.Load(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return domain.Order{}, false
	}
	o, ok := ws.Orders.Order(id)
	if !ok {
		writeError(w, http.StatusNotFound, "order_not_found", id)
	}
	return o, ok
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	pending, err := ws.Confirmations.Take(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := pending.Confirm(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if pending.Action == "order.status" {
		if o, found := ws.Orders.Order(pending.Subject); found {
			writeJSON(w, http.StatusOK, mapOrder(o))
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(ws.Cart.Cart(), ws.Cart.State()))
}

func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	pending, err := ws.Confirmations.Take(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	pending.Decline()
	w.WriteHeader(http.StatusNoContent)
}

// writeDomainError maps the error taxonomy onto status codes. Remote
// failures are checked last since they may also wrap a more specific cause.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ite *domain.InvalidTransitionError
	switch {
	case errors.As(err, &ite):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_transition",
			Message: err.Error(),
			From:    ite.From.String(),
			To:      ite.To.String(),
		})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, confirm.ErrUnknownConfirmation):
		writeError(w, http.StatusNotFound, "unknown_confirmation", err.Error())
	case errors.Is(err, confirm.ErrDeclined), errors.Is(err, confirm.ErrAlreadyResolved),
		errors.Is(err, orderstatus.ErrNothingStaged):
		writeError(w, http.StatusConflict, "confirmation_resolved", err.Error())
	case errors.Is(err, app.ErrJournalDisabled):
		writeError(w, http.StatusNotImplemented, "journal_disabled", err.Error())
	case errors.Is(err, app.ErrShuttingDown), errors.Is(err, cart.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting_down", err.Error())
	case errors.Is(err, domain.ErrRemoteUnavailable):
		slog.WarnContext(r.Context(), "remote store failure", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "remote_unavailable", err.Error())
	default:
		slog.ErrorContext(r.Context(), "unhandled error", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
