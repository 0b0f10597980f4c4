package handlers

import (
	"net/http"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/http/middleware"
	"github.com/mydiary/mall-server/internal/http/response"
)

func (h *Handlers) ListCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.cart.List(r.Context(), middleware.UserID(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, lines)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.CartAddRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	qty, err := h.cart.Add(r.Context(), middleware.UserID(r), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"itemId":   req.ItemID,
		"quantity": qty,
	})
}

func (h *Handlers) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}
	var req domain.CartQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.cart.SetQuantity(r.Context(), middleware.UserID(r), itemID, req); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"itemId":   itemID,
		"quantity": req.Quantity,
	})
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}
	if err := h.cart.Remove(r.Context(), middleware.UserID(r), itemID); err != nil {
		response.FromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlaceOrder honours an Idempotency-Key header: a repeated key returns the
// original order with 200 instead of 201.
func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	o, replayed, err := h.orders.Place(r.Context(), middleware.UserID(r), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		response.WriteJSON(w, http.StatusOK, o)
		return
	}
	response.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), middleware.UserID(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), middleware.UserID(r), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, o)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.OrderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), middleware.UserID(r), id, req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.orders.Cancel(r.Context(), middleware.UserID(r), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, o)
}
