package handlers

import (
	"net/http"
	"strconv"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/http/middleware"
	"github.com/mydiary/mall-server/internal/http/response"
)

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cats)
}

func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cat, err := h.catalog.CreateCategory(r.Context(), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, cat)
}

func (h *Handlers) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.catalog.RenameCategory(r.Context(), id, req); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Category updated successfully")
}

func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Category deleted successfully")
}

// ListItems filters by ?searchQuery= (name substring) and ?categoryId=.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.ItemFilter{Query: q.Get("searchQuery")}
	if raw := q.Get("categoryId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "invalid categoryId")
			return
		}
		f.CategoryID = id
	}
	items, err := h.catalog.ListItems(r.Context(), f)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, items)
}

func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	it, err := h.catalog.GetItem(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, it)
}

func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req domain.ItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.catalog.CreateItem(r.Context(), middleware.UserID(r), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, it)
}

func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.ItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.catalog.UpdateItem(r.Context(), middleware.UserID(r), id, req); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Item updated successfully")
}

func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteItem(r.Context(), middleware.UserID(r), id); err != nil {
		response.FromError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Item deleted successfully")
}
