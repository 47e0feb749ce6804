package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campustrade/market-api/internal/auth"
	"github.com/campustrade/market-api/internal/domain"
)

type cartStore interface {
	List(ctx context.Context, userID string) ([]domain.CartEntry, error)
	Add(ctx context.Context, userID, itemID string, quantity int) error
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) error
	Remove(ctx context.Context, userID, itemID string) error
	RemoveBatch(ctx context.Context, userID string, itemIDs []string) error
	Clear(ctx context.Context, userID string) error
}

type Handler struct {
	store  cartStore
	logger *slog.Logger
}

func NewHandler(store cartStore, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	entries, err := h.store.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list cart", "error", err, "user_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

type addRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID == "" || req.Quantity < 1 {
		h.writeError(w, http.StatusBadRequest, "item id and a positive quantity are required")
		return
	}

	if err := h.store.Add(r.Context(), identity.UserID, req.ItemID, req.Quantity); err != nil {
		h.mapCartError(w, err, req.ItemID)
		return
	}

	h.logger.Info("cart item added", "user_id", identity.UserID, "item_id", req.ItemID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	itemID := r.PathValue("itemId")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity < 1 {
		h.writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	if err := h.store.UpdateQuantity(r.Context(), identity.UserID, itemID, req.Quantity); err != nil {
		h.mapCartError(w, err, itemID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	itemID := r.PathValue("itemId")
	if err := h.store.Remove(r.Context(), identity.UserID, itemID); err != nil {
		h.logger.Error("failed to remove cart item", "error", err, "user_id", identity.UserID, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type removeBatchRequest struct {
	ItemIDs []string `json:"item_ids"`
}

func (h *Handler) HandleRemoveBatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req removeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ItemIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "item_ids must not be empty")
		return
	}

	if err := h.store.RemoveBatch(r.Context(), identity.UserID, req.ItemIDs); err != nil {
		h.logger.Error("failed to batch-remove cart items", "error", err, "user_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.store.Clear(r.Context(), identity.UserID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "user_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) mapCartError(w http.ResponseWriter, err error, itemID string) {
	switch {
	case errors.Is(err, ErrItemNotFound):
		h.writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, ErrNotInCart):
		h.writeError(w, http.StatusNotFound, "item not in cart")
	case errors.Is(err, ErrOwnItem):
		h.writeError(w, http.StatusBadRequest, "cannot add your own listing")
	case errors.Is(err, ErrItemNotListed):
		h.writeError(w, http.StatusBadRequest, "item is not listed")
	case errors.Is(err, ErrStockExceeded):
		h.writeError(w, http.StatusBadRequest, "quantity exceeds available stock")
	default:
		h.logger.Error("cart operation failed", "error", err, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
