package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/campustrade/market-api/internal/auth"
	"github.com/campustrade/market-api/internal/domain"
	"github.com/campustrade/market-api/internal/telemetry"
)

type itemStore interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Item, error)
	Delist(ctx context.Context, itemID, sellerID string) error
}

type itemCache interface {
	Get(ctx context.Context, id string) (*domain.Item, error)
	Set(ctx context.Context, item *domain.Item) error
	Invalidate(ctx context.Context, id string) error
}

type Handler struct {
	store   itemStore
	cache   itemCache
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewHandler builds the catalog handler. cache may be nil when Redis is
// not configured; reads then always hit the database.
func NewHandler(store itemStore, cache itemCache, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	items, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list items", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	if h.cache != nil {
		item, err := h.cache.Get(r.Context(), id)
		if err != nil {
			h.logger.Error("item cache read failed", "error", err, "item_id", id)
		} else if item != nil {
			h.metrics.CacheHits.Add(r.Context(), 1)
			h.writeJSON(w, http.StatusOK, item)
			return
		} else {
			h.metrics.CacheMisses.Add(r.Context(), 1)
		}
	}

	item, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get item", "error", err, "item_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if item == nil {
		h.writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), item); err != nil {
			h.logger.Error("item cache write failed", "error", err, "item_id", id)
		}
	}

	h.writeJSON(w, http.StatusOK, item)
}

type createItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	MainImage   string `json:"main_image"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" || req.Category == "" {
		h.writeError(w, http.StatusBadRequest, "title and category are required")
		return
	}
	if req.Price < 0 || req.Stock < 1 {
		h.writeError(w, http.StatusBadRequest, "price must be non-negative and stock positive")
		return
	}

	item := &domain.Item{
		SellerID:    identity.UserID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		MainImage:   req.MainImage,
	}

	if err := h.store.Create(r.Context(), item); err != nil {
		h.logger.Error("failed to create item", "error", err, "seller_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("item listed", "item_id", item.ID, "seller_id", identity.UserID)
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) HandleDelist(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if err := h.store.Delist(r.Context(), id, identity.UserID); err != nil {
		if errors.Is(err, ErrNotOwner) {
			h.writeError(w, http.StatusForbidden, "not your listing")
			return
		}
		h.logger.Error("failed to delist item", "error", err, "item_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), id); err != nil {
			h.logger.Error("item cache invalidation failed", "error", err, "item_id", id)
		}
	}

	h.logger.Info("item delisted", "item_id", id, "seller_id", identity.UserID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "delisted"})
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
