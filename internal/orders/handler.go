package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/campustrade/market-api/internal/auth"
	"github.com/campustrade/market-api/internal/domain"
	"github.com/campustrade/market-api/internal/telemetry"
)

// orderStore is the slice of OrderRepository the handler needs; tests
// substitute a fake.
type orderStore interface {
	Create(ctx context.Context, buyerID string, lines []domain.CartLine, address, phone string) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)
	MarkPaid(ctx context.Context, orderID, buyerID, transactionRef, paymentProof string) error
	MarkShipped(ctx context.Context, orderID, sellerID string) error
	MarkCompleted(ctx context.Context, orderID, buyerID string) error
	Cancel(ctx context.Context, orderID, buyerID string) error
}

// EventPublisher emits order lifecycle events. A nil publisher disables
// event emission (local development without Kafka).
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	store     orderStore
	publisher EventPublisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewHandler(store orderStore, publisher EventPublisher, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

type createOrderRequest struct {
	Items   []domain.CartLine `json:"items"`
	Address string            `json:"address"`
	Phone   string            `json:"phone"`
}

type createOrderResponse struct {
	OrderIDs []string `json:"orderIds"`
	Warnings []string `json:"warnings,omitempty"`
}

// HandleCreate validates the checkout payload, splits it into
// seller-groups and places one order per group. Groups fail
// independently: a rejected group becomes a warning while its siblings
// still commit.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}
	if req.Address == "" || req.Phone == "" {
		h.writeError(w, http.StatusBadRequest, "address and phone are required")
		return
	}
	for _, line := range req.Items {
		if line.ItemID == "" || line.SellerID == "" || line.Quantity < 1 {
			h.writeError(w, http.StatusBadRequest, "every line needs an item id, a seller id and a positive quantity")
			return
		}
	}

	var resp createOrderResponse
	for _, group := range domain.GroupBySeller(req.Items) {
		order, err := h.store.Create(r.Context(), identity.UserID, group, req.Address, req.Phone)
		if err != nil {
			if isGroupRejection(err) {
				h.metrics.GroupsRejected.Add(r.Context(), 1)
				h.logger.Info("seller group rejected",
					"buyer_id", identity.UserID, "seller_id", group[0].SellerID, "reason", err)
				resp.Warnings = append(resp.Warnings,
					fmt.Sprintf("seller %s: %s", group[0].SellerID, err))
				continue
			}
			h.logger.Error("failed to create order", "error", err, "buyer_id", identity.UserID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		resp.OrderIDs = append(resp.OrderIDs, order.ID)
		h.metrics.OrdersCreated.Add(r.Context(), 1)
		h.publish(r.Context(), domain.EventOrderCreated, order)
	}

	if len(resp.OrderIDs) == 0 {
		h.writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	h.logger.Info("orders created",
		"buyer_id", identity.UserID, "count", len(resp.OrderIDs), "warnings", len(resp.Warnings))
	h.writeJSON(w, http.StatusCreated, resp)
}

func isGroupRejection(err error) bool {
	return errors.Is(err, ErrItemUnavailable) ||
		errors.Is(err, ErrSellerMismatch) ||
		errors.Is(err, ErrOwnListing) ||
		errors.Is(err, ErrInsufficientStock)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if order.BuyerID != identity.UserID && order.SellerID != identity.UserID {
		h.writeError(w, http.StatusForbidden, "not your order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orders, err := h.store.ListByBuyer(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "buyer_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleListSales(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orders, err := h.store.ListBySeller(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list sales", "error", err, "seller_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type payRequest struct {
	TransactionRef string `json:"transaction_ref"`
	PaymentProof   string `json:"payment_proof"`
}

func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TransactionRef == "" || req.PaymentProof == "" {
		h.writeError(w, http.StatusBadRequest, "transaction reference and payment proof are required")
		return
	}

	id := r.PathValue("id")
	err := h.store.MarkPaid(r.Context(), id, identity.UserID, req.TransactionRef, req.PaymentProof)
	h.finishTransition(w, r, err, id, identity.UserID, "paid", domain.EventOrderPaid)
}

func (h *Handler) HandleShip(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	err := h.store.MarkShipped(r.Context(), id, identity.UserID)
	h.finishTransition(w, r, err, id, identity.UserID, "shipped", domain.EventOrderShipped)
}

func (h *Handler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	err := h.store.MarkCompleted(r.Context(), id, identity.UserID)
	h.finishTransition(w, r, err, id, identity.UserID, "completed", domain.EventOrderCompleted)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	err := h.store.Cancel(r.Context(), id, identity.UserID)
	h.finishTransition(w, r, err, id, identity.UserID, "cancelled", domain.EventOrderCancelled)
}

func (h *Handler) finishTransition(w http.ResponseWriter, r *http.Request, err error, orderID, actorID, verb, eventType string) {
	if err != nil {
		if errors.Is(err, ErrTransitionDenied) {
			h.writeError(w, http.StatusForbidden, "operation not allowed: wrong actor or order status")
			return
		}
		h.logger.Error("failed to update order status", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order "+verb, "order_id", orderID, "actor_id", actorID)

	if h.publisher != nil {
		order, err := h.store.GetByID(r.Context(), orderID)
		if err != nil || order == nil {
			h.logger.Error("failed to load order for event", "error", err, "order_id", orderID)
		} else {
			h.publish(r.Context(), eventType, order)
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": verb})
}

func (h *Handler) publish(ctx context.Context, eventType string, order *domain.Order) {
	if h.publisher == nil {
		return
	}

	event := domain.OrderEvent{
		Type:      eventType,
		OrderID:   order.ID,
		BuyerID:   order.BuyerID,
		SellerID:  order.SellerID,
		Total:     order.Total,
		Items:     order.Items,
		Timestamp: time.Now().UTC(),
	}
	if err := h.publisher.Publish(ctx, order.ID, event); err != nil {
		h.logger.Error("failed to publish order event", "error", err, "order_id", order.ID, "type", eventType)
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
