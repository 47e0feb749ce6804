package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campustrade/market-api/internal/auth"
	"github.com/campustrade/market-api/internal/domain"
	"github.com/campustrade/market-api/internal/telemetry"
)

type fakeStore struct {
	failSellers map[string]error
	created     []*domain.Order
	orders      map[string]*domain.Order
	transitions []string
	denyAll     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failSellers: map[string]error{},
		orders:      map[string]*domain.Order{},
	}
}

func (f *fakeStore) Create(_ context.Context, buyerID string, lines []domain.CartLine, address, phone string) (*domain.Order, error) {
	sellerID := lines[0].SellerID
	if err, ok := f.failSellers[sellerID]; ok {
		return nil, fmt.Errorf("item %s: %w", lines[0].ItemID, err)
	}

	order := &domain.Order{
		ID:       fmt.Sprintf("order-%d", len(f.created)+1),
		BuyerID:  buyerID,
		SellerID: sellerID,
		Address:  address,
		Phone:    phone,
		Status:   domain.OrderStatusPending,
	}
	for _, line := range lines {
		order.Items = append(order.Items, domain.OrderItem{ItemID: line.ItemID, Quantity: line.Quantity, UnitPrice: 100})
		order.Total += int64(line.Quantity) * 100
	}
	f.created = append(f.created, order)
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	return f.orders[id], nil
}

func (f *fakeStore) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if o.BuyerID == buyerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBySeller(_ context.Context, sellerID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if o.SellerID == sellerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, orderID, buyerID, _, _ string) error {
	return f.record("pay", orderID, buyerID)
}

func (f *fakeStore) MarkShipped(_ context.Context, orderID, sellerID string) error {
	return f.record("ship", orderID, sellerID)
}

func (f *fakeStore) MarkCompleted(_ context.Context, orderID, buyerID string) error {
	return f.record("receipt", orderID, buyerID)
}

func (f *fakeStore) Cancel(_ context.Context, orderID, buyerID string) error {
	return f.record("cancel", orderID, buyerID)
}

func (f *fakeStore) record(verb, orderID, actorID string) error {
	if f.denyAll {
		return ErrTransitionDenied
	}
	f.transitions = append(f.transitions, verb+":"+orderID+":"+actorID)
	return nil
}

type fakePublisher struct {
	events []domain.OrderEvent
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	p.events = append(p.events, event.(domain.OrderEvent))
	return nil
}

func newTestHandler(t *testing.T, store orderStore, publisher EventPublisher) *Handler {
	t.Helper()
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	return NewHandler(store, publisher, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func authedRequest(method, target, body, userID string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID, Username: "tester"}))
}

func TestHandleCreate(t *testing.T) {
	t.Run("splits a multi-seller cart into one order per seller", func(t *testing.T) {
		store := newFakeStore()
		publisher := &fakePublisher{}
		h := newTestHandler(t, store, publisher)

		body := `{"items":[
			{"item_id":"i1","seller_id":"s10","quantity":2},
			{"item_id":"i2","seller_id":"s20","quantity":1},
			{"item_id":"i3","seller_id":"s10","quantity":1}
		],"address":"dorm 4-101","phone":"13800000000"}`
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, authedRequest(http.MethodPost, "/orders", body, "buyer-1"))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp createOrderResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.OrderIDs) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(resp.OrderIDs))
		}
		if len(resp.Warnings) != 0 {
			t.Errorf("expected no warnings, got %v", resp.Warnings)
		}

		if len(store.created) != 2 {
			t.Fatalf("expected 2 created orders, got %d", len(store.created))
		}
		if len(store.created[0].Items) != 2 || store.created[0].SellerID != "s10" {
			t.Errorf("first order should hold both s10 lines: %+v", store.created[0])
		}
		if len(store.created[1].Items) != 1 || store.created[1].SellerID != "s20" {
			t.Errorf("second order should hold the s20 line: %+v", store.created[1])
		}

		if len(publisher.events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(publisher.events))
		}
		if publisher.events[0].Type != domain.EventOrderCreated {
			t.Errorf("expected order.created event, got %s", publisher.events[0].Type)
		}
	})

	t.Run("a failing seller-group becomes a warning, siblings still commit", func(t *testing.T) {
		store := newFakeStore()
		store.failSellers["s20"] = ErrInsufficientStock
		h := newTestHandler(t, store, &fakePublisher{})

		body := `{"items":[
			{"item_id":"i1","seller_id":"s10","quantity":2},
			{"item_id":"i2","seller_id":"s20","quantity":1}
		],"address":"dorm 4-101","phone":"13800000000"}`
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, authedRequest(http.MethodPost, "/orders", body, "buyer-1"))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}

		var resp createOrderResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.OrderIDs) != 1 {
			t.Errorf("expected 1 order id, got %d", len(resp.OrderIDs))
		}
		if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "s20") {
			t.Errorf("expected a warning naming seller s20, got %v", resp.Warnings)
		}
	})

	t.Run("all groups failing yields 400 with warnings", func(t *testing.T) {
		store := newFakeStore()
		store.failSellers["s10"] = ErrInsufficientStock
		store.failSellers["s20"] = ErrItemUnavailable
		h := newTestHandler(t, store, &fakePublisher{})

		body := `{"items":[
			{"item_id":"i1","seller_id":"s10","quantity":1},
			{"item_id":"i2","seller_id":"s20","quantity":1}
		],"address":"dorm","phone":"123"}`
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, authedRequest(http.MethodPost, "/orders", body, "buyer-1"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		var resp createOrderResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.Warnings) != 2 {
			t.Errorf("expected 2 warnings, got %v", resp.Warnings)
		}
	})

	t.Run("rejects an empty cart", func(t *testing.T) {
		h := newTestHandler(t, newFakeStore(), nil)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, authedRequest(http.MethodPost, "/orders",
			`{"items":[],"address":"dorm","phone":"123"}`, "buyer-1"))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects missing address or phone", func(t *testing.T) {
		h := newTestHandler(t, newFakeStore(), nil)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, authedRequest(http.MethodPost, "/orders",
			`{"items":[{"item_id":"i1","seller_id":"s1","quantity":1}],"address":"","phone":"123"}`, "buyer-1"))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects a non-positive quantity", func(t *testing.T) {
		h := newTestHandler(t, newFakeStore(), nil)
		rec := httptest.NewRecorder()

		h.HandleCreate(rec, authedRequest(http.MethodPost, "/orders",
			`{"items":[{"item_id":"i1","seller_id":"s1","quantity":0}],"address":"dorm","phone":"123"}`, "buyer-1"))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects an unauthenticated request", func(t *testing.T) {
		h := newTestHandler(t, newFakeStore(), nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))

		h.HandleCreate(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})
}

func TestHandlePay(t *testing.T) {
	t.Run("requires proof of payment", func(t *testing.T) {
		h := newTestHandler(t, newFakeStore(), nil)
		rec := httptest.NewRecorder()

		h.HandlePay(rec, authedRequest(http.MethodPost, "/orders/o1/pay",
			`{"transaction_ref":""}`, "buyer-1"))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("denied transition maps to 403", func(t *testing.T) {
		store := newFakeStore()
		store.denyAll = true
		h := newTestHandler(t, store, nil)
		rec := httptest.NewRecorder()

		req := authedRequest(http.MethodPost, "/orders/o1/pay",
			`{"transaction_ref":"txn-1","payment_proof":"proof.jpg"}`, "buyer-1")
		req.SetPathValue("id", "o1")

		h.HandlePay(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("successful pay records the transition and emits an event", func(t *testing.T) {
		store := newFakeStore()
		store.orders["o1"] = &domain.Order{ID: "o1", BuyerID: "buyer-1", SellerID: "s1", Status: domain.OrderStatusPaid}
		publisher := &fakePublisher{}
		h := newTestHandler(t, store, publisher)
		rec := httptest.NewRecorder()

		req := authedRequest(http.MethodPost, "/orders/o1/pay",
			`{"transaction_ref":"txn-1","payment_proof":"proof.jpg"}`, "buyer-1")
		req.SetPathValue("id", "o1")

		h.HandlePay(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(store.transitions) != 1 || store.transitions[0] != "pay:o1:buyer-1" {
			t.Errorf("unexpected transitions: %v", store.transitions)
		}
		if len(publisher.events) != 1 || publisher.events[0].Type != domain.EventOrderPaid {
			t.Errorf("expected one order.paid event, got %+v", publisher.events)
		}
	})
}

func TestHandleCancel(t *testing.T) {
	t.Run("denied cancel maps to 403", func(t *testing.T) {
		store := newFakeStore()
		store.denyAll = true
		h := newTestHandler(t, store, nil)
		rec := httptest.NewRecorder()

		req := authedRequest(http.MethodPost, "/orders/o1/cancel", "", "buyer-1")
		req.SetPathValue("id", "o1")

		h.HandleCancel(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})
}

func TestHandleGet(t *testing.T) {
	t.Run("buyer and seller may view, others may not", func(t *testing.T) {
		store := newFakeStore()
		store.orders["o1"] = &domain.Order{ID: "o1", BuyerID: "buyer-1", SellerID: "seller-1"}
		h := newTestHandler(t, store, nil)

		for _, tc := range []struct {
			userID string
			want   int
		}{
			{"buyer-1", http.StatusOK},
			{"seller-1", http.StatusOK},
			{"stranger", http.StatusForbidden},
		} {
			rec := httptest.NewRecorder()
			req := authedRequest(http.MethodGet, "/orders/o1", "", tc.userID)
			req.SetPathValue("id", "o1")

			h.HandleGet(rec, req)

			if rec.Code != tc.want {
				t.Errorf("user %s: expected %d, got %d", tc.userID, tc.want, rec.Code)
			}
		}
	})

	t.Run("unknown order yields 404", func(t *testing.T) {
		h := newTestHandler(t, newFakeStore(), nil)
		rec := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/orders/nope", "", "buyer-1")
		req.SetPathValue("id", "nope")

		h.HandleGet(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
