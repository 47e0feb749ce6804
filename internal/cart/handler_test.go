package cart

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campustrade/market-api/internal/auth"
	"github.com/campustrade/market-api/internal/domain"
)

type fakeCartStore struct {
	addErr    error
	updateErr error
	added     map[string]int
	removed   []string
	cleared   bool
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{added: map[string]int{}}
}

func (f *fakeCartStore) List(_ context.Context, _ string) ([]domain.CartEntry, error) {
	return []domain.CartEntry{}, nil
}

func (f *fakeCartStore) Add(_ context.Context, _, itemID string, quantity int) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added[itemID] += quantity
	return nil
}

func (f *fakeCartStore) UpdateQuantity(_ context.Context, _, itemID string, quantity int) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.added[itemID] = quantity
	return nil
}

func (f *fakeCartStore) Remove(_ context.Context, _, itemID string) error {
	f.removed = append(f.removed, itemID)
	return nil
}

func (f *fakeCartStore) RemoveBatch(_ context.Context, _ string, itemIDs []string) error {
	f.removed = append(f.removed, itemIDs...)
	return nil
}

func (f *fakeCartStore) Clear(_ context.Context, _ string) error {
	f.cleared = true
	return nil
}

func newTestHandler(store cartStore) *Handler {
	return NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func authedRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "user-1"}))
}

func TestHandleAdd(t *testing.T) {
	t.Run("adds a valid line", func(t *testing.T) {
		store := newFakeCartStore()
		h := newTestHandler(store)
		rec := httptest.NewRecorder()

		h.HandleAdd(rec, authedRequest(http.MethodPost, "/cart", `{"item_id":"i1","quantity":2}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if store.added["i1"] != 2 {
			t.Errorf("expected quantity 2 for i1, got %d", store.added["i1"])
		}
	})

	t.Run("rejects a zero quantity", func(t *testing.T) {
		h := newTestHandler(newFakeCartStore())
		rec := httptest.NewRecorder()

		h.HandleAdd(rec, authedRequest(http.MethodPost, "/cart", `{"item_id":"i1","quantity":0}`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("own listing maps to 400", func(t *testing.T) {
		store := newFakeCartStore()
		store.addErr = ErrOwnItem
		h := newTestHandler(store)
		rec := httptest.NewRecorder()

		h.HandleAdd(rec, authedRequest(http.MethodPost, "/cart", `{"item_id":"i1","quantity":1}`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing item maps to 404", func(t *testing.T) {
		store := newFakeCartStore()
		store.addErr = ErrItemNotFound
		h := newTestHandler(store)
		rec := httptest.NewRecorder()

		h.HandleAdd(rec, authedRequest(http.MethodPost, "/cart", `{"item_id":"gone","quantity":1}`))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("stock exceeded maps to 400", func(t *testing.T) {
		store := newFakeCartStore()
		store.addErr = ErrStockExceeded
		h := newTestHandler(store)
		rec := httptest.NewRecorder()

		h.HandleAdd(rec, authedRequest(http.MethodPost, "/cart", `{"item_id":"i1","quantity":99}`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleUpdate(t *testing.T) {
	t.Run("updates quantity", func(t *testing.T) {
		store := newFakeCartStore()
		h := newTestHandler(store)
		rec := httptest.NewRecorder()

		req := authedRequest(http.MethodPatch, "/cart/i1", `{"quantity":3}`)
		req.SetPathValue("itemId", "i1")
		h.HandleUpdate(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if store.added["i1"] != 3 {
			t.Errorf("expected quantity 3, got %d", store.added["i1"])
		}
	})

	t.Run("not in cart maps to 404", func(t *testing.T) {
		store := newFakeCartStore()
		store.updateErr = ErrNotInCart
		h := newTestHandler(store)
		rec := httptest.NewRecorder()

		req := authedRequest(http.MethodPatch, "/cart/i1", `{"quantity":3}`)
		req.SetPathValue("itemId", "i1")
		h.HandleUpdate(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandleRemoveBatch(t *testing.T) {
	t.Run("removes all named items", func(t *testing.T) {
		store := newFakeCartStore()
		h := newTestHandler(store)
		rec := httptest.NewRecorder()

		h.HandleRemoveBatch(rec, authedRequest(http.MethodPost, "/cart/remove-batch",
			`{"item_ids":["i1","i2"]}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(store.removed) != 2 {
			t.Errorf("expected 2 removed, got %v", store.removed)
		}
	})

	t.Run("rejects an empty list", func(t *testing.T) {
		h := newTestHandler(newFakeCartStore())
		rec := httptest.NewRecorder()

		h.HandleRemoveBatch(rec, authedRequest(http.MethodPost, "/cart/remove-batch", `{"item_ids":[]}`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleClear(t *testing.T) {
	store := newFakeCartStore()
	h := newTestHandler(store)
	rec := httptest.NewRecorder()

	h.HandleClear(rec, authedRequest(http.MethodDelete, "/cart", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !store.cleared {
		t.Error("expected cart to be cleared")
	}
}

func TestUnauthenticated(t *testing.T) {
	h := newTestHandler(newFakeCartStore())
	rec := httptest.NewRecorder()

	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
