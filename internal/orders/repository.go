package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campustrade/market-api/internal/domain"
)

var (
	ErrItemUnavailable   = errors.New("item unavailable")
	ErrSellerMismatch    = errors.New("item does not belong to the claimed seller")
	ErrOwnListing        = errors.New("cannot buy your own listing")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrTransitionDenied signals a guarded status UPDATE that affected
	// zero rows: wrong actor, wrong current status, or no such order.
	ErrTransitionDenied = errors.New("transition denied")
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create places one order for a single seller-group within one
// transaction: every line is re-validated against the live item row, its
// stock is decremented with a conditional UPDATE, and the order plus its
// line items are inserted. Any failure rolls the whole group back; stock
// is never left decremented without a matching order.
func (r *OrderRepository) Create(ctx context.Context, buyerID string, lines []domain.CartLine, address, phone string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	order := &domain.Order{
		ID:        uuid.New().String(),
		BuyerID:   buyerID,
		SellerID:  lines[0].SellerID,
		Status:    domain.OrderStatusPending,
		Address:   address,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, line := range lines {
		var sellerID string
		var price int64
		var status domain.ItemStatus
		err := tx.QueryRowContext(ctx, `
			SELECT seller_id, price, status
			FROM items
			WHERE id = $1 AND deleted_at IS NULL
		`, line.ItemID).Scan(&sellerID, &price, &status)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("item %s: %w", line.ItemID, ErrItemUnavailable)
			}
			return nil, err
		}

		if status != domain.ItemStatusListed {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, ErrItemUnavailable)
		}
		if sellerID != order.SellerID {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, ErrSellerMismatch)
		}
		if sellerID == buyerID {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, ErrOwnListing)
		}

		// Check-and-decrement in one statement; zero rows means another
		// buyer got there first.
		result, err := tx.ExecContext(ctx, `
			UPDATE items
			SET stock = stock - $2
			WHERE id = $1 AND stock >= $2
		`, line.ItemID, line.Quantity)
		if err != nil {
			return nil, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, ErrInsufficientStock)
		}

		order.Items = append(order.Items, domain.OrderItem{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
		order.Total += int64(line.Quantity) * price
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, seller_id, status, total, address, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, order.ID, order.BuyerID, order.SellerID, order.Status, order.Total, order.Address, order.Phone, order.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, item_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), order.ID, item.ItemID, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, status, total, address, phone,
		       COALESCE(transaction_ref, ''), COALESCE(payment_proof, ''),
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.BuyerID, &order.SellerID, &order.Status, &order.Total,
		&order.Address, &order.Phone, &order.TransactionRef, &order.PaymentProof,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.item_id, i.title, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN items i ON i.id = oi.item_id
		WHERE oi.order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ItemID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByBuyer returns the buyer's orders, newest first, without line items.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.list(ctx, "buyer_id", buyerID)
}

// ListBySeller returns the seller's sales, newest first, without line items.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return r.list(ctx, "seller_id", sellerID)
}

func (r *OrderRepository) list(ctx context.Context, column, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, buyer_id, seller_id, status, total, address, phone, created_at, updated_at
		FROM orders
		WHERE `+column+` = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.BuyerID, &order.SellerID, &order.Status, &order.Total,
			&order.Address, &order.Phone, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// MarkPaid moves an order from pending to paid and records the payment
// proof. The UPDATE is guarded by order id, buyer id and current status;
// a zero-row result is a denied transition, never a silent success.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID, buyerID, transactionRef, paymentProof string) error {
	return r.transition(ctx, `
		UPDATE orders
		SET status = $1, transaction_ref = $4, payment_proof = $5, updated_at = NOW()
		WHERE id = $2 AND buyer_id = $3 AND status = $6
	`, domain.OrderStatusPaid, orderID, buyerID, transactionRef, paymentProof, domain.OrderStatusPending)
}

// MarkShipped moves an order from paid to shipped; seller only.
func (r *OrderRepository) MarkShipped(ctx context.Context, orderID, sellerID string) error {
	return r.transition(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND seller_id = $3 AND status = $4
	`, domain.OrderStatusShipped, orderID, sellerID, domain.OrderStatusPaid)
}

// MarkCompleted moves an order from shipped to completed; buyer only.
func (r *OrderRepository) MarkCompleted(ctx context.Context, orderID, buyerID string) error {
	return r.transition(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND buyer_id = $3 AND status = $4
	`, domain.OrderStatusCompleted, orderID, buyerID, domain.OrderStatusShipped)
}

// Cancel moves an order from pending to cancelled; buyer only. Orders
// that were already paid cannot be cancelled. Stock restoration happens
// in the database trigger fired by this status change.
func (r *OrderRepository) Cancel(ctx context.Context, orderID, buyerID string) error {
	return r.transition(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND buyer_id = $3 AND status = $4
	`, domain.OrderStatusCancelled, orderID, buyerID, domain.OrderStatusPending)
}

func (r *OrderRepository) transition(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTransitionDenied
	}

	return nil
}

// CancelExpired bulk-flips pending orders created before cutoff to
// cancelled and returns the affected orders. The status guard makes the
// sweep safe against concurrent payments: whichever side commits first
// wins, the other affects zero rows. Stock restoration is the trigger's
// job.
func (r *OrderRepository) CancelExpired(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3
		RETURNING id, buyer_id, seller_id, total
	`, domain.OrderStatusCancelled, domain.OrderStatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cancelled []domain.Order
	for rows.Next() {
		order := domain.Order{Status: domain.OrderStatusCancelled}
		if err := rows.Scan(&order.ID, &order.BuyerID, &order.SellerID, &order.Total); err != nil {
			return nil, err
		}
		cancelled = append(cancelled, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cancelled, nil
}
