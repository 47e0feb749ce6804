package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/campustrade/market-api/internal/domain"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrItemNotListed = errors.New("item not listed")
	ErrOwnItem       = errors.New("cannot add your own listing")
	ErrStockExceeded = errors.New("quantity exceeds available stock")
	ErrNotInCart     = errors.New("item not in cart")
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) List(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.item_id, i.title, i.price, i.stock, i.main_image,
		       i.seller_id, u.username, i.status, c.quantity, c.created_at
		FROM cart_items c
		JOIN items i ON i.id = c.item_id AND i.deleted_at IS NULL
		JOIN users u ON u.id = i.seller_id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.CartEntry{}
	for rows.Next() {
		var entry domain.CartEntry
		if err := rows.Scan(&entry.ItemID, &entry.Title, &entry.Price, &entry.Stock, &entry.MainImage,
			&entry.SellerID, &entry.SellerName, &entry.ItemStatus, &entry.Quantity, &entry.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Add puts quantity of an item in the user's cart, accumulating if the
// row already exists. The item must be a live listing someone else owns
// with enough stock for the requested quantity.
func (r *CartRepository) Add(ctx context.Context, userID, itemID string, quantity int) error {
	var sellerID string
	var stock int
	var status domain.ItemStatus
	err := r.db.QueryRowContext(ctx, `
		SELECT seller_id, stock, status
		FROM items
		WHERE id = $1 AND deleted_at IS NULL
	`, itemID).Scan(&sellerID, &stock, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrItemNotFound
		}
		return err
	}

	if sellerID == userID {
		return ErrOwnItem
	}
	if status != domain.ItemStatusListed {
		return ErrItemNotListed
	}
	if stock < quantity {
		return ErrStockExceeded
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, item_id, quantity, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, item_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, userID, itemID, quantity)

	return err
}

func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	var stock int
	err := r.db.QueryRowContext(ctx, `
		SELECT stock FROM items WHERE id = $1 AND deleted_at IS NULL
	`, itemID).Scan(&stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrItemNotFound
		}
		return err
	}
	if stock < quantity {
		return ErrStockExceeded
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3 WHERE user_id = $1 AND item_id = $2
	`, userID, itemID, quantity)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotInCart
	}

	return nil
}

func (r *CartRepository) Remove(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1 AND item_id = $2
	`, userID, itemID)
	return err
}

func (r *CartRepository) RemoveBatch(ctx context.Context, userID string, itemIDs []string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1 AND item_id = ANY($2)
	`, userID, pq.Array(itemIDs))
	return err
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1
	`, userID)
	return err
}
