package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/campustrade/market-api/internal/domain"
)

// ErrNotOwner signals a delist attempt by someone other than the
// listing's seller (or against an already-removed item).
var ErrNotOwner = errors.New("not the owner of this listing")

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	item.ID = uuid.New().String()
	item.Status = domain.ItemStatusListed
	item.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, seller_id, title, description, category, price, stock, main_image, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, item.ID, item.SellerID, item.Title, item.Description, item.Category,
		item.Price, item.Stock, item.MainImage, item.Status, item.CreatedAt)

	return err
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	item := &domain.Item{}

	err := r.db.QueryRowContext(ctx, `
		SELECT i.id, i.seller_id, u.username, i.title, i.description, i.category,
		       i.price, i.stock, i.main_image, i.status, i.created_at
		FROM items i
		JOIN users u ON u.id = i.seller_id
		WHERE i.id = $1 AND i.deleted_at IS NULL
	`, id).Scan(&item.ID, &item.SellerID, &item.SellerName, &item.Title, &item.Description,
		&item.Category, &item.Price, &item.Stock, &item.MainImage, &item.Status, &item.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

type ListFilter struct {
	Category string
	Query    string
	Limit    int
	Offset   int
}

// List returns listed items newest first, optionally narrowed by
// category and a keyword match on the title.
func (r *ItemRepository) List(ctx context.Context, filter ListFilter) ([]domain.Item, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.seller_id, u.username, i.title, i.category,
		       i.price, i.stock, i.main_image, i.status, i.created_at
		FROM items i
		JOIN users u ON u.id = i.seller_id
		WHERE i.deleted_at IS NULL
		  AND i.status = $1
		  AND ($2 = '' OR i.category = $2)
		  AND ($3 = '' OR i.title ILIKE '%' || $3 || '%')
		ORDER BY i.created_at DESC
		LIMIT $4 OFFSET $5
	`, domain.ItemStatusListed, filter.Category, filter.Query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.Item{}
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.SellerID, &item.SellerName, &item.Title, &item.Category,
			&item.Price, &item.Stock, &item.MainImage, &item.Status, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// Delist soft-deletes a listing; guarded by the owning seller so a
// zero-row update is an ownership failure, not a success.
func (r *ItemRepository) Delist(ctx context.Context, itemID, sellerID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET status = $1, deleted_at = NOW()
		WHERE id = $2 AND seller_id = $3 AND deleted_at IS NULL
	`, domain.ItemStatusDelisted, itemID, sellerID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotOwner
	}

	return nil
}
