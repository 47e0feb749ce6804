package domain

import "time"

// ItemStatus mirrors the listing visibility flag on an item row.
type ItemStatus int

const (
	ItemStatusDelisted ItemStatus = 0
	ItemStatusListed   ItemStatus = 1
)

// Item is a seller-owned listing. Stock is mutated only by the order
// creation transaction and the cancellation-restore trigger.
type Item struct {
	ID          string     `json:"id"`
	SellerID    string     `json:"seller_id"`
	SellerName  string     `json:"seller_name,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Price       int64      `json:"price"`
	Stock       int        `json:"stock"`
	MainImage   string     `json:"main_image,omitempty"`
	Status      ItemStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CartEntry is a persisted cart row joined with its item's live data.
type CartEntry struct {
	ItemID     string     `json:"item_id"`
	Title      string     `json:"title"`
	Price      int64      `json:"price"`
	Stock      int        `json:"stock"`
	MainImage  string     `json:"main_image,omitempty"`
	SellerID   string     `json:"seller_id"`
	SellerName string     `json:"seller_name,omitempty"`
	ItemStatus ItemStatus `json:"item_status"`
	Quantity   int        `json:"quantity"`
	AddedAt    time.Time  `json:"added_at"`
}
