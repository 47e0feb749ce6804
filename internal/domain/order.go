package domain

import "time"

// OrderStatus is the numeric lifecycle code stored on an order row.
// Transitions only move forward through the graph below; cancellation
// is reachable from pending only.
type OrderStatus int

const (
	OrderStatusPending   OrderStatus = 0
	OrderStatusPaid      OrderStatus = 1
	OrderStatusShipped   OrderStatus = 2
	OrderStatusCompleted OrderStatus = 3
	OrderStatusCancelled OrderStatus = 4
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusPaid:
		return "paid"
	case OrderStatusShipped:
		return "shipped"
	case OrderStatusCompleted:
		return "completed"
	case OrderStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusPaid || next == OrderStatusCancelled
	case OrderStatusPaid:
		return next == OrderStatusShipped
	case OrderStatusShipped:
		return next == OrderStatusCompleted
	default:
		return false
	}
}

type OrderItem struct {
	ItemID    string `json:"item_id"`
	Title     string `json:"title,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Order is one seller-group of a cart, materialized as a single row.
// A multi-seller cart produces several orders, one per seller.
type Order struct {
	ID             string      `json:"id"`
	BuyerID        string      `json:"buyer_id"`
	SellerID       string      `json:"seller_id"`
	Items          []OrderItem `json:"items,omitempty"`
	Total          int64       `json:"total"`
	Status         OrderStatus `json:"status"`
	Address        string      `json:"address"`
	Phone          string      `json:"phone"`
	TransactionRef string      `json:"transaction_ref,omitempty"`
	PaymentProof   string      `json:"payment_proof,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// CartLine is one entry of a checkout payload before seller grouping.
type CartLine struct {
	ItemID   string `json:"item_id"`
	SellerID string `json:"seller_id"`
	Quantity int    `json:"quantity"`
}

// GroupBySeller splits checkout lines into per-seller groups, preserving
// the order in which sellers first appear in the cart.
func GroupBySeller(lines []CartLine) [][]CartLine {
	bySeller := make(map[string][]CartLine)
	var sellers []string

	for _, line := range lines {
		if _, ok := bySeller[line.SellerID]; !ok {
			sellers = append(sellers, line.SellerID)
		}
		bySeller[line.SellerID] = append(bySeller[line.SellerID], line)
	}

	groups := make([][]CartLine, 0, len(sellers))
	for _, sellerID := range sellers {
		groups = append(groups, bySeller[sellerID])
	}

	return groups
}
