package domain

import "testing"

func TestOrderStatus_CanTransition(t *testing.T) {
	cases := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to paid", OrderStatusPending, OrderStatusPaid, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"pending to shipped skips paid", OrderStatusPending, OrderStatusShipped, false},
		{"paid to shipped", OrderStatusPaid, OrderStatusShipped, true},
		{"paid to cancelled rejected", OrderStatusPaid, OrderStatusCancelled, false},
		{"shipped to completed", OrderStatusShipped, OrderStatusCompleted, true},
		{"shipped to cancelled rejected", OrderStatusShipped, OrderStatusCancelled, false},
		{"completed is terminal", OrderStatusCompleted, OrderStatusCancelled, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusPaid, false},
		{"no backward edge", OrderStatusShipped, OrderStatusPaid, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.want {
				t.Errorf("CanTransition(%v -> %v) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestGroupBySeller(t *testing.T) {
	t.Run("splits a mixed cart into per-seller groups", func(t *testing.T) {
		lines := []CartLine{
			{ItemID: "i1", SellerID: "s1", Quantity: 2},
			{ItemID: "i2", SellerID: "s2", Quantity: 1},
			{ItemID: "i3", SellerID: "s1", Quantity: 1},
		}

		groups := GroupBySeller(lines)

		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		if len(groups[0]) != 2 || groups[0][0].SellerID != "s1" {
			t.Errorf("expected first group to hold both s1 lines, got %+v", groups[0])
		}
		if len(groups[1]) != 1 || groups[1][0].ItemID != "i2" {
			t.Errorf("expected second group to hold the s2 line, got %+v", groups[1])
		}
	})

	t.Run("preserves first-seen seller order", func(t *testing.T) {
		lines := []CartLine{
			{ItemID: "i1", SellerID: "s9", Quantity: 1},
			{ItemID: "i2", SellerID: "s3", Quantity: 1},
			{ItemID: "i3", SellerID: "s9", Quantity: 1},
		}

		groups := GroupBySeller(lines)
		if groups[0][0].SellerID != "s9" || groups[1][0].SellerID != "s3" {
			t.Errorf("unexpected group order: %+v", groups)
		}
	})

	t.Run("empty cart yields no groups", func(t *testing.T) {
		if groups := GroupBySeller(nil); len(groups) != 0 {
			t.Errorf("expected no groups, got %d", len(groups))
		}
	})
}
