package models

// All lists every persisted model; sqlite-backed tests migrate with it.
func All() []any {
	return []any{
		&Shop{},
		&Customer{},
		&Session{},
		&Wishlist{},
		&WishlistItem{},
		&MarketCurrencyRule{},
		&Submission{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
