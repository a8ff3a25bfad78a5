package models

import "time"

// Side of a trade.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Trade is an immutable, append-only record of an accepted trade request.
type Trade struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Side      Side      `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// Position is one holding inside a portfolio. AveragePrice is only
// meaningful while Quantity > 0; a position whose quantity reaches zero is
// removed rather than kept as a zero row.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"averagePrice"`
}

// Portfolio is the set of a user's open positions, keyed by symbol.
type Portfolio struct {
	UserID    string     `json:"userId"`
	Positions []Position `json:"positions"`
}

// User is a registered account. Credentials are stored as-is; hardening is
// out of scope for this service.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
