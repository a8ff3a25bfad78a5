package repository

import (
	"context"

	"github.com/shubham-shewale/tradestream/pkg/models"
)

// Store is the durable record store behind the position ledger and the
// user endpoints. Trade records are append-only; positions are mutated
// through upsert/delete only.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	InsertTrade(ctx context.Context, t *models.Trade) error
	TradesByUser(ctx context.Context, userID string) ([]models.Trade, error)

	// Portfolio returns domain.ErrPortfolioNotFound for a user that has
	// never traded.
	Portfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	EnsurePortfolio(ctx context.Context, userID string) error
	UpsertPosition(ctx context.Context, userID string, p models.Position) error
	DeletePosition(ctx context.Context, userID, symbol string) error
}
