// Package ledger folds buy/sell trade events into per-user portfolios
// under weighted-average-cost accounting.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/domain"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/repository"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

// Journal receives every accepted trade after it has been persisted.
// Publishing is best effort and never fails the trade.
type Journal interface {
	Publish(ctx context.Context, t *models.Trade) error
}

// TradeRequest is the intake shape for ApplyTrade.
type TradeRequest struct {
	UserID   string      `json:"userId"`
	Symbol   string      `json:"symbol"`
	Quantity float64     `json:"quantity"`
	Price    float64     `json:"price"`
	Side     models.Side `json:"side"`
}

// Service is the position ledger. Updates for a given user are serialized
// with a per-user mutex; different users proceed concurrently.
type Service struct {
	store   repository.Store
	journal Journal // nil disables journal publishing
	logger  *zap.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func New(store repository.Store, journal Journal, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		journal:   journal,
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// ApplyTrade validates the request, appends the trade record, and applies
// it to the user's portfolio. Validation failures produce zero writes.
// Sell policy: selling with no open position for the symbol is rejected;
// selling more than held clamps the position to zero and removes it.
// If the portfolio update fails after the trade record was written, the
// error is a *domain.PartialWriteError carrying the persisted trade id.
func (s *Service) ApplyTrade(ctx context.Context, req TradeRequest) (*models.Trade, *models.Portfolio, error) {
	if err := validate(req); err != nil {
		return nil, nil, err
	}

	lock := s.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	pf, err := s.store.Portfolio(ctx, req.UserID)
	if errors.Is(err, domain.ErrPortfolioNotFound) {
		pf = &models.Portfolio{UserID: req.UserID, Positions: []models.Position{}}
	} else if err != nil {
		return nil, nil, fmt.Errorf("load portfolio: %w", err)
	}

	idx := -1
	for i := range pf.Positions {
		if pf.Positions[i].Symbol == req.Symbol {
			idx = i
			break
		}
	}

	if req.Side == models.SideSell && idx < 0 {
		return nil, nil, domain.ErrPositionNotFound
	}

	trade := &models.Trade{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Side:      req.Side,
		Timestamp: time.Now().UTC(),
	}

	if err := s.store.InsertTrade(ctx, trade); err != nil {
		return nil, nil, fmt.Errorf("insert trade: %w", err)
	}

	if err := s.applyToPortfolio(ctx, pf, idx, req); err != nil {
		return trade, nil, &domain.PartialWriteError{TradeID: trade.ID, Err: err}
	}

	if s.journal != nil {
		if err := s.journal.Publish(ctx, trade); err != nil {
			s.logger.Warn("trade journal publish failed",
				zap.String("trade_id", trade.ID), zap.Error(err))
		}
	}

	s.logger.Info("trade applied",
		zap.String("trade_id", trade.ID),
		zap.String("user_id", req.UserID),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("price", req.Price))

	return trade, pf, nil
}

// applyToPortfolio runs the position update writes and mirrors the result
// into pf so the caller gets a consistent snapshot. idx is the position's
// index in pf.Positions, or -1 when absent.
func (s *Service) applyToPortfolio(ctx context.Context, pf *models.Portfolio, idx int, req TradeRequest) error {
	if err := s.store.EnsurePortfolio(ctx, req.UserID); err != nil {
		return fmt.Errorf("ensure portfolio: %w", err)
	}

	if idx < 0 {
		// First buy of this symbol opens a fresh position.
		pos := models.Position{Symbol: req.Symbol, Quantity: req.Quantity, AveragePrice: req.Price}
		if err := s.store.UpsertPosition(ctx, req.UserID, pos); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
		pf.Positions = append(pf.Positions, pos)
		return nil
	}

	pos := pf.Positions[idx]
	switch req.Side {
	case models.SideBuy:
		totalCost := pos.AveragePrice*pos.Quantity + req.Price*req.Quantity
		pos.Quantity += req.Quantity
		pos.AveragePrice = totalCost / pos.Quantity
		if err := s.store.UpsertPosition(ctx, req.UserID, pos); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
		pf.Positions[idx] = pos

	case models.SideSell:
		pos.Quantity -= req.Quantity
		if pos.Quantity <= 0 {
			// Clamp: an over-sell empties the position rather than going
			// negative, and an empty position is removed outright.
			if err := s.store.DeletePosition(ctx, req.UserID, req.Symbol); err != nil {
				return fmt.Errorf("delete position: %w", err)
			}
			pf.Positions = append(pf.Positions[:idx], pf.Positions[idx+1:]...)
		} else {
			// Average price is unchanged by sells; realized gains are out
			// of scope.
			if err := s.store.UpsertPosition(ctx, req.UserID, pos); err != nil {
				return fmt.Errorf("upsert position: %w", err)
			}
			pf.Positions[idx] = pos
		}
	}
	return nil
}

// Portfolio returns the user's portfolio, or domain.ErrPortfolioNotFound
// for a user that has never traded.
func (s *Service) Portfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	return s.store.Portfolio(ctx, userID)
}

// Transactions returns the user's trade history in chronological order.
func (s *Service) Transactions(ctx context.Context, userID string) ([]models.Trade, error) {
	return s.store.TradesByUser(ctx, userID)
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

func validate(req TradeRequest) error {
	if req.UserID == "" {
		return &domain.ValidationError{Message: "userId must not be empty"}
	}
	if req.Symbol == "" {
		return &domain.ValidationError{Message: "symbol must not be empty"}
	}
	if req.Quantity <= 0 || math.IsNaN(req.Quantity) || math.IsInf(req.Quantity, 0) {
		return &domain.ValidationError{Message: "quantity must be a positive number"}
	}
	if req.Price <= 0 || math.IsNaN(req.Price) || math.IsInf(req.Price, 0) {
		return &domain.ValidationError{Message: "price must be a positive number"}
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return &domain.ValidationError{Message: "side must be Buy or Sell"}
	}
	return nil
}
