// Package market wraps the upstream REST API: the market clock and the
// daily historical bars pass-through.
package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/repository"
	"github.com/shubham-shewale/tradestream/pkg/config"
)

// Client is the handler-facing surface, split out so tests can stub it.
type Client interface {
	Status(ctx context.Context) (*MarketStatus, error)
	HistoricalBars(ctx context.Context, symbol string) ([]byte, error)
}

type MarketStatus struct {
	IsOpen bool `json:"is_open"`
}

const historyYears = 3

// Alpaca talks to the trading and market-data REST APIs, caching
// historical responses in redis.
type Alpaca struct {
	trading *alpaca.Client
	data    *marketdata.Client
	cache   *repository.BarCache // nil disables caching
	logger  *zap.Logger
}

var _ Client = (*Alpaca)(nil)

func NewAlpaca(cfg config.FeedConfig, cache *repository.BarCache, logger *zap.Logger) *Alpaca {
	return &Alpaca{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.Key,
			APISecret: cfg.Secret,
			BaseURL:   cfg.RestURL,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.Key,
			APISecret: cfg.Secret,
			BaseURL:   cfg.DataURL,
		}),
		cache:  cache,
		logger: logger,
	}
}

// Status reports whether the market is currently open.
func (a *Alpaca) Status(ctx context.Context) (*MarketStatus, error) {
	clock, err := a.trading.GetClock()
	if err != nil {
		return nil, err
	}
	return &MarketStatus{IsOpen: clock.IsOpen}, nil
}

// historicalResponse is the JSON shape served to callers.
type historicalResponse struct {
	Symbol string           `json:"symbol"`
	Bars   []marketdata.Bar `json:"bars"`
}

// HistoricalBars returns up to three years of daily bars for a symbol,
// serving from the cache when a recent response exists.
func (a *Alpaca) HistoricalBars(ctx context.Context, symbol string) ([]byte, error) {
	if a.cache != nil {
		cached, err := a.cache.History(ctx, symbol)
		if err != nil {
			a.logger.Warn("historical cache read failed", zap.String("symbol", symbol), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	end := time.Now()
	start := end.AddDate(-historyYears, 0, 0)

	bars, err := a.data.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end,
		TotalLimit: 1000,
		Adjustment: marketdata.Raw,
		Feed:       marketdata.IEX,
		Sort:       marketdata.SortAsc,
	})
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(historicalResponse{Symbol: symbol, Bars: bars})
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.SetHistory(ctx, symbol, payload); err != nil {
			a.logger.Warn("historical cache write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return payload, nil
}
