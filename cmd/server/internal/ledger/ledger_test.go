package ledger_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/domain"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/ledger"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/testutils"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

func setup() (*ledger.Service, *testutils.MockStore) {
	store := testutils.NewMockStore()
	return ledger.New(store, nil, zap.NewNop()), store
}

func buy(qty, price float64) ledger.TradeRequest {
	return ledger.TradeRequest{UserID: "u1", Symbol: "AAPL", Quantity: qty, Price: price, Side: models.SideBuy}
}

func sell(qty, price float64) ledger.TradeRequest {
	return ledger.TradeRequest{UserID: "u1", Symbol: "AAPL", Quantity: qty, Price: price, Side: models.SideSell}
}

func TestApplyTrade_FirstBuyOpensPosition(t *testing.T) {
	svc, store := setup()

	trade, pf, err := svc.ApplyTrade(context.Background(), buy(10, 150))
	if err != nil {
		t.Fatalf("ApplyTrade failed: %v", err)
	}
	if trade.ID == "" {
		t.Error("Expected trade to get an id")
	}
	if len(pf.Positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(pf.Positions))
	}
	pos := pf.Positions[0]
	if pos.Quantity != 10 || pos.AveragePrice != 150 {
		t.Errorf("Expected 10 @ 150, got %v @ %v", pos.Quantity, pos.AveragePrice)
	}
	if store.TradeCount() != 1 {
		t.Errorf("Expected 1 persisted trade, got %d", store.TradeCount())
	}
}

func TestApplyTrade_BuyWeightedAverage(t *testing.T) {
	svc, store := setup()
	ctx := context.Background()

	if _, _, err := svc.ApplyTrade(ctx, buy(100, 10)); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	_, pf, err := svc.ApplyTrade(ctx, buy(50, 16))
	if err != nil {
		t.Fatalf("second buy failed: %v", err)
	}

	pos := pf.Positions[0]
	if pos.Quantity != 150 {
		t.Errorf("Expected quantity 150, got %v", pos.Quantity)
	}
	// (100*10 + 50*16) / 150 = 12
	if math.Abs(pos.AveragePrice-12) > 1e-9 {
		t.Errorf("Expected average price 12, got %v", pos.AveragePrice)
	}

	stored, ok := store.PositionFor("u1", "AAPL")
	if !ok {
		t.Fatal("Expected position to be persisted")
	}
	if math.Abs(stored.AveragePrice-12) > 1e-9 {
		t.Errorf("Persisted average price should be 12, got %v", stored.AveragePrice)
	}
}

func TestApplyTrade_PartialSellKeepsAverage(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	svc.ApplyTrade(ctx, buy(10, 100))
	_, pf, err := svc.ApplyTrade(ctx, sell(4, 120))
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	pos := pf.Positions[0]
	if pos.Quantity != 6 {
		t.Errorf("Expected quantity 6, got %v", pos.Quantity)
	}
	if pos.AveragePrice != 100 {
		t.Errorf("Average price must not change on sells, got %v", pos.AveragePrice)
	}
}

func TestApplyTrade_SellToZeroRemovesPosition(t *testing.T) {
	svc, store := setup()
	ctx := context.Background()

	svc.ApplyTrade(ctx, buy(10, 150))
	_, pf, err := svc.ApplyTrade(ctx, sell(10, 155))
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if len(pf.Positions) != 0 {
		t.Errorf("Expected empty position set, got %v", pf.Positions)
	}
	if _, ok := store.PositionFor("u1", "AAPL"); ok {
		t.Error("Position should be deleted from the store, not kept as a zero row")
	}
	if store.TradeCount() != 2 {
		t.Errorf("Both trades should be recorded, got %d", store.TradeCount())
	}
}

func TestApplyTrade_OverSellClampsAndRemoves(t *testing.T) {
	svc, store := setup()
	ctx := context.Background()

	svc.ApplyTrade(ctx, buy(5, 100))
	trade, pf, err := svc.ApplyTrade(ctx, sell(10, 100))
	if err != nil {
		t.Fatalf("over-sell should be accepted, got: %v", err)
	}
	if trade == nil {
		t.Fatal("over-sell should still produce a trade record")
	}
	if len(pf.Positions) != 0 {
		t.Errorf("Over-sell should clamp to zero and remove the position, got %v", pf.Positions)
	}
	if store.TradeCount() != 2 {
		t.Errorf("Expected 2 persisted trades, got %d", store.TradeCount())
	}
}

func TestApplyTrade_SellWithoutPositionRejected(t *testing.T) {
	svc, store := setup()

	_, _, err := svc.ApplyTrade(context.Background(), sell(10, 100))
	if !errors.Is(err, domain.ErrPositionNotFound) {
		t.Fatalf("Expected ErrPositionNotFound, got %v", err)
	}
	if store.TradeCount() != 0 {
		t.Errorf("Rejected sell must not write a trade record, got %d", store.TradeCount())
	}
}

func TestApplyTrade_ValidationHasZeroSideEffects(t *testing.T) {
	cases := []struct {
		name string
		req  ledger.TradeRequest
	}{
		{"zero quantity", ledger.TradeRequest{UserID: "u1", Symbol: "AAPL", Quantity: 0, Price: 10, Side: models.SideBuy}},
		{"negative quantity", ledger.TradeRequest{UserID: "u1", Symbol: "AAPL", Quantity: -5, Price: 10, Side: models.SideBuy}},
		{"zero price", ledger.TradeRequest{UserID: "u1", Symbol: "AAPL", Quantity: 5, Price: 0, Side: models.SideBuy}},
		{"empty user", ledger.TradeRequest{UserID: "", Symbol: "AAPL", Quantity: 5, Price: 10, Side: models.SideBuy}},
		{"empty symbol", ledger.TradeRequest{UserID: "u1", Symbol: "", Quantity: 5, Price: 10, Side: models.SideBuy}},
		{"bad side", ledger.TradeRequest{UserID: "u1", Symbol: "AAPL", Quantity: 5, Price: 10, Side: "Hold"}},
		{"NaN price", ledger.TradeRequest{UserID: "u1", Symbol: "AAPL", Quantity: 5, Price: math.NaN(), Side: models.SideBuy}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := setup()
			_, _, err := svc.ApplyTrade(context.Background(), tc.req)

			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if store.TradeCount() != 0 {
				t.Error("Invalid trade must not write a trade record")
			}
			if _, err := svc.Portfolio(context.Background(), "u1"); !errors.Is(err, domain.ErrPortfolioNotFound) {
				t.Error("Invalid trade must not create a portfolio")
			}
		})
	}
}

func TestApplyTrade_PartialWriteSurfacedDistinctly(t *testing.T) {
	store := testutils.NewMockStore()
	store.FailUpsert = errors.New("connection reset")
	svc := ledger.New(store, nil, zap.NewNop())

	trade, _, err := svc.ApplyTrade(context.Background(), buy(10, 100))

	var pErr *domain.PartialWriteError
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected PartialWriteError, got %v", err)
	}
	if trade == nil || pErr.TradeID != trade.ID {
		t.Errorf("PartialWriteError should carry the persisted trade id")
	}
	if store.TradeCount() != 1 {
		t.Errorf("Trade record should have been written before the failure, got %d", store.TradeCount())
	}
}

func TestApplyTrade_InsertFailureIsNotPartial(t *testing.T) {
	store := testutils.NewMockStore()
	store.FailInsertTrade = errors.New("disk full")
	svc := ledger.New(store, nil, zap.NewNop())

	_, _, err := svc.ApplyTrade(context.Background(), buy(10, 100))
	if err == nil {
		t.Fatal("Expected an error")
	}
	var pErr *domain.PartialWriteError
	if errors.As(err, &pErr) {
		t.Error("A failed trade insert must not be reported as a partial write")
	}
	if _, err := svc.Portfolio(context.Background(), "u1"); !errors.Is(err, domain.ErrPortfolioNotFound) {
		t.Error("No portfolio should exist when the trade insert failed")
	}
}

func TestApplyTrade_JournalBestEffort(t *testing.T) {
	store := testutils.NewMockStore()
	journal := &testutils.MockJournal{}
	svc := ledger.New(store, journal, zap.NewNop())
	ctx := context.Background()

	if _, _, err := svc.ApplyTrade(ctx, buy(10, 100)); err != nil {
		t.Fatalf("ApplyTrade failed: %v", err)
	}
	if len(journal.Tr) != 1 {
		t.Errorf("Expected 1 journaled trade, got %d", len(journal.Tr))
	}

	// A journal failure must not fail the trade.
	journal.FailErr = errors.New("broker down")
	if _, _, err := svc.ApplyTrade(ctx, buy(1, 100)); err != nil {
		t.Errorf("Journal failure should not surface to the caller: %v", err)
	}
}

func TestPortfolio_UnknownUserIsNotFound(t *testing.T) {
	svc, _ := setup()

	_, err := svc.Portfolio(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrPortfolioNotFound) {
		t.Fatalf("Expected ErrPortfolioNotFound, got %v", err)
	}
}
