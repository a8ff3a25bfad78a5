package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/domain"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/ledger"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

// Ledger is the position-ledger surface the trade endpoints use.
type Ledger interface {
	ApplyTrade(ctx context.Context, req ledger.TradeRequest) (*models.Trade, *models.Portfolio, error)
	Portfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	Transactions(ctx context.Context, userID string) ([]models.Trade, error)
}

// TradeHandler handles trade intake and portfolio queries.
type TradeHandler struct {
	ledger Ledger
}

func NewTradeHandler(l Ledger) *TradeHandler {
	return &TradeHandler{ledger: l}
}

// SubmitTrade handles POST /trade.
func (h *TradeHandler) SubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req ledger.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "body must be valid JSON")
		return
	}

	trade, _, err := h.ledger.ApplyTrade(r.Context(), req)
	if err != nil {
		mapTradeError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, trade)
}

// GetPortfolio handles GET /portfolio/{userId}.
func (h *TradeHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	pf, err := h.ledger.Portfolio(r.Context(), userID)
	if errors.Is(err, domain.ErrPortfolioNotFound) {
		WriteError(w, http.StatusNotFound, "portfolio_not_found", "no portfolio for user "+userID)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, pf)
}

// GetTransactions handles GET /transactions/{userId}.
func (h *TradeHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	trades, err := h.ledger.Transactions(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}

	WriteJSON(w, http.StatusOK, trades)
}

// mapTradeError translates ledger errors to HTTP responses. A persistence
// failure after the trade record was written gets its own error code so
// the client knows the system is in an uncertain state.
func mapTradeError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", vErr.Message)
		return
	}
	if errors.Is(err, domain.ErrPositionNotFound) {
		WriteError(w, http.StatusUnprocessableEntity, "position_not_found",
			"cannot sell a symbol with no open position")
		return
	}
	var pErr *domain.PartialWriteError
	if errors.As(err, &pErr) {
		WriteJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "portfolio_update_failed",
			Message: "trade was recorded but the portfolio update failed",
			TradeID: pErr.TradeID,
		})
		return
	}
	WriteError(w, http.StatusInternalServerError, "trade_not_written", err.Error())
}
