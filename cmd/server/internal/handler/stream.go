package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/gateway"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/hub"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/market"
)

// Subscriber switches the active upstream symbol. The switch is
// asynchronous; callers get an immediate acknowledgment.
type Subscriber interface {
	RequestSubscribe(symbol string)
}

// BarReader serves the cached latest bar per symbol.
type BarReader interface {
	Latest(ctx context.Context, symbol string) ([]byte, error)
}

// StreamHandler handles the market-data surface: symbol subscription,
// viewer websocket upgrades, cached snapshots, and the REST pass-through.
type StreamHandler struct {
	sub    Subscriber
	hub    *hub.Hub
	bars   BarReader
	market market.Client
	logger *zap.Logger
}

func NewStreamHandler(sub Subscriber, h *hub.Hub, bars BarReader, mkt market.Client, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{sub: sub, hub: h, bars: bars, market: mkt, logger: logger}
}

type subscribeRequest struct {
	Symbol string `json:"symbol"`
}

// Subscribe handles POST /subscribe. The acknowledgment does not mean the
// upstream subscribe already succeeded.
func (h *StreamHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "body must be valid JSON")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "symbol must not be empty")
		return
	}

	h.sub.RequestSubscribe(symbol)
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Subscribed to " + symbol})
}

// ServeWS handles GET /ws: upgrades the connection and hands it to the hub
// as a viewer session.
func (h *StreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	gateway.NewClient(conn, h.hub, h.logger).Start()
}

// LatestBar handles GET /bars/{symbol}/latest.
func (h *StreamHandler) LatestBar(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	bar, err := h.bars.Latest(r.Context(), symbol)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if bar == nil {
		WriteError(w, http.StatusNotFound, "bar_not_found", "no cached bar for "+symbol)
		return
	}
	WriteRaw(w, http.StatusOK, bar)
}

// MarketStatus handles GET /market-status.
func (h *StreamHandler) MarketStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.market.Status(r.Context())
	if err != nil {
		WriteError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// Historical handles GET /historical/{symbol}.
func (h *StreamHandler) Historical(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	payload, err := h.market.HistoricalBars(r.Context(), symbol)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	WriteRaw(w, http.StatusOK, payload)
}
