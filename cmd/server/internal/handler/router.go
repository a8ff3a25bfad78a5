package handler

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NewRouter creates a chi router with all routes registered, request
// logging, and Content-Type validation for JSON endpoints.
func NewRouter(
	tradeH *TradeHandler,
	userH *UserHandler,
	streamH *StreamHandler,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	// Viewer stream and subscription control.
	r.Get("/ws", streamH.ServeWS)
	r.With(contentTypeJSON).Post("/subscribe", streamH.Subscribe)
	r.Get("/bars/{symbol}/latest", streamH.LatestBar)

	// Trading and portfolio.
	r.With(contentTypeJSON).Post("/trade", tradeH.SubmitTrade)
	r.Get("/portfolio/{userId}", tradeH.GetPortfolio)
	r.Get("/transactions/{userId}", tradeH.GetTransactions)

	// Accounts.
	r.With(contentTypeJSON).Post("/register", userH.Register)
	r.With(contentTypeJSON).Post("/login", userH.Login)

	// Upstream REST pass-through.
	r.Get("/market-status", streamH.MarketStatus)
	r.Get("/historical/{symbol}", streamH.Historical)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade reach the underlying connection
// through the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// contentTypeJSON validates Content-Type on JSON POST endpoints before the
// handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(ct, "application/json") {
			WriteError(w, http.StatusBadRequest, "invalid_request",
				"Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}
