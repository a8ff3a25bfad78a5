// Package feed owns the single upstream market-data connection: the
// authentication handshake, the reconnect lifecycle, and the one-at-a-time
// symbol subscription.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/pkg/config"
)

// Status of the upstream connection.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Conn is the subset of the websocket connection the manager needs.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Dialer opens a connection to the upstream feed.
type Dialer func(ctx context.Context, url string) (Conn, error)

// GorillaDialer dials the feed with gorilla/websocket.
func GorillaDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Sink receives every bar the feed delivers, in arrival order.
type Sink interface {
	Broadcast(bar []byte)
}

// BarCache stores the latest bar per symbol. Optional.
type BarCache interface {
	SetLatest(ctx context.Context, symbol string, raw []byte) error
}

// Manager is the upstream connection state machine. A single goroutine
// (Run) owns the connection; symbol requests arrive through an in-order
// command queue, which serializes unsubscribe/subscribe switches.
type Manager struct {
	cfg    config.FeedConfig
	logger *zap.Logger
	sink   Sink
	cache  BarCache
	dial   Dialer

	commands chan string

	mu      sync.RWMutex
	status  Status
	current string // symbol subscribed on the live connection
	want    string // symbol the caller asked for
}

func NewManager(cfg config.FeedConfig, sink Sink, cache BarCache, dial Dialer, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		sink:     sink,
		cache:    cache,
		dial:     dial,
		commands: make(chan string, 16),
	}
}

// RequestSubscribe asks the manager to switch the active symbol. It never
// blocks: the switch is asynchronous and best effort from the caller's
// perspective.
func (m *Manager) RequestSubscribe(symbol string) {
	select {
	case m.commands <- symbol:
	default:
		m.logger.Warn("subscribe queue full, dropping request", zap.String("symbol", symbol))
	}
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// CurrentSymbol returns the symbol subscribed on the live connection, or
// "" when none is.
func (m *Manager) CurrentSymbol() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Run connects and reconnects until ctx is cancelled. Reconnects back off
// exponentially from the configured delay up to the configured cap; the
// backoff resets after a successful authentication.
func (m *Manager) Run(ctx context.Context) {
	backoff := m.cfg.ReconnectDelay
	for {
		authed, err := m.session(ctx)
		m.setStatus(StatusDisconnected)
		m.setCurrent("")
		if ctx.Err() != nil {
			return
		}
		if authed {
			backoff = m.cfg.ReconnectDelay
		}
		m.logger.Warn("feed connection lost, reconnecting",
			zap.Error(err), zap.Duration("backoff", backoff))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > m.cfg.MaxReconnectDelay {
			backoff = m.cfg.MaxReconnectDelay
		}
	}
}

// session runs one connection lifecycle: dial, authenticate, dispatch
// inbound messages and subscription commands until the transport fails or
// ctx is cancelled. Reports whether authentication succeeded.
func (m *Manager) session(ctx context.Context) (bool, error) {
	m.setStatus(StatusConnecting)

	conn, err := m.dial(ctx, m.cfg.StreamURL)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Authenticated is only entered on the explicit success ack, never on
	// the transport opening alone.
	if err := conn.WriteJSON(authRequest{Action: "auth", Key: m.cfg.Key, Secret: m.cfg.Secret}); err != nil {
		return false, err
	}

	msgs := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				errs <- err
				return
			}
			select {
			case msgs <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()

	retry := time.NewTimer(time.Hour)
	if !retry.Stop() {
		<-retry.C
	}
	defer retry.Stop()

	authed := false
	for {
		select {
		case <-ctx.Done():
			return authed, ctx.Err()
		case err := <-errs:
			return authed, err
		case raw := <-msgs:
			if m.handleMessage(conn, retry, raw) {
				authed = true
			}
		case symbol := <-m.commands:
			m.setWant(symbol)
			m.trySubscribe(conn, retry)
		case <-retry.C:
			m.trySubscribe(conn, retry)
		}
	}
}

// handleMessage routes one inbound envelope: the auth success ack flips the
// status to Authenticated, bars envelopes are fanned out, anything else is
// ignored. Reports whether this message was the auth ack.
func (m *Manager) handleMessage(conn Conn, retry *time.Timer, raw []byte) bool {
	var ctrl []controlMessage
	if err := json.Unmarshal(raw, &ctrl); err == nil {
		if len(ctrl) > 0 && ctrl[0].T == "success" && ctrl[0].Msg == "authenticated" {
			m.setStatus(StatusAuthenticated)
			m.logger.Info("feed authenticated")
			// Apply the wanted symbol now; this also restores the
			// subscription after a reconnect.
			m.trySubscribe(conn, retry)
			return true
		}
		return false
	}

	var env barsEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Bars) > 0 {
		for _, bar := range env.Bars {
			m.sink.Broadcast(bar)
			m.cacheLatest(bar)
		}
		return false
	}

	m.logger.Debug("ignoring unrecognized feed message", zap.ByteString("raw", raw))
	return false
}

// trySubscribe reconciles the wanted symbol against the live subscription.
// When unauthenticated the attempt is deferred and retried; there is no
// retry cap, a permanently-unauthenticated upstream retries forever.
func (m *Manager) trySubscribe(conn Conn, retry *time.Timer) {
	want := m.wantSymbol()
	if want == "" {
		return
	}

	if m.Status() != StatusAuthenticated {
		m.logger.Info("feed not authenticated yet, retrying subscribe",
			zap.String("symbol", want), zap.Duration("delay", m.cfg.SubscribeRetry))
		retry.Reset(m.cfg.SubscribeRetry)
		return
	}

	current := m.CurrentSymbol()
	if want == current {
		// Already subscribed; skip the redundant round trip.
		return
	}

	if current != "" {
		// Unsubscribe-before-subscribe keeps at most one upstream
		// subscription. A failed unsubscribe is logged and not rolled
		// back; the switch proceeds regardless.
		if err := conn.WriteJSON(subscriptionRequest{Action: "unsubscribe", Bars: []string{current}}); err != nil {
			m.logger.Error("unsubscribe send failed", zap.String("symbol", current), zap.Error(err))
		} else {
			m.logger.Info("unsubscribed", zap.String("symbol", current))
		}
	}

	if err := conn.WriteJSON(subscriptionRequest{Action: "subscribe", Bars: []string{want}}); err != nil {
		m.logger.Error("subscribe send failed", zap.String("symbol", want), zap.Error(err))
		retry.Reset(m.cfg.SubscribeRetry)
		return
	}
	m.setCurrent(want)
	m.logger.Info("subscribed", zap.String("symbol", want))
}

func (m *Manager) cacheLatest(bar []byte) {
	if m.cache == nil {
		return
	}
	var key struct {
		Symbol string `json:"S"`
	}
	if err := json.Unmarshal(bar, &key); err != nil || key.Symbol == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.cache.SetLatest(ctx, key.Symbol, bar); err != nil {
		m.logger.Warn("latest bar cache write failed", zap.String("symbol", key.Symbol), zap.Error(err))
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) setCurrent(symbol string) {
	m.mu.Lock()
	m.current = symbol
	m.mu.Unlock()
}

func (m *Manager) setWant(symbol string) {
	m.mu.Lock()
	m.want = symbol
	m.mu.Unlock()
}

func (m *Manager) wantSymbol() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.want
}
