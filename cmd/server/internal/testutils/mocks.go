package testutils

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/domain"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

// MockSession simulates a connected viewer session
type MockSession struct {
	IDVal    string
	Accept   bool // when false, Send reports failure like a full buffer
	Messages []string
	Closed   bool
	Mu       sync.Mutex
}

func NewMockSession(id string) *MockSession {
	return &MockSession{IDVal: id, Accept: true}
}

func (m *MockSession) ID() string { return m.IDVal }

func (m *MockSession) Send(b []byte) bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if !m.Accept {
		return false
	}
	m.Messages = append(m.Messages, string(b))
	return true
}

func (m *MockSession) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockSession) Received() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.Messages))
	copy(out, m.Messages)
	return out
}

// MockStore simulates the record store, with per-write failure injection
type MockStore struct {
	Mu         sync.Mutex
	Users      map[string]*models.User // by email
	Trades     []models.Trade
	Portfolios map[string]bool
	Positions  map[string]map[string]models.Position // userID -> symbol -> position

	FailInsertTrade error
	FailEnsure      error
	FailUpsert      error
	FailDelete      error
}

func NewMockStore() *MockStore {
	return &MockStore{
		Users:      make(map[string]*models.User),
		Portfolios: make(map[string]bool),
		Positions:  make(map[string]map[string]models.Position),
	}
}

func (m *MockStore) CreateUser(ctx context.Context, u *models.User) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Users[u.Email] = u
	return nil
}

func (m *MockStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	u, ok := m.Users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *MockStore) InsertTrade(ctx context.Context, t *models.Trade) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailInsertTrade != nil {
		return m.FailInsertTrade
	}
	m.Trades = append(m.Trades, *t)
	return nil
}

func (m *MockStore) TradesByUser(ctx context.Context, userID string) ([]models.Trade, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []models.Trade
	for _, t := range m.Trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockStore) Portfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if !m.Portfolios[userID] {
		return nil, domain.ErrPortfolioNotFound
	}
	pf := &models.Portfolio{UserID: userID, Positions: []models.Position{}}
	for _, pos := range m.Positions[userID] {
		pf.Positions = append(pf.Positions, pos)
	}
	sort.Slice(pf.Positions, func(i, j int) bool {
		return pf.Positions[i].Symbol < pf.Positions[j].Symbol
	})
	return pf, nil
}

func (m *MockStore) EnsurePortfolio(ctx context.Context, userID string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailEnsure != nil {
		return m.FailEnsure
	}
	m.Portfolios[userID] = true
	return nil
}

func (m *MockStore) UpsertPosition(ctx context.Context, userID string, p models.Position) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailUpsert != nil {
		return m.FailUpsert
	}
	if m.Positions[userID] == nil {
		m.Positions[userID] = make(map[string]models.Position)
	}
	m.Positions[userID][p.Symbol] = p
	return nil
}

func (m *MockStore) DeletePosition(ctx context.Context, userID, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	delete(m.Positions[userID], symbol)
	return nil
}

// TradeCount returns the number of persisted trade records.
func (m *MockStore) TradeCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Trades)
}

// PositionFor returns the stored position for a user and symbol.
func (m *MockStore) PositionFor(userID, symbol string) (models.Position, bool) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p, ok := m.Positions[userID][symbol]
	return p, ok
}

// MockJournal records published trades
type MockJournal struct {
	Mu      sync.Mutex
	Tr      []models.Trade
	FailErr error
}

func (m *MockJournal) Publish(ctx context.Context, t *models.Trade) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailErr != nil {
		return m.FailErr
	}
	m.Tr = append(m.Tr, *t)
	return nil
}

// MockSink collects bars delivered by the feed manager
type MockSink struct {
	Mu   sync.Mutex
	Bars []string
	Ch   chan string
}

func NewMockSink() *MockSink {
	return &MockSink{Ch: make(chan string, 64)}
}

func (m *MockSink) Broadcast(bar []byte) {
	m.Mu.Lock()
	m.Bars = append(m.Bars, string(bar))
	m.Mu.Unlock()
	select {
	case m.Ch <- string(bar):
	default:
	}
}

func (m *MockSink) Received() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.Bars))
	copy(out, m.Bars)
	return out
}

// FakeFeedConn is a scripted upstream connection for feed manager tests.
// Inbound frames are pushed through In; outbound JSON writes are recorded
// and surfaced one at a time via NextWrite.
type FakeFeedConn struct {
	In chan []byte

	mu      sync.Mutex
	writes  []string
	writeCh chan string

	closeOnce sync.Once
	closed    chan struct{}
}

func NewFakeFeedConn() *FakeFeedConn {
	return &FakeFeedConn{
		In:      make(chan []byte, 16),
		writeCh: make(chan string, 16),
		closed:  make(chan struct{}),
	}
}

func (c *FakeFeedConn) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.writes = append(c.writes, string(b))
	c.mu.Unlock()
	select {
	case c.writeCh <- string(b):
	default:
	}
	return nil
}

func (c *FakeFeedConn) ReadMessage() (int, []byte, error) {
	select {
	case raw := <-c.In:
		return 1, raw, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *FakeFeedConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// NextWrite waits for the next outbound frame, or reports false on timeout.
func (c *FakeFeedConn) NextWrite(timeout time.Duration) (string, bool) {
	select {
	case w := <-c.writeCh:
		return w, true
	case <-time.After(timeout):
		return "", false
	}
}

func (c *FakeFeedConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	copy(out, c.writes)
	return out
}
