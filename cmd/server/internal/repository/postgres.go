package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/domain"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

// Compile-time check to ensure Postgres implements Store
var _ Store = (*Postgres)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS trades (
	id       TEXT PRIMARY KEY,
	user_id  TEXT NOT NULL,
	symbol   TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	price    DOUBLE PRECISION NOT NULL,
	side     TEXT NOT NULL,
	ts       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_user_idx ON trades (user_id, ts);
CREATE TABLE IF NOT EXISTS portfolios (
	user_id    TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS positions (
	user_id   TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	quantity  DOUBLE PRECISION NOT NULL,
	avg_price DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (user_id, symbol)
);
`

// Postgres is the pgx-backed Store implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the schema if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	_, err := p.pool.Exec(ctx,
		"INSERT INTO users (id, email, password, created_at) VALUES ($1, $2, $3, $4)",
		u.ID, u.Email, u.Password, u.CreatedAt)
	return err
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := p.pool.QueryRow(ctx,
		"SELECT id, email, password, created_at FROM users WHERE email = $1", email).
		Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) InsertTrade(ctx context.Context, t *models.Trade) error {
	_, err := p.pool.Exec(ctx,
		"INSERT INTO trades (id, user_id, symbol, quantity, price, side, ts) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		t.ID, t.UserID, t.Symbol, t.Quantity, t.Price, string(t.Side), t.Timestamp)
	return err
}

func (p *Postgres) TradesByUser(ctx context.Context, userID string) ([]models.Trade, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT id, user_id, symbol, quantity, price, side, ts FROM trades WHERE user_id = $1 ORDER BY ts",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Quantity, &t.Price, &side, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Side = models.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (p *Postgres) Portfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	var one int
	err := p.pool.QueryRow(ctx,
		"SELECT 1 FROM portfolios WHERE user_id = $1", userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx,
		"SELECT symbol, quantity, avg_price FROM positions WHERE user_id = $1 ORDER BY symbol", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pf := &models.Portfolio{UserID: userID, Positions: []models.Position{}}
	for rows.Next() {
		var pos models.Position
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &pos.AveragePrice); err != nil {
			return nil, err
		}
		pf.Positions = append(pf.Positions, pos)
	}
	return pf, rows.Err()
}

func (p *Postgres) EnsurePortfolio(ctx context.Context, userID string) error {
	_, err := p.pool.Exec(ctx,
		"INSERT INTO portfolios (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	return err
}

func (p *Postgres) UpsertPosition(ctx context.Context, userID string, pos models.Position) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO positions (user_id, symbol, quantity, avg_price) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, symbol) DO UPDATE SET quantity = $3, avg_price = $4`,
		userID, pos.Symbol, pos.Quantity, pos.AveragePrice)
	return err
}

func (p *Postgres) DeletePosition(ctx context.Context, userID, symbol string) error {
	_, err := p.pool.Exec(ctx,
		"DELETE FROM positions WHERE user_id = $1 AND symbol = $2", userID, symbol)
	return err
}
