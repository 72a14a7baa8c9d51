// Package orders records provider webhook deliveries so each order is
// processed once.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by Get for unknown order ids.
var ErrNotFound = errors.New("order not found")

// Order is one webhook delivery.
type Order struct {
	ID         string        `db:"id"`
	Status     string        `db:"status"`
	CreatedAt  string        `db:"created_at"`
	IntentID   string        `db:"intent_id"`
	UserID     string        `db:"user_id"`
	TelegramID sql.NullInt64 `db:"telegram_id"`
	Payload    string        `db:"payload"`
	ReceivedAt time.Time     `db:"received_at"`
}

// Ledger stores orders idempotently.
type Ledger interface {
	// Record stores o and reports whether it was new.
	Record(ctx context.Context, o Order) (bool, error)
	Get(ctx context.Context, id string) (Order, error)
	Count(ctx context.Context) (int, error)
}

const (
	insertOrder = `
INSERT INTO webhook_orders (id, status, created_at, intent_id, user_id, telegram_id, payload, received_at)
VALUES (:id, :status, :created_at, :intent_id, :user_id, :telegram_id, :payload, :received_at)
ON CONFLICT (id) DO NOTHING`

	selectOrder = `
SELECT id, status, created_at, intent_id, user_id, telegram_id, payload, received_at
FROM webhook_orders
WHERE id = $1`

	countOrders = `SELECT count(*) FROM webhook_orders`
)

// SQL is a postgres backed Ledger.
type SQL struct {
	db *sqlx.DB
}

var _ Ledger = (*SQL)(nil)

// NewSQL wraps an open connection. The schema comes from the migrations directory.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Record(ctx context.Context, o Order) (bool, error) {
	o = normalize(o)
	res, err := s.db.NamedExecContext(ctx, insertOrder, o)
	if err != nil {
		return false, fmt.Errorf("record order %s: %w", o.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record order %s: %w", o.ID, err)
	}
	return n == 1, nil
}

func (s *SQL) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	err := s.db.GetContext(ctx, &o, selectOrder, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (s *SQL) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, countOrders); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Memory is the Ledger used when no database is configured.
type Memory struct {
	mu     sync.Mutex
	orders map[string]Order
}

var _ Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]Order)}
}

func (m *Memory) Record(_ context.Context, o Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.orders[o.ID]; dup {
		return false, nil
	}
	m.orders[o.ID] = normalize(o)
	return true, nil
}

func (m *Memory) Get(_ context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders), nil
}

func normalize(o Order) Order {
	if o.ReceivedAt.IsZero() {
		o.ReceivedAt = time.Now().UTC()
	}
	if o.Payload == "" {
		o.Payload = "{}"
	}
	return o
}
