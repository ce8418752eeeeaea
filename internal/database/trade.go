package database

import (
	"context"
	"fmt"

	"tradestream/internal/store"

	"github.com/lib/pq"
)

// TradeRepository stores trades in PostgreSQL. It implements
// store.TradeStore.
type TradeRepository struct {
	db *DB

	insert     string
	findByUser string
}

// NewTradeRepository binds the repository to table.
func NewTradeRepository(db *DB, table string) *TradeRepository {
	t := pq.QuoteIdentifier(table)
	return &TradeRepository{
		db: db,
		insert: `
		INSERT INTO ` + t + ` (id, user_id, action, amount, price, symbol, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		// No ORDER BY: callers get the table's natural order.
		findByUser: `
		SELECT id, user_id, action, amount, price, symbol, timestamp
		FROM ` + t + ` WHERE user_id = $1`,
	}
}

// InsertTrade stores a trade
func (r *TradeRepository) InsertTrade(ctx context.Context, t *store.Trade) error {
	_, err := r.db.ExecContext(ctx, r.insert,
		t.ID, t.UserID, string(t.Action), t.Amount, t.Price, t.Symbol, t.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// FindTradesByUser lists a user's trades
func (r *TradeRepository) FindTradesByUser(ctx context.Context, userID string) ([]store.Trade, error) {
	rows, err := r.db.QueryContext(ctx, r.findByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]store.Trade, 0)
	for rows.Next() {
		var t store.Trade
		var action string
		if err := rows.Scan(&t.ID, &t.UserID, &action, &t.Amount, &t.Price, &t.Symbol, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Action = store.Action(action)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}
