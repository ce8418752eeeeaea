// Package store defines the persistence capabilities the services depend on
// and an in-memory implementation of them.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("store: record not found")

// Action is the side of a trade.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Valid reports whether a is one of the two supported sides.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Trade is an immutable trade record owned by UserID.
type Trade struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	Action    Action  `json:"action"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Symbol    string  `json:"symbol"`
	Timestamp float64 `json:"timestamp"`
}

// UserStore persists user records. Implementations must be safe for
// concurrent use.
type UserStore interface {
	// FindUserByUsername returns ErrNotFound when no user matches.
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	// UserExists reports whether any user has the username OR the email.
	UserExists(ctx context.Context, username, email string) (bool, error)
	// InsertUser stores u and returns its identifier. No uniqueness is
	// enforced here.
	InsertUser(ctx context.Context, u *User) (string, error)
}

// TradeStore persists trade records. Implementations must be safe for
// concurrent use.
type TradeStore interface {
	InsertTrade(ctx context.Context, t *Trade) error
	// FindTradesByUser returns trades in the store's natural order.
	FindTradesByUser(ctx context.Context, userID string) ([]Trade, error)
}

// Pinger is implemented by stores backed by an external service.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}
