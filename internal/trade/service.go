// Package trade stores and lists trade records on behalf of an
// authenticated user.
package trade

import (
	"context"
	"fmt"
	"strings"

	"tradestream/internal/auth"
	"tradestream/internal/common"
	"tradestream/internal/errors"
	"tradestream/internal/logger"
	"tradestream/internal/store"
)

// Input is the client-supplied part of a trade.
type Input struct {
	Action string  `json:"action" form:"action"`
	Amount float64 `json:"amount" form:"amount"`
	Price  float64 `json:"price" form:"price"`
	Symbol string  `json:"symbol" form:"symbol"`
}

// ValidationError lists every rejected field of an Input.
type ValidationError struct {
	Fields []errors.FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Constraint)
	}
	return "invalid trade: " + strings.Join(parts, ", ")
}

// Validate checks the input without touching any store.
func (in Input) Validate() error {
	var fields []errors.FieldViolation
	if !store.Action(in.Action).Valid() {
		fields = append(fields, errors.FieldViolation{Field: "action", Constraint: "must be one of buy, sell"})
	}
	if !(in.Amount > 0) {
		fields = append(fields, errors.FieldViolation{Field: "amount", Constraint: "must be greater than 0"})
	}
	if !(in.Price > 0) {
		fields = append(fields, errors.FieldViolation{Field: "price", Constraint: "must be greater than 0"})
	}
	if strings.TrimSpace(in.Symbol) == "" {
		fields = append(fields, errors.FieldViolation{Field: "symbol", Constraint: "must not be empty"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Service is the trade gateway.
type Service struct {
	trades store.TradeStore
	ids    common.IDGenerator
	clock  common.Clock
	log    logger.Logger
}

// NewService creates a trade gateway. Nil ids or clock fall back to UUIDs
// and the system clock.
func NewService(trades store.TradeStore, ids common.IDGenerator, clock common.Clock, log logger.Logger) *Service {
	if ids == nil {
		ids = common.UUIDGenerator{}
	}
	if clock == nil {
		clock = common.SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		trades: trades,
		ids:    ids,
		clock:  clock,
		log:    log.WithField("component", "trade"),
	}
}

// PlaceTrade validates in and stores it under the identity's subject.
func (s *Service) PlaceTrade(ctx context.Context, identity *auth.Identity, in Input) (*store.Trade, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	t := &store.Trade{
		ID:        s.ids.NewID(),
		UserID:    identity.Subject,
		Action:    store.Action(in.Action),
		Amount:    in.Amount,
		Price:     in.Price,
		Symbol:    in.Symbol,
		Timestamp: common.EpochSeconds(s.clock.Now()),
	}
	if err := s.trades.InsertTrade(ctx, t); err != nil {
		return nil, fmt.Errorf("trade: insert: %w", err)
	}

	s.log.Debug("Trade stored", "trade_id", t.ID, "user_id", t.UserID, "symbol", t.Symbol)
	return t, nil
}

// ListTrades returns the identity's trades in store order, never nil.
func (s *Service) ListTrades(ctx context.Context, identity *auth.Identity) ([]store.Trade, error) {
	trades, err := s.trades.FindTradesByUser(ctx, identity.Subject)
	if err != nil {
		return nil, fmt.Errorf("trade: list: %w", err)
	}
	if trades == nil {
		trades = []store.Trade{}
	}
	return trades, nil
}
