package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.InsertUser(ctx, &User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	u, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = s.FindUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := s.UserExists(ctx, "bob", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists, "email match counts")

	exists, err = s.UserExists(ctx, "alice", "other@example.com")
	require.NoError(t, err)
	assert.True(t, exists, "username match counts")

	exists, err = s.UserExists(ctx, "bob", "bob@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryTradesFilterByUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i, owner := range []string{"alice", "bob", "alice"} {
		require.NoError(t, s.InsertTrade(ctx, &Trade{ID: fmt.Sprint(i), UserID: owner, Action: ActionBuy, Amount: 1, Price: 1, Symbol: "BTC"}))
	}

	trades, err := s.FindTradesByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "0", trades[0].ID)
	assert.Equal(t, "2", trades[1].ID)

	none, err := s.FindTradesByUser(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.InsertTrade(ctx, &Trade{ID: fmt.Sprint(i), UserID: "alice"})
		}(i)
	}
	wg.Wait()

	trades, err := s.FindTradesByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, trades, 50)
}

func TestActionValid(t *testing.T) {
	assert.True(t, ActionBuy.Valid())
	assert.True(t, ActionSell.Valid())
	assert.False(t, Action("hold").Valid())
	assert.False(t, Action("BUY").Valid())
}
