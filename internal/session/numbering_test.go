package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/session"
)

func TestNextOrderNumber_FreshSession(t *testing.T) {
	store, _ := newStore(t)

	next, err := store.NextOrderNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, next)
}

func TestNextOrderNumber_StrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	seen := make(map[int]struct{})
	prev := 0
	for i := 0; i < 20; i++ {
		next, err := store.NextOrderNumber(ctx)
		require.NoError(t, err)
		require.Greater(t, next, prev)
		_, dup := seen[next]
		require.False(t, dup, "number %d issued twice", next)
		seen[next] = struct{}{}
		prev = next

		orders, err := store.ReadAll(ctx)
		require.NoError(t, err)
		orders = append(orders, domain.Order{Number: next, Status: domain.OrderStatusIncomplete})
		require.NoError(t, store.WriteAll(ctx, orders))
	}
}

func TestNextOrderNumber_UsesCountWhenMarkIsStale(t *testing.T) {
	ctx := context.Background()
	store, kv := newStore(t)

	require.NoError(t, store.WriteAll(ctx, []domain.Order{
		{Number: 1, Status: domain.OrderStatusIncomplete},
		{Number: 2, Status: domain.OrderStatusIncomplete},
		{Number: 3, Status: domain.OrderStatusIncomplete},
	}))
	// Метку правили руками и занизили.
	require.NoError(t, kv.Set(ctx, session.LastOrderNumberKey, "1"))

	next, err := store.NextOrderNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, next)

	mark, err := store.HighWaterMark(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, mark)
}

func TestNextOrderNumber_UsesMarkWhenListTruncated(t *testing.T) {
	ctx := context.Background()
	store, kv := newStore(t)

	require.NoError(t, kv.Set(ctx, session.LastOrderNumberKey, "9"))
	require.NoError(t, kv.Set(ctx, session.OrdersKey, `[{"orderNumber":9,"description":"x","status":"incomplete"}]`))

	next, err := store.NextOrderNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, next)
}

func TestNextOrderNumber_RestartsAfterClear(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.NextOrderNumber(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, store.Clear(ctx))

	next, err := store.NextOrderNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, next)
}
