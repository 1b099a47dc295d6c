package expirekv_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/tempuscache/expirekv"
	"github.com/tempuscache/expirekv/memory"
	"github.com/tempuscache/expirekv/value"
)

func TestFacadeSetGetAs(t *testing.T) {
	ctx := context.Background()
	back := memory.New(memory.WithClock(clockwork.NewFakeClock()))
	defer back.Close()

	f := expirekv.New(back).Scope("users")
	require.NoError(t, f.Set(ctx, "name", value.String("ada")))

	s, found, err := expirekv.GetAs[string](ctx, f, "name")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "ada", s)

	b, found, err := expirekv.GetAs[[]byte](ctx, f, "name")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("ada"), b)

	_, _, err = expirekv.GetAs[int64](ctx, f, "name")
	require.ErrorIs(t, err, value.ErrTypeConversion)
}

func TestFacadeScopeIsolation(t *testing.T) {
	ctx := context.Background()
	back := memory.New(memory.WithClock(clockwork.NewFakeClock()))
	defer back.Close()

	root := expirekv.New(back)
	a := root.Scope("a")
	b := root.Scope("b")

	require.NoError(t, a.Set(ctx, "k", value.Number(1)))
	_, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestFacadeListHelpers(t *testing.T) {
	ctx := context.Background()
	back := memory.New(memory.WithClock(clockwork.NewFakeClock()))
	defer back.Close()

	f := expirekv.New(back).Scope("s")
	require.NoError(t, f.PushMultiple(ctx, "queue", []value.Value{
		value.Number(10), value.Number(20), value.Number(30),
	}))

	items, err := expirekv.GetRangeAs[int64](ctx, f, "queue", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 20, 30}, items)

	last, found, err := expirekv.PopAs[int64](ctx, f, "queue")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(30), last)
}

func TestFacadeExpiryFlow(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	back := memory.New(memory.WithClock(clock))
	defer back.Close()

	f := expirekv.New(back).Scope("s")
	require.NoError(t, f.Set(ctx, "k", value.String("v")))
	require.NoError(t, f.Expire(ctx, "k", time.Second))

	remaining, hasDeadline, err := f.Expiry(ctx, "k")
	require.NoError(t, err)
	require.True(t, hasDeadline)
	require.Greater(t, remaining, time.Duration(0))

	require.NoError(t, f.Persist(ctx, "k"))
	_, hasDeadline, err = f.Expiry(ctx, "k")
	require.NoError(t, err)
	require.False(t, hasDeadline)
}
