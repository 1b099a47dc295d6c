package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/tempuscache/expirekv/memory"
	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/value"
)

// ============================================================
// Round-trip and removal (P1, P2)
// ============================================================

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s", "greet", value.String("hello")))
	got, found, err := b.Get(ctx, "s", "greet")
	require.NoError(t, err)
	require.True(t, found)
	text, ok := got.Text()
	require.True(t, ok)
	require.Equal(t, "hello", text)

	contains, err := b.ContainsKey(ctx, "s", "greet")
	require.NoError(t, err)
	require.True(t, contains)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s", "k", value.Number(1)))
	_, found, err := b.Remove(ctx, "s", "k")
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = b.Get(ctx, "s", "k")
	require.NoError(t, err)
	require.False(t, found)

	contains, err := b.ContainsKey(ctx, "s", "k")
	require.NoError(t, err)
	require.False(t, contains)
}

// ============================================================
// Expiry (P3, P4, P5, P6, S4, S5)
// ============================================================

func TestSetExpiringThenExpires(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := memory.New(memory.WithClock(clock))
	defer b.Close()

	require.NoError(t, b.SetExpiring(ctx, "s", "t", value.String("v"), 2*time.Second))

	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool {
		_, found, _ := b.Get(ctx, "s", "t")
		return !found
	}, time.Second, time.Millisecond)
}

func TestExpireThenPersistSurvives(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := memory.New(memory.WithClock(clock))
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s", "k", value.String("v")))
	require.NoError(t, b.Expire(ctx, "s", "k", time.Second))
	require.NoError(t, b.Persist(ctx, "s", "k"))

	clock.Advance(2 * time.Second)
	_, found, err := b.Get(ctx, "s", "k")
	require.NoError(t, err)
	require.True(t, found)
}

func TestExpireLastWriterWins(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := memory.New(memory.WithClock(clock))
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s", "k", value.String("v")))
	require.NoError(t, b.Expire(ctx, "s", "k", 10*time.Second))
	require.NoError(t, b.Expire(ctx, "s", "k", 2*time.Second))

	remaining, hasDeadline, err := b.Expiry(ctx, "s", "k")
	require.NoError(t, err)
	require.True(t, hasDeadline)
	require.LessOrEqual(t, remaining, 2*time.Second)
}

func TestSetClearsExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := memory.New(memory.WithClock(clock))
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s", "x", value.String("v1")))
	require.NoError(t, b.Expire(ctx, "s", "x", 10*time.Second))
	require.NoError(t, b.Set(ctx, "s", "x", value.String("v2")))

	clock.Advance(11 * time.Second)
	got, found, err := b.Get(ctx, "s", "x")
	require.NoError(t, err)
	require.True(t, found)
	text, _ := got.Text()
	require.Equal(t, "v2", text)
}

// ============================================================
// Mutation program (S2, S3, P7, P8, P9)
// ============================================================

func TestMutateScenarioS2(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	defer b.Close()

	r, err := b.Mutate(ctx, "s", "c", mutation.Program{mutation.Incr(1600)})
	require.NoError(t, err)
	require.Equal(t, int64(1600), r)

	r, err = b.Mutate(ctx, "s", "c", mutation.Program{mutation.Decr(200)})
	require.NoError(t, err)
	require.Equal(t, int64(1400), r)

	r, err = b.Mutate(ctx, "s", "c", mutation.Program{mutation.Mul(2)})
	require.NoError(t, err)
	require.Equal(t, int64(2800), r)

	r, err = b.Mutate(ctx, "s", "c", mutation.Program{mutation.Div(4)})
	require.NoError(t, err)
	require.Equal(t, int64(700), r)

	r, err = b.Mutate(ctx, "s", "c", mutation.Program{mutation.Set(100)})
	require.NoError(t, err)
	require.Equal(t, int64(100), r)

	r, err = b.Mutate(ctx, "s", "c", mutation.Program{
		mutation.If(mutation.Equal, 100, mutation.Program{mutation.Set(200)}),
	})
	require.NoError(t, err)
	require.Equal(t, int64(200), r)

	r, err = b.Mutate(ctx, "s", "c", mutation.Program{
		mutation.IfElse(mutation.Greater, 200, mutation.Program{mutation.Decr(100)}, mutation.Program{mutation.Decr(50)}),
	})
	require.NoError(t, err)
	require.Equal(t, int64(150), r)
}

func TestMutateNestedScenarioS3(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	defer b.Close()

	_, err := b.Mutate(ctx, "s", "k", mutation.Program{mutation.Set(175)})
	require.NoError(t, err)

	r, err := b.Mutate(ctx, "s", "k", mutation.Program{
		mutation.If(mutation.Greater, 100, mutation.Program{
			mutation.If(mutation.Less, 200, mutation.Program{
				mutation.IfElse(mutation.Greater, 150,
					mutation.Program{mutation.Set(125)},
					mutation.Program{mutation.Set(175)}),
			}),
		}),
	})
	require.NoError(t, err)
	require.Equal(t, int64(125), r)
}

func TestMutatePreservesExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := memory.New(memory.WithClock(clock))
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s", "k", value.Number(0)))
	require.NoError(t, b.Expire(ctx, "s", "k", 5*time.Second))

	_, err := b.Mutate(ctx, "s", "k", mutation.Program{mutation.Incr(3)})
	require.NoError(t, err)

	remaining, hasDeadline, err := b.Expiry(ctx, "s", "k")
	require.NoError(t, err)
	require.True(t, hasDeadline)
	require.Greater(t, remaining, time.Duration(0))
	require.LessOrEqual(t, remaining, 5*time.Second)
}

func TestMutateDivisionByZero(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s", "k", value.Number(10)))
	_, err := b.Mutate(ctx, "s", "k", mutation.Program{mutation.Div(0)})
	require.Error(t, err)

	got, _, err := b.Get(ctx, "s", "k")
	require.NoError(t, err)
	n, _ := got.Number()
	require.Equal(t, int64(10), n)
}

// ============================================================
// Scope isolation (P10)
// ============================================================

func TestScopeIsolation(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s1", "k", value.String("a")))
	require.NoError(t, b.Set(ctx, "s2", "k", value.String("b")))

	got1, _, _ := b.Get(ctx, "s1", "k")
	got2, _, _ := b.Get(ctx, "s2", "k")
	text1, _ := got1.Text()
	text2, _ := got2.Text()
	require.Equal(t, "a", text1)
	require.Equal(t, "b", text2)
}

// ============================================================
// Lists (P11, S6)
// ============================================================

func TestListRoundTripAndDeque(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	defer b.Close()

	lst, err := value.List(value.Number(1), value.Number(2), value.Number(3))
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "s", "L", lst))

	items, err := b.GetRange(ctx, "s", "L", 0, -1)
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.NoError(t, b.Push(ctx, "s", "L", value.Number(4)))
	popped, found, err := b.Pop(ctx, "s", "L")
	require.NoError(t, err)
	require.True(t, found)
	n, _ := popped.Number()
	require.Equal(t, int64(4), n)
}

func TestGetRangeNegativeIndices(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	defer b.Close()

	lst, err := value.List(value.Number(1), value.Number(2), value.Number(3), value.Number(4))
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "s", "L", lst))

	items, err := b.GetRange(ctx, "s", "L", -2, -1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	n0, _ := items[0].Number()
	n1, _ := items[1].Number()
	require.Equal(t, int64(3), n0)
	require.Equal(t, int64(4), n1)
}

func TestListNestedListRejected(t *testing.T) {
	inner, err := value.List(value.Number(1))
	require.NoError(t, err)
	_, err = value.List(inner)
	require.ErrorIs(t, err, value.ErrNestedList)
}

// ============================================================
// LRU capacity guard (additive, not part of spec.md's eviction policy)
// ============================================================

func TestMaxEntriesEvictsOldest(t *testing.T) {
	ctx := context.Background()
	b := memory.New(memory.WithMaxEntries(2))
	defer b.Close()

	require.NoError(t, b.Set(ctx, "s", "a", value.Number(1)))
	require.NoError(t, b.Set(ctx, "s", "b", value.Number(2)))
	require.NoError(t, b.Set(ctx, "s", "c", value.Number(3)))

	_, found, _ := b.Get(ctx, "s", "a")
	require.False(t, found)
	_, found, _ = b.Get(ctx, "s", "c")
	require.True(t, found)
}
