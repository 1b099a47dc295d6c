package boltkv_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/tempuscache/expirekv/boltkv"
	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/value"
)

func newBackend(t *testing.T, clock clockwork.Clock, performDeletion bool) *boltkv.Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.db")
	b, err := boltkv.NewWithConfig(boltkv.Config{
		Path:            path,
		Workers:         2,
		Clock:           clock,
		PerformDeletion: performDeletion,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, clockwork.NewFakeClock(), false)

	require.NoError(t, b.Set(ctx, "s", "greet", value.String("hello")))
	got, found, err := b.Get(ctx, "s", "greet")
	require.NoError(t, err)
	require.True(t, found)
	text, _ := got.Text()
	require.Equal(t, "hello", text)
}

func TestBoltRemove(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, clockwork.NewFakeClock(), false)

	require.NoError(t, b.Set(ctx, "s", "k", value.Number(1)))
	_, found, err := b.Remove(ctx, "s", "k")
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = b.Get(ctx, "s", "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestBoltSoftExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := newBackend(t, clock, false)

	require.NoError(t, b.SetExpiring(ctx, "s", "t", value.String("v"), 2*time.Second))
	clock.Advance(3 * time.Second)

	_, found, err := b.Get(ctx, "s", "t")
	require.NoError(t, err)
	require.False(t, found, "soft-expiry consistency: expired key must appear absent even if not physically removed yet")
}

func TestBoltPersistSurvivesExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := newBackend(t, clock, false)

	require.NoError(t, b.Set(ctx, "s", "k", value.String("v")))
	require.NoError(t, b.Expire(ctx, "s", "k", time.Second))
	require.NoError(t, b.Persist(ctx, "s", "k"))

	clock.Advance(2 * time.Second)
	_, found, err := b.Get(ctx, "s", "k")
	require.NoError(t, err)
	require.True(t, found)
}

func TestBoltMutatePreservesExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := newBackend(t, clock, false)

	require.NoError(t, b.Set(ctx, "s", "k", value.Number(0)))
	require.NoError(t, b.Expire(ctx, "s", "k", 5*time.Second))

	result, err := b.Mutate(ctx, "s", "k", mutation.Program{mutation.Incr(7)})
	require.NoError(t, err)
	require.Equal(t, int64(7), result)

	remaining, hasDeadline, err := b.Expiry(ctx, "s", "k")
	require.NoError(t, err)
	require.True(t, hasDeadline)
	require.Greater(t, remaining, time.Duration(0))
}

func TestBoltListRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, clockwork.NewFakeClock(), false)

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

// TestBoltExpiredAbsentWithDeletionThread checks that an expired key reads
// back as absent with the deletion thread running. Get cannot tell a
// physically removed entry from a soft-expired one; the physical removal
// is checked in deletion_test.go.
func TestBoltExpiredAbsentWithDeletionThread(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	b := newBackend(t, clock, true)

	require.NoError(t, b.SetExpiring(ctx, "s", "t", value.String("v"), time.Second))
	clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool {
		_, found, _ := b.Get(ctx, "s", "t")
		return !found
	}, time.Second, time.Millisecond)
}

func TestBoltScanOnStartReconciles(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	path := filepath.Join(t.TempDir(), "data.db")

	b1, err := boltkv.NewWithConfig(boltkv.Config{Path: path, Clock: clock})
	require.NoError(t, err)
	require.NoError(t, b1.SetExpiring(ctx, "s", "t", value.String("v"), time.Second))
	clock.Advance(2 * time.Second)
	require.NoError(t, b1.Close())

	b2, err := boltkv.NewWithConfig(boltkv.Config{
		Path:            path,
		Clock:           clock,
		PerformDeletion: true,
		ScanDBOnStart:   true,
	})
	require.NoError(t, err)
	defer b2.Close()

	_, found, err := b2.Get(ctx, "s", "t")
	require.NoError(t, err)
	require.False(t, found)
}
