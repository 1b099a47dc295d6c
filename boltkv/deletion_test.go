package boltkv

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/tempuscache/expirekv/expiry"
	"github.com/tempuscache/expirekv/value"
)

// TestStaleDeletionSuppressedByNonceMismatch exercises invariant I5: a
// delayed-delete action scheduled under a stale nonce must not remove an
// entry that has since been rewritten, even though the entry's current
// deadline has also elapsed. Checking via the public Get API would not
// distinguish "soft-expired but still physically present" from
// "physically deleted" (both read back as not-found), so this reads the
// bbolt value bucket directly.
func TestStaleDeletionSuppressedByNonceMismatch(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	path := filepath.Join(t.TempDir(), "data.db")
	b, err := NewWithConfig(Config{
		Path:            path,
		Workers:         2,
		Clock:           clock,
		PerformDeletion: false,
	})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.SetExpiring(ctx, "s", "k", value.Number(1), time.Second))

	var staleNonce expiry.Nonce
	require.NoError(t, b.db.View(func(tx *bolt.Tx) error {
		_, eb, _ := openBuckets(tx, "s", false)
		f, ok := readFlags(eb, "k")
		require.True(t, ok)
		staleNonce = f.nonce
		return nil
	}))

	// A second write bumps the nonce, simulating an intervening write racing
	// the first scheduled delete. The fake clock has not moved, so its
	// deadline is the same instant as the first write's.
	require.NoError(t, b.SetExpiring(ctx, "s", "k", value.Number(2), time.Second))

	clock.Advance(2 * time.Second)

	b.deleteIfNonceMatches(scheduledDelete{key: expiry.Key{Scope: "s", Key: "k"}, nonce: staleNonce})

	require.NoError(t, b.db.View(func(tx *bolt.Tx) error {
		vb, _, _ := openBuckets(tx, "s", false)
		require.NotNil(t, vb)
		require.NotNil(t, vb.Get([]byte("k")))
		return nil
	}))
}

// TestFreshDeletionRemovesExpiredEntry is the matching positive case: a
// delete scheduled under the still-current nonce does remove the entry
// once its deadline has elapsed.
func TestFreshDeletionRemovesExpiredEntry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	path := filepath.Join(t.TempDir(), "data.db")
	b, err := NewWithConfig(Config{
		Path:            path,
		Workers:         2,
		Clock:           clock,
		PerformDeletion: false,
	})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.SetExpiring(ctx, "s", "k", value.Number(1), time.Second))

	var nonce expiry.Nonce
	require.NoError(t, b.db.View(func(tx *bolt.Tx) error {
		_, eb, _ := openBuckets(tx, "s", false)
		f, ok := readFlags(eb, "k")
		require.True(t, ok)
		nonce = f.nonce
		return nil
	}))

	clock.Advance(2 * time.Second)

	b.deleteIfNonceMatches(scheduledDelete{key: expiry.Key{Scope: "s", Key: "k"}, nonce: nonce})

	require.NoError(t, b.db.View(func(tx *bolt.Tx) error {
		vb, _, _ := openBuckets(tx, "s", false)
		require.NotNil(t, vb)
		require.Nil(t, vb.Get([]byte("k")))
		return nil
	}))
}
