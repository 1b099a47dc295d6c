// Package expiry defines the per-key expiration metadata shared by both
// backends: either a key is persistent (no deadline) or it carries an
// absolute deadline, plus — for the persistent backend — a nonce used to
// defeat stale scheduled deletions (spec invariant I5).
package expiry

import "time"

// Key identifies an entry for the delay-queue: the (scope, key) pair the
// spec calls an ExpiryKey. It is comparable so it can be used directly as
// a map key.
type Key struct {
	Scope string
	Key   string
}

// Nonce is a per-key monotonically advancing counter. It wraps to 0 after
// the maximum uint64 value, mirroring the on-disk original's
// increase_nonce/next_nonce behavior.
type Nonce uint64

// Next returns the nonce following n, wrapping at the uint64 maximum.
func (n Nonce) Next() Nonce {
	if n == ^Nonce(0) {
		return 0
	}
	return n + 1
}

// Record is the expiry state attached to an in-memory entry: either
// persistent, or expiring at Deadline. The persistent backend tracks its
// own nonce alongside its on-disk flags (see boltkv.flags) rather than
// through this type, since the in-memory backend has no use for one.
type Record struct {
	Persistent bool
	Deadline   time.Time
}

// PersistentRecord returns a Record with no deadline.
func PersistentRecord() Record {
	return Record{Persistent: true}
}

// ExpiringRecord returns a Record whose deadline is now+d.
func ExpiringRecord(now time.Time, d time.Duration) Record {
	return Record{Persistent: false, Deadline: now.Add(d)}
}

// Expired reports whether r's deadline has elapsed as of now. A
// persistent record is never expired.
func (r Record) Expired(now time.Time) bool {
	if r.Persistent {
		return false
	}
	return !r.Deadline.After(now)
}

// Remaining returns the duration until r's deadline, or zero if already
// past. ok is false for a persistent record, matching the facade's
// expiry() → Option<Duration> contract.
func (r Record) Remaining(now time.Time) (d time.Duration, ok bool) {
	if r.Persistent {
		return 0, false
	}
	remaining := r.Deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
