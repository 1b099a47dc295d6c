package memory

import (
	"time"

	"github.com/tempuscache/expirekv/expiry"
	"github.com/tempuscache/expirekv/value"
)

// entry is one stored (scope, key) slot: its current value plus the
// expiry record governing when it becomes invisible. record.Expired is
// checked on every read, independent of whether the reaper has physically
// removed the slot yet — this is the soft-expiry consistency invariant
// (I3).
type entry struct {
	value  value.Owned
	record expiry.Record
}

// expired reports whether e should be treated as absent as of now.
func (e *entry) expired(now time.Time) bool {
	return e.record.Expired(now)
}
