package boltkv

import (
	"encoding/binary"
	"time"

	"github.com/tempuscache/expirekv/expiry"
)

// flagsSize is the fixed width of an on-disk ExpiryFlags record: 8 bytes
// deadline, 8 bytes nonce, 1 byte persist flag, the remainder reserved
// and zeroed — matching spec §4.3/§6's "32-byte record, first 8 bytes
// deadline, remaining bytes reserved" and the nonce placement grounded in
// actix-storage-sled/src/flags.rs's ExpiryFlags{nonce, expires_at, persist}.
const flagsSize = 32

// flags is the decoded, in-memory form of an on-disk ExpiryFlags record.
type flags struct {
	deadlineUnix int64 // 0 == persistent
	nonce        expiry.Nonce
	persist      bool
}

func persistentFlags(nonce expiry.Nonce) flags {
	return flags{persist: true, nonce: nonce}
}

func expiringFlags(now time.Time, d time.Duration, nonce expiry.Nonce) flags {
	return flags{deadlineUnix: now.Add(d).Unix(), nonce: nonce}
}

// nextNonce returns the nonce that should be stamped on the next write to
// this key, wrapping at the uint64 maximum exactly like the Rust
// original's increase_nonce/next_nonce pair.
func (f flags) nextNonce() expiry.Nonce {
	return f.nonce.Next()
}

// expired reports whether f's deadline has passed as of now. A persistent
// flags value is never expired.
func (f flags) expired(now time.Time) bool {
	return !f.persist && f.deadlineUnix != 0 && f.deadlineUnix <= now.Unix()
}

// remaining returns the duration until f's deadline, and false if f is
// persistent.
func (f flags) remaining(now time.Time) (time.Duration, bool) {
	if f.persist {
		return 0, false
	}
	d := time.Unix(f.deadlineUnix, 0).Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// encodeFlags serializes f into the fixed 32-byte on-disk layout.
func encodeFlags(f flags) []byte {
	buf := make([]byte, flagsSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(f.deadlineUnix))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(f.nonce))
	if f.persist {
		buf[16] = 1
	}
	return buf
}

// decodeFlags parses a 32-byte on-disk ExpiryFlags record.
func decodeFlags(buf []byte) flags {
	if len(buf) < flagsSize {
		return flags{persist: true}
	}
	return flags{
		deadlineUnix: int64(binary.LittleEndian.Uint64(buf[0:8])),
		nonce:        expiry.Nonce(binary.LittleEndian.Uint64(buf[8:16])),
		persist:      buf[16] != 0,
	}
}
