// Package provider declares the polymorphic operation surface every
// backend satisfies, plus the error taxonomy and the Params map used to
// construct a backend by name.
package provider

import (
	"context"
	"time"

	"github.com/gravitational/trace"

	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/value"
)

// Provider is the polymorphic surface the facade delegates to. Every
// method takes scope and key as plain strings; optional behavior a
// backend does not implement (most commonly expiry on a backend with no
// scheduler configured) is reported as ErrMethodNotSupported rather than
// by splitting this into several interfaces.
type Provider interface {
	Keys(ctx context.Context, scope string) ([]string, error)

	Set(ctx context.Context, scope, key string, v value.Value) error
	SetExpiring(ctx context.Context, scope, key string, v value.Value, d time.Duration) error

	Get(ctx context.Context, scope, key string) (value.Owned, bool, error)
	GetRange(ctx context.Context, scope, key string, start, end int64) ([]value.Owned, error)
	GetExpiring(ctx context.Context, scope, key string) (value.Owned, time.Duration, bool, bool, error)

	Push(ctx context.Context, scope, key string, v value.Value) error
	PushMultiple(ctx context.Context, scope, key string, vs []value.Value) error
	Pop(ctx context.Context, scope, key string) (value.Owned, bool, error)

	Mutate(ctx context.Context, scope, key string, p mutation.Program) (int64, error)

	Remove(ctx context.Context, scope, key string) (value.Owned, bool, error)
	ContainsKey(ctx context.Context, scope, key string) (bool, error)

	Expire(ctx context.Context, scope, key string, d time.Duration) error
	Expiry(ctx context.Context, scope, key string) (time.Duration, bool, error)
	Extend(ctx context.Context, scope, key string, d time.Duration) error
	Persist(ctx context.Context, scope, key string) error

	// Close releases any resources (background goroutines, open file
	// handles) held by the backend.
	Close() error
}

// Params is a loosely-typed bag of construction parameters, mirroring the
// backend.Params pattern used by NewFromParams-style constructors: a
// façade builder (out of scope for this module) can assemble one of these
// from configuration without depending on a specific backend's Config
// type.
type Params map[string]any

// String returns Params[key] as a string, or "" if absent or not a string.
func (p Params) String(key string) string {
	v, _ := p[key].(string)
	return v
}

// Duration returns Params[key] as a time.Duration, or 0 if absent or of
// the wrong type.
func (p Params) Duration(key string) time.Duration {
	v, _ := p[key].(time.Duration)
	return v
}

// Int returns Params[key] as an int, or 0 if absent or of the wrong type.
func (p Params) Int(key string) int {
	v, _ := p[key].(int)
	return v
}

// Error sentinels forming the taxonomy from spec §7. They are plain
// sentinel values wrapped with trace so callers can use errors.Is against
// them while still getting trace's stack-trace formatting and wrapping.
var (
	// ErrMethodNotSupported is returned when a backend does not implement
	// an optional operation (e.g. expiry on a backend with no scheduler).
	ErrMethodNotSupported = trace.NotImplemented("method not supported by this backend")

	// ErrInvalidNumber is returned for mutation overflow/underflow/div-by-
	// zero; it is the same sentinel as mutation.ErrInvalidNumber. A stored
	// non-Number value is not reported with it: the in-memory backend's
	// Mutate returns ErrTypeConversion and the persistent backend starts
	// the register at 0.
	ErrInvalidNumber = mutation.ErrInvalidNumber

	// ErrTypeConversion is returned when the requested read type is
	// incompatible with the stored kind.
	ErrTypeConversion = value.ErrTypeConversion
)

// Custom wraps an opaque backend-internal failure (I/O, channel closed,
// serialization) so it surfaces to callers without claiming to be one of
// the named taxonomy members.
func Custom(err error, format string, args ...any) error {
	return trace.Wrap(err, format, args...)
}
