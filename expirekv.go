// Package expirekv is the typed, scope-bound handle user code talks to.
// A Facade wraps a provider.Provider (the memory or boltkv backend) and
// adds the read-time coercion table from spec §4.4 on top of the
// backend's raw value.Owned results.
package expirekv

import (
	"context"
	"time"

	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/provider"
	"github.com/tempuscache/expirekv/value"
)

// Facade is a scope-bound, thread-safe handle onto a Provider. The zero
// value is not usable; construct one with New.
type Facade struct {
	p     provider.Provider
	scope string
}

// New builds a Facade bound to the empty scope over p.
func New(p provider.Provider) *Facade {
	return &Facade{p: p}
}

// Scope returns a new Facade bound to s, sharing the underlying Provider
// handle. The receiver is left unmodified.
func (f *Facade) Scope(s string) *Facade {
	return &Facade{p: f.p, scope: s}
}

// Close releases the underlying Provider's resources.
func (f *Facade) Close() error {
	return f.p.Close()
}

// Keys lists every live (non-expired) key in the facade's scope.
func (f *Facade) Keys(ctx context.Context) ([]string, error) {
	return f.p.Keys(ctx, f.scope)
}

// Set stores v against key, clearing any prior expiry.
func (f *Facade) Set(ctx context.Context, key string, v value.Value) error {
	return f.p.Set(ctx, f.scope, key, v)
}

// SetExpiring stores v against key with a deadline d from now.
func (f *Facade) SetExpiring(ctx context.Context, key string, v value.Value, d time.Duration) error {
	return f.p.SetExpiring(ctx, f.scope, key, v, d)
}

// Get returns the raw stored value, or found=false if absent or expired.
func (f *Facade) Get(ctx context.Context, key string) (value.Owned, bool, error) {
	return f.p.Get(ctx, f.scope, key)
}

// GetExpiring returns the raw stored value plus its remaining TTL.
func (f *Facade) GetExpiring(ctx context.Context, key string) (value.Owned, time.Duration, bool, bool, error) {
	return f.p.GetExpiring(ctx, f.scope, key)
}

// GetRange returns a sub-slice of a List value using Redis-style
// (possibly negative) bounds.
func (f *Facade) GetRange(ctx context.Context, key string, start, end int64) ([]value.Owned, error) {
	return f.p.GetRange(ctx, f.scope, key, start, end)
}

// Push appends v to the List stored at key (creating it if absent).
func (f *Facade) Push(ctx context.Context, key string, v value.Value) error {
	return f.p.Push(ctx, f.scope, key, v)
}

// PushMultiple appends vs, in order, to the List stored at key.
func (f *Facade) PushMultiple(ctx context.Context, key string, vs []value.Value) error {
	return f.p.PushMultiple(ctx, f.scope, key, vs)
}

// Pop removes and returns the last element of the List stored at key.
func (f *Facade) Pop(ctx context.Context, key string) (value.Owned, bool, error) {
	return f.p.Pop(ctx, f.scope, key)
}

// Mutate runs p against the Number register backing key and returns the
// result.
func (f *Facade) Mutate(ctx context.Context, key string, p mutation.Program) (int64, error) {
	return f.p.Mutate(ctx, f.scope, key, p)
}

// Remove deletes key and returns the value it held, if any.
func (f *Facade) Remove(ctx context.Context, key string) (value.Owned, bool, error) {
	return f.p.Remove(ctx, f.scope, key)
}

// ContainsKey reports whether key is present and not expired.
func (f *Facade) ContainsKey(ctx context.Context, key string) (bool, error) {
	return f.p.ContainsKey(ctx, f.scope, key)
}

// Expire arms key with deadline d from now, replacing any prior deadline.
func (f *Facade) Expire(ctx context.Context, key string, d time.Duration) error {
	return f.p.Expire(ctx, f.scope, key, d)
}

// Expiry reports key's remaining TTL, or hasDeadline=false if persistent
// or absent.
func (f *Facade) Expiry(ctx context.Context, key string) (time.Duration, bool, error) {
	return f.p.Expiry(ctx, f.scope, key)
}

// Extend adds d to key's current deadline (or arms one d from now if key
// was persistent).
func (f *Facade) Extend(ctx context.Context, key string, d time.Duration) error {
	return f.p.Extend(ctx, f.scope, key, d)
}

// Persist clears key's deadline, making it immune to expiry.
func (f *Facade) Persist(ctx context.Context, key string) error {
	return f.p.Persist(ctx, f.scope, key)
}

// GetAs fetches key and coerces it to T using the read-time conversion
// table from spec §4.4: String<->[]byte, Number->string (decimal) are
// allowed; any other coercion (String->Number, anything->list) is
// value.ErrTypeConversion.
func GetAs[T string | []byte | int64](ctx context.Context, f *Facade, key string) (T, bool, error) {
	var zero T
	owned, found, err := f.Get(ctx, key)
	if err != nil || !found {
		return zero, found, err
	}
	v, err := coerce[T](owned)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}

// PopAs pops the tail element of the List at key, coerced to T.
func PopAs[T string | []byte | int64](ctx context.Context, f *Facade, key string) (T, bool, error) {
	var zero T
	owned, found, err := f.Pop(ctx, key)
	if err != nil || !found {
		return zero, found, err
	}
	v, err := coerce[T](owned)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}

// GetRangeAs fetches a sub-range of the List at key, with every element
// coerced to T.
func GetRangeAs[T string | []byte | int64](ctx context.Context, f *Facade, key string, start, end int64) ([]T, error) {
	items, err := f.GetRange(ctx, key, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i, it := range items {
		v, err := coerce[T](it)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func coerce[T string | []byte | int64](owned value.Owned) (T, error) {
	var zero T
	switch any(zero).(type) {
	case string:
		s, err := value.AsString(owned)
		if err != nil {
			return zero, err
		}
		return any(s).(T), nil
	case []byte:
		b, err := value.AsBytes(owned)
		if err != nil {
			return zero, err
		}
		return any(b).(T), nil
	case int64:
		n, err := value.AsNumber(owned)
		if err != nil {
			return zero, err
		}
		return any(n).(T), nil
	default:
		return zero, value.ErrTypeConversion
	}
}
