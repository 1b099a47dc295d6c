package boltkv

import (
	"context"
	"time"

	"github.com/gravitational/trace"
	bolt "go.etcd.io/bbolt"

	"github.com/tempuscache/expirekv/expiry"
	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/value"
)

func (b *Backend) Keys(ctx context.Context, scope string) ([]string, error) {
	var keys []string
	_, err := b.submit(ctx, func() (any, error) {
		now := b.cfg.Clock.Now()
		return nil, b.db.View(func(tx *bolt.Tx) error {
			vb, eb, _ := openBuckets(tx, scope, false)
			if vb == nil {
				return nil
			}
			return vb.ForEach(func(k, _ []byte) error {
				if f, ok := readFlags(eb, string(k)); ok && f.expired(now) {
					return nil
				}
				keys = append(keys, string(k))
				return nil
			})
		})
	})
	return keys, trace.Wrap(err)
}

func (b *Backend) Set(ctx context.Context, scope, key string, v value.Value) error {
	_, err := b.submit(ctx, func() (any, error) {
		encoded, err := encodeValue(v.ToOwned())
		if err != nil {
			return nil, trace.Wrap(err)
		}
		return nil, b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, err := openBuckets(tx, scope, true)
			if err != nil {
				return err
			}
			old, _ := readFlags(eb, key)
			if err := vb.Put([]byte(key), encoded); err != nil {
				return err
			}
			return eb.Put([]byte(key), encodeFlags(persistentFlags(old.nextNonce())))
		})
	})
	return trace.Wrap(err)
}

func (b *Backend) SetExpiring(ctx context.Context, scope, key string, v value.Value, d time.Duration) error {
	_, err := b.submit(ctx, func() (any, error) {
		encoded, err := encodeValue(v.ToOwned())
		if err != nil {
			return nil, trace.Wrap(err)
		}
		now := b.cfg.Clock.Now()
		var newNonce expiry.Nonce
		updateErr := b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, err := openBuckets(tx, scope, true)
			if err != nil {
				return err
			}
			old, _ := readFlags(eb, key)
			newNonce = old.nextNonce()
			if err := vb.Put([]byte(key), encoded); err != nil {
				return err
			}
			return eb.Put([]byte(key), encodeFlags(expiringFlags(now, d, newNonce)))
		})
		if updateErr != nil {
			return nil, updateErr
		}
		if b.queue != nil {
			dqKey := expiry.Key{Scope: scope, Key: key}
			b.queue.InsertOrUpdate(dqKey, scheduledDelete{key: dqKey, nonce: newNonce}, d)
		}
		return nil, nil
	})
	return trace.Wrap(err)
}

func (b *Backend) Get(ctx context.Context, scope, key string) (value.Owned, bool, error) {
	var (
		owned value.Owned
		found bool
	)
	_, err := b.submit(ctx, func() (any, error) {
		return nil, b.db.View(func(tx *bolt.Tx) error {
			vb, eb, _ := openBuckets(tx, scope, false)
			if vb == nil {
				return nil
			}
			if f, ok := readFlags(eb, key); ok && f.expired(b.cfg.Clock.Now()) {
				return nil
			}
			raw := vb.Get([]byte(key))
			if raw == nil {
				return nil
			}
			decoded, err := decodeValue(raw)
			if err != nil {
				return err
			}
			owned, found = decoded, true
			return nil
		})
	})
	if err != nil {
		return value.Owned{}, false, trace.Wrap(err)
	}
	return owned, found, nil
}

func (b *Backend) GetExpiring(ctx context.Context, scope, key string) (value.Owned, time.Duration, bool, bool, error) {
	var (
		owned       value.Owned
		remaining   time.Duration
		hasDeadline bool
		found       bool
	)
	_, err := b.submit(ctx, func() (any, error) {
		return nil, b.db.View(func(tx *bolt.Tx) error {
			vb, eb, _ := openBuckets(tx, scope, false)
			if vb == nil {
				return nil
			}
			now := b.cfg.Clock.Now()
			f, hasFlags := readFlags(eb, key)
			if hasFlags && f.expired(now) {
				return nil
			}
			raw := vb.Get([]byte(key))
			if raw == nil {
				return nil
			}
			decoded, err := decodeValue(raw)
			if err != nil {
				return err
			}
			owned, found = decoded, true
			if hasFlags {
				remaining, hasDeadline = f.remaining(now)
			}
			return nil
		})
	})
	if err != nil {
		return value.Owned{}, 0, false, false, trace.Wrap(err)
	}
	return owned, remaining, hasDeadline, found, nil
}

func (b *Backend) GetRange(ctx context.Context, scope, key string, start, end int64) ([]value.Owned, error) {
	owned, found, err := b.Get(ctx, scope, key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !found {
		return nil, nil
	}
	items, isList := owned.Items()
	if !isList {
		return nil, trace.Wrap(value.ErrTypeConversion, "get_range requires a List value")
	}
	lo, hi := resolveRange(len(items), start, end)
	if lo > hi {
		return []value.Owned{}, nil
	}
	out := make([]value.Owned, hi-lo+1)
	copy(out, items[lo:hi+1])
	return out, nil
}

func resolveRange(n int, start, end int64) (lo, hi int) {
	lo = normalizeIndex(start, n)
	hi = normalizeIndex(end, n)
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if n == 0 || lo > hi {
		return 0, -1
	}
	return lo, hi
}

func normalizeIndex(i int64, n int) int {
	if i < 0 {
		i += int64(n)
	}
	return int(i)
}

func (b *Backend) Push(ctx context.Context, scope, key string, v value.Value) error {
	return b.PushMultiple(ctx, scope, key, []value.Value{v})
}

func (b *Backend) PushMultiple(ctx context.Context, scope, key string, vs []value.Value) error {
	_, err := b.submit(ctx, func() (any, error) {
		return nil, b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, err := openBuckets(tx, scope, true)
			if err != nil {
				return err
			}
			now := b.cfg.Clock.Now()
			var items []value.Owned
			f, hasFlags := readFlags(eb, key)
			expired := hasFlags && f.expired(now)
			if !expired {
				if raw := vb.Get([]byte(key)); raw != nil {
					existing, err := decodeValue(raw)
					if err != nil {
						return err
					}
					var isList bool
					items, isList = existing.Items()
					if !isList {
						return trace.Wrap(value.ErrTypeConversion, "push requires a List value")
					}
				}
			} else {
				// Pushing onto an expired key starts a fresh persistent list.
				if err := eb.Put([]byte(key), encodeFlags(persistentFlags(f.nextNonce()))); err != nil {
					return err
				}
			}
			for _, v := range vs {
				items = append(items, v.ToOwned())
			}
			newList, err := value.OwnedList(items...)
			if err != nil {
				return trace.Wrap(err)
			}
			encoded, err := encodeValue(newList)
			if err != nil {
				return trace.Wrap(err)
			}
			return vb.Put([]byte(key), encoded)
		})
	})
	return trace.Wrap(err)
}

func (b *Backend) Pop(ctx context.Context, scope, key string) (value.Owned, bool, error) {
	var (
		popped value.Owned
		found  bool
	)
	_, err := b.submit(ctx, func() (any, error) {
		return nil, b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, err := openBuckets(tx, scope, true)
			if err != nil {
				return err
			}
			now := b.cfg.Clock.Now()
			if f, ok := readFlags(eb, key); ok && f.expired(now) {
				return nil
			}
			raw := vb.Get([]byte(key))
			if raw == nil {
				return nil
			}
			existing, err := decodeValue(raw)
			if err != nil {
				return err
			}
			items, isList := existing.Items()
			if !isList {
				return trace.Wrap(value.ErrTypeConversion, "pop requires a List value")
			}
			if len(items) == 0 {
				return nil
			}
			popped, found = items[len(items)-1], true
			newList, err := value.OwnedList(items[:len(items)-1]...)
			if err != nil {
				return trace.Wrap(err)
			}
			encoded, err := encodeValue(newList)
			if err != nil {
				return trace.Wrap(err)
			}
			return vb.Put([]byte(key), encoded)
		})
	})
	if err != nil {
		return value.Owned{}, false, trace.Wrap(err)
	}
	return popped, found, nil
}

func (b *Backend) Mutate(ctx context.Context, scope, key string, p mutation.Program) (int64, error) {
	var result int64
	_, err := b.submit(ctx, func() (any, error) {
		return nil, b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, err := openBuckets(tx, scope, true)
			if err != nil {
				return err
			}
			now := b.cfg.Clock.Now()
			var register int64
			f, hasFlags := readFlags(eb, key)
			expired := hasFlags && f.expired(now)
			if !expired {
				if raw := vb.Get([]byte(key)); raw != nil {
					existing, err := decodeValue(raw)
					if err != nil {
						return err
					}
					// A non-Number existing value substitutes 0, per
					// spec §4.1's on-disk branch (unlike the in-memory
					// backend, which treats it as a type error).
					if n, isNumber := existing.Number(); isNumber {
						register = n
					}
				}
			}
			r, err := mutation.Eval(register, p)
			if err != nil {
				return trace.Wrap(err)
			}
			result = r
			encoded, err := encodeValue(value.OwnedNumber(r))
			if err != nil {
				return trace.Wrap(err)
			}
			// An expired key is resurrected as a fresh persistent entry;
			// the bumped nonce voids any deletion still scheduled for it.
			// Otherwise expiry (and its nonce) is left untouched: only the
			// value bucket is written.
			if expired {
				if err := eb.Put([]byte(key), encodeFlags(persistentFlags(f.nextNonce()))); err != nil {
					return err
				}
			}
			return vb.Put([]byte(key), encoded)
		})
	})
	if err != nil {
		return 0, trace.Wrap(err)
	}
	return result, nil
}

func (b *Backend) Remove(ctx context.Context, scope, key string) (value.Owned, bool, error) {
	var (
		removed value.Owned
		found   bool
	)
	_, err := b.submit(ctx, func() (any, error) {
		return nil, b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, _ := openBuckets(tx, scope, false)
			if vb == nil {
				return nil
			}
			now := b.cfg.Clock.Now()
			raw := vb.Get([]byte(key))
			if raw == nil {
				return nil
			}
			decoded, err := decodeValue(raw)
			if err != nil {
				return err
			}
			f, hasFlags := readFlags(eb, key)
			expired := hasFlags && f.expired(now)
			if err := vb.Delete([]byte(key)); err != nil {
				return err
			}
			if eb != nil {
				if err := eb.Delete([]byte(key)); err != nil {
					return err
				}
			}
			if !expired {
				removed, found = decoded, true
			}
			return nil
		})
	})
	if err != nil {
		return value.Owned{}, false, trace.Wrap(err)
	}
	if b.queue != nil {
		b.queue.Remove(expiry.Key{Scope: scope, Key: key})
	}
	return removed, found, nil
}

func (b *Backend) ContainsKey(ctx context.Context, scope, key string) (bool, error) {
	_, found, err := b.Get(ctx, scope, key)
	return found, err
}

func (b *Backend) Expire(ctx context.Context, scope, key string, d time.Duration) error {
	var (
		present  bool
		newNonce expiry.Nonce
	)
	_, err := b.submit(ctx, func() (any, error) {
		now := b.cfg.Clock.Now()
		return nil, b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, err := openBuckets(tx, scope, true)
			if err != nil {
				return err
			}
			if vb.Get([]byte(key)) == nil {
				return nil
			}
			present = true
			old, _ := readFlags(eb, key)
			newNonce = old.nextNonce()
			return eb.Put([]byte(key), encodeFlags(expiringFlags(now, d, newNonce)))
		})
	})
	if err != nil {
		return trace.Wrap(err)
	}
	if present && b.queue != nil {
		dqKey := expiry.Key{Scope: scope, Key: key}
		b.queue.InsertOrUpdate(dqKey, scheduledDelete{key: dqKey, nonce: newNonce}, d)
	}
	return nil
}

func (b *Backend) Expiry(ctx context.Context, scope, key string) (time.Duration, bool, error) {
	var (
		remaining   time.Duration
		hasDeadline bool
	)
	_, err := b.submit(ctx, func() (any, error) {
		return nil, b.db.View(func(tx *bolt.Tx) error {
			vb, eb, _ := openBuckets(tx, scope, false)
			if vb == nil || vb.Get([]byte(key)) == nil {
				return nil
			}
			now := b.cfg.Clock.Now()
			if f, ok := readFlags(eb, key); ok && !f.expired(now) {
				remaining, hasDeadline = f.remaining(now)
			}
			return nil
		})
	})
	if err != nil {
		return 0, false, trace.Wrap(err)
	}
	return remaining, hasDeadline, nil
}

func (b *Backend) Extend(ctx context.Context, scope, key string, d time.Duration) error {
	var (
		present  bool
		newDelay time.Duration
		newNonce expiry.Nonce
	)
	_, err := b.submit(ctx, func() (any, error) {
		now := b.cfg.Clock.Now()
		return nil, b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, err := openBuckets(tx, scope, true)
			if err != nil {
				return err
			}
			if vb.Get([]byte(key)) == nil {
				return nil
			}
			old, _ := readFlags(eb, key)
			if old.expired(now) {
				return nil
			}
			present = true
			if remaining, ok := old.remaining(now); ok {
				newDelay = remaining + d
			} else {
				newDelay = d
			}
			newNonce = old.nextNonce()
			return eb.Put([]byte(key), encodeFlags(expiringFlags(now, newDelay, newNonce)))
		})
	})
	if err != nil {
		return trace.Wrap(err)
	}
	if present && b.queue != nil {
		dqKey := expiry.Key{Scope: scope, Key: key}
		b.queue.InsertOrUpdate(dqKey, scheduledDelete{key: dqKey, nonce: newNonce}, newDelay)
	}
	return nil
}

func (b *Backend) Persist(ctx context.Context, scope, key string) error {
	_, err := b.submit(ctx, func() (any, error) {
		return nil, b.db.Update(func(tx *bolt.Tx) error {
			vb, eb, err := openBuckets(tx, scope, true)
			if err != nil {
				return err
			}
			if vb.Get([]byte(key)) == nil {
				return nil
			}
			old, _ := readFlags(eb, key)
			return eb.Put([]byte(key), encodeFlags(persistentFlags(old.nextNonce())))
		})
	})
	if err != nil {
		return trace.Wrap(err)
	}
	if b.queue != nil {
		b.queue.Remove(expiry.Key{Scope: scope, Key: key})
	}
	return nil
}
