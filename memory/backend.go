// Package memory implements the in-memory Provider backend: a sharded
// concurrent map plus a single delay-queue-driven expirer and reaper,
// generalizing the teacher's LRU TTL cache (cache.go/janitor.go) to the
// scope/mutation/list-aware contract the facade requires.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/gravitational/trace"

	"github.com/tempuscache/expirekv/delayqueue"
	"github.com/tempuscache/expirekv/expiry"
	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/provider"
	"github.com/tempuscache/expirekv/value"
)

// Backend is the in-memory Provider implementation.
type Backend struct {
	shards []*shard
	cfg    *config
	stats  stats

	queue  *delayqueue.Queue[expiry.Key, expiry.Key]
	worker *delayqueue.Worker[expiry.Key, expiry.Key]

	closeOnce  sync.Once
	reaperDone chan struct{}
}

var _ provider.Provider = (*Backend)(nil)

// New constructs a Backend. With no options it behaves like the teacher's
// zero-config Cache: one shard, unbounded capacity, TTL-only eviction.
func New(opts ...Option) *Backend {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	b := &Backend{
		shards:     make([]*shard, cfg.shardCount),
		cfg:        cfg,
		reaperDone: make(chan struct{}),
	}
	for i := range b.shards {
		b.shards[i] = newShard(cfg.maxEntries, &b.stats)
	}

	b.queue = delayqueue.New[expiry.Key, expiry.Key](cfg.clock)
	b.worker = delayqueue.StartWorker(b.queue, cfg.delayQueueBuf)
	go b.reap()

	return b
}

func (b *Backend) shardFor(scope, key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return b.shards[h.Sum32()%uint32(len(b.shards))]
}

// Stats returns a snapshot of the backend's hit/miss/eviction counters.
func (b *Backend) Stats() Stats {
	return b.stats.snapshot()
}

// Close stops the expirer and reaper goroutines and releases the
// delay-queue. Pending operations already past their locks still
// complete; nothing further is scheduled after Close returns.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		b.worker.Stop()
		b.queue.Close()
		<-b.reaperDone
	})
	return nil
}

func (b *Backend) Keys(ctx context.Context, scope string) ([]string, error) {
	var keys []string
	now := b.cfg.clock.Now()
	for _, sh := range b.shards {
		sh.mu.RLock()
		if m, ok := sh.scopes[scope]; ok {
			for k, e := range m {
				if !e.expired(now) {
					keys = append(keys, k)
				}
			}
		}
		sh.mu.RUnlock()
	}
	return keys, nil
}

func (b *Backend) Set(ctx context.Context, scope, key string, v value.Value) error {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m := sh.scopeMap(scope)
	if old, existed := m[key]; existed && !old.record.Persistent {
		b.queue.Remove(expiry.Key{Scope: scope, Key: key})
	}
	m[key] = &entry{value: v.ToOwned(), record: expiry.PersistentRecord()}
	sh.touch(scope, key)
	return nil
}

func (b *Backend) SetExpiring(ctx context.Context, scope, key string, v value.Value, d time.Duration) error {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := b.cfg.clock.Now()
	m := sh.scopeMap(scope)
	m[key] = &entry{value: v.ToOwned(), record: expiry.ExpiringRecord(now, d)}
	sh.touch(scope, key)
	dqKey := expiry.Key{Scope: scope, Key: key}
	b.queue.InsertOrUpdate(dqKey, dqKey, d)
	return nil
}

func (b *Backend) Get(ctx context.Context, scope, key string) (value.Owned, bool, error) {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.scopes[scope]
	if !ok {
		b.stats.misses.Add(1)
		return value.Owned{}, false, nil
	}
	e, ok := m[key]
	if !ok {
		b.stats.misses.Add(1)
		return value.Owned{}, false, nil
	}
	if e.expired(b.cfg.clock.Now()) {
		delete(m, key)
		sh.forget(scope, key)
		b.stats.misses.Add(1)
		return value.Owned{}, false, nil
	}
	sh.touch(scope, key)
	b.stats.hits.Add(1)
	return e.value, true, nil
}

func (b *Backend) GetExpiring(ctx context.Context, scope, key string) (value.Owned, time.Duration, bool, bool, error) {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return value.Owned{}, 0, false, false, nil
	}
	e, ok := m[key]
	if !ok || e.expired(b.cfg.clock.Now()) {
		return value.Owned{}, 0, false, false, nil
	}
	sh.touch(scope, key)
	remaining, hasDeadline := e.record.Remaining(b.cfg.clock.Now())
	return e.value, remaining, hasDeadline, true, nil
}

func (b *Backend) GetRange(ctx context.Context, scope, key string, start, end int64) ([]value.Owned, error) {
	sh := b.shardFor(scope, key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return nil, nil
	}
	e, ok := m[key]
	if !ok || e.expired(b.cfg.clock.Now()) {
		return nil, nil
	}
	items, isList := e.value.Items()
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

// resolveRange converts Redis-style (possibly negative, inclusive) start
// and end indices into a clamped [lo, hi] pair over a slice of length n.
// A caller should treat lo > hi as an empty result.
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
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m := sh.scopeMap(scope)
	e, ok := m[key]
	if ok && e.expired(b.cfg.clock.Now()) {
		ok = false
	}

	var items []value.Owned
	record := expiry.PersistentRecord()
	if ok {
		var isList bool
		items, isList = e.value.Items()
		if !isList {
			return trace.Wrap(value.ErrTypeConversion, "push requires a List value")
		}
		record = e.record
	}
	for _, v := range vs {
		items = append(items, v.ToOwned())
	}
	newList, err := value.OwnedList(items...)
	if err != nil {
		return trace.Wrap(err)
	}
	m[key] = &entry{value: newList, record: record}
	sh.touch(scope, key)
	return nil
}

func (b *Backend) Pop(ctx context.Context, scope, key string) (value.Owned, bool, error) {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return value.Owned{}, false, nil
	}
	e, ok := m[key]
	if !ok || e.expired(b.cfg.clock.Now()) {
		return value.Owned{}, false, nil
	}
	items, isList := e.value.Items()
	if !isList {
		return value.Owned{}, false, trace.Wrap(value.ErrTypeConversion, "pop requires a List value")
	}
	if len(items) == 0 {
		return value.Owned{}, false, nil
	}
	last := items[len(items)-1]
	newList, err := value.OwnedList(items[:len(items)-1]...)
	if err != nil {
		return value.Owned{}, false, trace.Wrap(err)
	}
	e.value = newList
	sh.touch(scope, key)
	return last, true, nil
}

func (b *Backend) Mutate(ctx context.Context, scope, key string, p mutation.Program) (int64, error) {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m := sh.scopeMap(scope)
	e, ok := m[key]
	now := b.cfg.clock.Now()

	var register int64
	record := expiry.PersistentRecord()
	if ok && !e.expired(now) {
		n, isNumber := e.value.Number()
		if !isNumber {
			return 0, trace.Wrap(value.ErrTypeConversion, "mutate requires a Number value")
		}
		register = n
		record = e.record
	} else if ok {
		// Expired key: the spec's resolved open question has mutate
		// resurrect it as a fresh persistent entry starting from 0.
		delete(m, key)
		sh.forget(scope, key)
		b.queue.Remove(expiry.Key{Scope: scope, Key: key})
	}

	result, err := mutation.Eval(register, p)
	if err != nil {
		return 0, trace.Wrap(err)
	}
	m[key] = &entry{value: value.OwnedNumber(result), record: record}
	sh.touch(scope, key)
	return result, nil
}

func (b *Backend) Remove(ctx context.Context, scope, key string) (value.Owned, bool, error) {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return value.Owned{}, false, nil
	}
	e, ok := m[key]
	if !ok {
		return value.Owned{}, false, nil
	}
	now := b.cfg.clock.Now()
	delete(m, key)
	sh.forget(scope, key)
	if !e.record.Persistent {
		b.queue.Remove(expiry.Key{Scope: scope, Key: key})
	}
	if e.expired(now) {
		return value.Owned{}, false, nil
	}
	return e.value, true, nil
}

func (b *Backend) ContainsKey(ctx context.Context, scope, key string) (bool, error) {
	_, found, err := b.Get(ctx, scope, key)
	return found, err
}

func (b *Backend) Expire(ctx context.Context, scope, key string, d time.Duration) error {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return nil
	}
	e, ok := m[key]
	now := b.cfg.clock.Now()
	if !ok || e.expired(now) {
		return nil
	}
	e.record = expiry.ExpiringRecord(now, d)
	dqKey := expiry.Key{Scope: scope, Key: key}
	b.queue.InsertOrUpdate(dqKey, dqKey, d)
	return nil
}

func (b *Backend) Expiry(ctx context.Context, scope, key string) (time.Duration, bool, error) {
	sh := b.shardFor(scope, key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return 0, false, nil
	}
	e, ok := m[key]
	now := b.cfg.clock.Now()
	if !ok || e.expired(now) {
		return 0, false, nil
	}
	remaining, hasDeadline := e.record.Remaining(now)
	return remaining, hasDeadline, nil
}

func (b *Backend) Extend(ctx context.Context, scope, key string, d time.Duration) error {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return nil
	}
	e, ok := m[key]
	now := b.cfg.clock.Now()
	if !ok || e.expired(now) {
		return nil
	}

	dqKey := expiry.Key{Scope: scope, Key: key}
	b.queue.Extend(dqKey, dqKey, d)
	if remaining, hasDeadline := b.queue.Get(dqKey); hasDeadline {
		e.record = expiry.Record{Persistent: false, Deadline: now.Add(remaining)}
	}
	return nil
}

func (b *Backend) Persist(ctx context.Context, scope, key string) error {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return nil
	}
	e, ok := m[key]
	if !ok {
		return nil
	}
	e.record = expiry.PersistentRecord()
	b.queue.Remove(expiry.Key{Scope: scope, Key: key})
	return nil
}
