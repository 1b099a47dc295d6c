package memory

import "github.com/sirupsen/logrus"

// reap drains expired ExpiryKeys the delay-queue worker forwards and
// performs the physical (hard) deletion, matching §9's "Hard: a
// background task physically removes them (in-memory default)" policy.
// This goroutine and the delay-queue worker together replace the
// teacher's ticker-based janitor (janitor.go's startJanitor) with the
// spec's push-driven expirer/reaper split.
func (b *Backend) reap() {
	defer close(b.reaperDone)
	for k := range b.worker.Expired {
		b.deleteIfExpired(k.Scope, k.Key)
	}
}

// deleteIfExpired removes (scope,key) only if its current record is
// still expired. A scheduled deletion whose key has since been
// overwritten finds a non-expired record here and is silently dropped —
// this is the in-memory analog of the persistent backend's nonce check:
// the record itself, not a separate counter, is the source of truth a
// stale deletion is checked against.
func (b *Backend) deleteIfExpired(scope, key string) {
	sh := b.shardFor(scope, key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.scopes[scope]
	if !ok {
		return
	}
	e, ok := m[key]
	if !ok || !e.expired(b.cfg.clock.Now()) {
		return
	}
	delete(m, key)
	sh.forget(scope, key)
	b.stats.evictions.Add(1)
	b.cfg.log.WithFields(logrus.Fields{"scope": scope, "key": key}).Debug("reaped expired entry")
}
