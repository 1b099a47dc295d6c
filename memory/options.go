package memory

import (
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Option configures a Backend at construction time, generalizing the
// teacher's functional-options pattern (options.go's Option func(*Cache))
// from a single cleanup interval to shard count, capacity guard, clock
// and logger injection.
type Option func(*config)

type config struct {
	shardCount   int
	maxEntries   int
	delayQueueBuf int
	clock        clockwork.Clock
	log          *logrus.Entry
}

func defaultConfig() *config {
	return &config{
		shardCount:    1,
		maxEntries:    0,
		delayQueueBuf: 2048,
		clock:         clockwork.NewRealClock(),
		log:           logrus.WithField("component", "memory"),
	}
}

// WithShardCount partitions the key space across n shards, each with its
// own mutex. The default is 1, matching the teacher's single-mutex Cache;
// raise it for higher write concurrency across unrelated keys.
func WithShardCount(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.shardCount = n
		}
	}
}

// WithMaxEntries bounds every shard's entry count via LRU eviction,
// adapting the teacher's maxEntries/evictOldest machinery. 0 (the
// default) means unbounded; TTL expiry is the only eviction policy spec.md
// names, so this is an additive capacity backstop, not a required one.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		c.maxEntries = n
	}
}

// WithDelayQueueBuffer sets the buffer size of the channel carrying
// expired keys from the delay-queue worker to the reaper. Default 2048,
// matching the spec's suggested default channel sizing.
func WithDelayQueueBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.delayQueueBuf = n
		}
	}
}

// WithClock injects a clockwork.Clock, letting tests use a FakeClock to
// deterministically advance expiry without sleeping.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger attaches a *logrus.Entry the backend logs expiry-sweep and
// eviction events through.
func WithLogger(log *logrus.Entry) Option {
	return func(c *config) {
		c.log = log
	}
}
