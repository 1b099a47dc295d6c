// Package boltkv implements the embedded persistent Provider backend: a
// bbolt-backed store with two buckets per scope (value tree and expiry
// tree), a bounded-channel worker pool dispatching blocking transactions,
// an optional nonce-guarded deletion thread, and a startup scan
// reconciling on-disk expiry with the in-memory delay-queue scheduler.
package boltkv

import (
	"context"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"github.com/tempuscache/expirekv/delayqueue"
	"github.com/tempuscache/expirekv/expiry"
	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/provider"
	"github.com/tempuscache/expirekv/value"
)

// request is one unit of dispatch handed to the worker pool: a closure
// capturing everything a single operation needs, and a reply channel the
// submitting goroutine waits on.
type request struct {
	fn    func() (any, error)
	reply chan response
}

type response struct {
	val any
	err error
}

// Backend is the persistent Provider implementation.
type Backend struct {
	cfg Config
	db  *bolt.DB
	log *logrus.Entry

	reqCh chan *request

	workerCtx    context.Context
	cancelWorker context.CancelFunc
	workers      *errgroup.Group

	queue        *delayqueue.Queue[expiry.Key, scheduledDelete]
	deletionDone chan struct{}

	closeOnce sync.Once
}

var _ provider.Provider = (*Backend)(nil)

// NewWithConfig opens (creating if necessary) the bbolt file named by
// cfg.Path and starts the worker pool and, if configured, the deletion
// thread — the boltkv analog of pgbk.NewWithConfig(ctx, cfg).
func NewWithConfig(cfg Config) (*Backend, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, trace.Wrap(err, "opening bbolt database at %q", cfg.Path)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(workerCtx)

	b := &Backend{
		cfg:          cfg,
		db:           db,
		log:          logrus.WithField(trace.Component, componentName),
		reqCh:        make(chan *request, cfg.RequestChannelSize),
		workerCtx:    groupCtx,
		cancelWorker: cancel,
		workers:      group,
	}

	for i := 0; i < cfg.Workers; i++ {
		group.Go(func() error {
			return b.workerLoop(groupCtx)
		})
	}

	if cfg.PerformDeletion {
		b.queue = delayqueue.New[expiry.Key, scheduledDelete](cfg.Clock)
		b.deletionDone = make(chan struct{})
		go b.runDeletionThread()

		if cfg.ScanDBOnStart {
			if err := b.scanOnStart(); err != nil {
				_ = b.Close()
				return nil, trace.Wrap(err)
			}
		}
	}

	return b, nil
}

func (b *Backend) workerLoop(ctx context.Context) error {
	for {
		select {
		case req, ok := <-b.reqCh:
			if !ok {
				return nil
			}
			val, err := req.fn()
			req.reply <- response{val: val, err: err}
		case <-ctx.Done():
			return nil
		}
	}
}

// submit enqueues fn onto the bounded request channel and waits for the
// worker that picks it up to reply. A saturated channel returns a Custom
// error immediately rather than blocking the caller indefinitely, per
// spec §5's backpressure policy.
func (b *Backend) submit(ctx context.Context, fn func() (any, error)) (any, error) {
	reply := make(chan response, 1)
	req := &request{fn: fn, reply: reply}

	select {
	case b.reqCh <- req:
	default:
		b.log.Warn("request channel saturated, rejecting request")
		return nil, trace.Wrap(provider.Custom(errChannelFull, "boltkv: request channel saturated"))
	}

	select {
	case resp := <-reply:
		return resp.val, resp.err
	case <-ctx.Done():
		return nil, trace.Wrap(ctx.Err())
	}
}

// Close stops the worker pool and deletion thread and closes the
// underlying database handle.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancelWorker()
		close(b.reqCh)
		_ = b.workers.Wait()

		if b.queue != nil {
			b.queue.Close()
			<-b.deletionDone
		}
		err = b.db.Close()
	})
	return err
}

func scopeKey(scope string) []byte { return []byte(scope) }

func expiryScopeKey(scope string) []byte { return []byte(scope + expirationsTreeSuffix) }

// openBuckets returns the value and expiry buckets for scope, creating
// them if create is true and they don't yet exist.
func openBuckets(tx *bolt.Tx, scope string, create bool) (value *bolt.Bucket, exp *bolt.Bucket, err error) {
	if create {
		value, err = tx.CreateBucketIfNotExists(scopeKey(scope))
		if err != nil {
			return nil, nil, trace.Wrap(err)
		}
		exp, err = tx.CreateBucketIfNotExists(expiryScopeKey(scope))
		if err != nil {
			return nil, nil, trace.Wrap(err)
		}
		return value, exp, nil
	}
	value = tx.Bucket(scopeKey(scope))
	exp = tx.Bucket(expiryScopeKey(scope))
	return value, exp, nil
}

func readFlags(exp *bolt.Bucket, key string) (flags, bool) {
	if exp == nil {
		return flags{}, false
	}
	raw := exp.Get([]byte(key))
	if raw == nil {
		return flags{}, false
	}
	return decodeFlags(raw), true
}
