package boltkv

import (
	bolt "go.etcd.io/bbolt"

	"github.com/tempuscache/expirekv/expiry"
)

// scheduledDelete is the payload carried by the delay-queue for a
// persistent-backend deletion: the (scope, key) identity plus the nonce
// that was current on the write that scheduled it. The delete only takes
// physical effect if that nonce still matches the live on-disk record at
// fire time (spec invariant I5).
type scheduledDelete struct {
	key   expiry.Key
	nonce expiry.Nonce
}

// runDeletionThread drains b.queue and, for each scheduled delete,
// performs a nonce-guarded physical removal: the deletion only takes
// effect if the on-disk record's nonce still matches the nonce the
// deletion was scheduled under and the record is still non-persistent —
// otherwise an intervening write has already superseded it. Grounded in
// actix-storage-sled/src/inner.rs's spawn_expiry_thread check
// (`exp.nonce.get() == item.nonce && exp.persist.get() == 0`).
func (b *Backend) runDeletionThread() {
	defer close(b.deletionDone)
	for {
		item, ok := b.queue.Pop(b.workerCtx)
		if !ok {
			return
		}
		b.deleteIfNonceMatches(item)
	}
}

func (b *Backend) deleteIfNonceMatches(item scheduledDelete) {
	_ = b.db.Update(func(tx *bolt.Tx) error {
		vb, eb, _ := openBuckets(tx, item.key.Scope, false)
		if vb == nil || eb == nil {
			return nil
		}
		f, ok := readFlags(eb, item.key.Key)
		if !ok || f.persist {
			return nil
		}
		if f.nonce != item.nonce {
			return nil
		}
		if !f.expired(b.cfg.Clock.Now()) {
			return nil
		}
		if err := vb.Delete([]byte(item.key.Key)); err != nil {
			return err
		}
		return eb.Delete([]byte(item.key.Key))
	})
}
