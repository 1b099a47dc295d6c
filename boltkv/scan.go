package boltkv

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/tempuscache/expirekv/expiry"
)

// scanOnStart iterates every reserved expiry bucket in the database:
// entries whose deadline has already passed are removed immediately;
// entries with a future deadline are (re)enqueued in the delay-queue at
// that deadline, carrying their current nonce — the same reconciliation
// spec §4.3's "scan_db_on_start" describes.
func (b *Backend) scanOnStart() error {
	type pending struct {
		key   expiry.Key
		nonce expiry.Nonce
		delay int64 // nanoseconds until deadline, clamped to >= 0
	}
	var (
		toDeleteScope, toDeleteKey []string
		toSchedule                 []pending
	)

	now := b.cfg.Clock.Now()
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, bucket *bolt.Bucket) error {
			scope, isExpiryBucket := strings.CutSuffix(string(name), expirationsTreeSuffix)
			if !isExpiryBucket {
				return nil
			}
			return bucket.ForEach(func(k, raw []byte) error {
				f := decodeFlags(raw)
				if f.persist {
					return nil
				}
				if f.expired(now) {
					toDeleteScope = append(toDeleteScope, scope)
					toDeleteKey = append(toDeleteKey, string(k))
					return nil
				}
				remaining, _ := f.remaining(now)
				toSchedule = append(toSchedule, pending{
					key:   expiry.Key{Scope: scope, Key: string(k)},
					nonce: f.nonce,
					delay: int64(remaining),
				})
				return nil
			})
		})
	})
	if err != nil {
		return err
	}

	if len(toDeleteScope) > 0 {
		err = b.db.Update(func(tx *bolt.Tx) error {
			for i := range toDeleteScope {
				vb, eb, _ := openBuckets(tx, toDeleteScope[i], false)
				if vb != nil {
					if err := vb.Delete([]byte(toDeleteKey[i])); err != nil {
						return err
					}
				}
				if eb != nil {
					if err := eb.Delete([]byte(toDeleteKey[i])); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, p := range toSchedule {
		b.queue.InsertOrUpdate(p.key, scheduledDelete{key: p.key, nonce: p.nonce}, time.Duration(p.delay))
	}
	b.log.WithFields(logrus.Fields{
		"deleted":   len(toDeleteKey),
		"scheduled": len(toSchedule),
	}).Info("reconciled on-disk expiry with delay-queue on start")
	return nil
}
