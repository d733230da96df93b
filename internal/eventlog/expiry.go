package eventlog

import (
	"context"
	"encoding/binary"
	"time"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

// SetExpiry stamps the partition with a reclamation deadline (unix ms) and
// writes the matching namespace expiry-index entry in the same batch.
// Re-stamping replaces any earlier index entry, so a partition is indexed
// under at most one deadline.
func (l *Log) SetExpiry(ctx context.Context, deadlineMs int64) error {
	b := l.db.NewBatch()
	defer b.Close()

	if old, err := l.db.Get(KeyLogExpiry(l.namespace, l.topic, l.part)); err == nil && len(old) >= 8 {
		prev := int64(binary.BigEndian.Uint64(old[:8]))
		if prev != deadlineMs {
			if err := b.Delete(KeyExpiryIndex(l.namespace, prev, l.topic, l.part), nil); err != nil {
				return err
			}
		}
	}

	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(deadlineMs))
	if err := b.Set(KeyLogExpiry(l.namespace, l.topic, l.part), v[:], nil); err != nil {
		return err
	}
	if err := b.Set(KeyExpiryIndex(l.namespace, deadlineMs, l.topic, l.part), nil, nil); err != nil {
		return err
	}
	return l.db.CommitBatch(ctx, b)
}

// ExpiresAtMs returns the partition's reclamation deadline, if one is set.
func (l *Log) ExpiresAtMs() (int64, bool) {
	v, err := l.db.Get(KeyLogExpiry(l.namespace, l.topic, l.part))
	if err != nil || len(v) < 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(v[:8])), true
}

func (l *Log) expiredNow() bool {
	deadline, ok := l.ExpiresAtMs()
	return ok && deadline <= time.Now().UnixMilli()
}

// DropLog removes every key belonging to a topic: entries, metadata, expiry
// stamps and consumer cursors across all partitions. Index entries for the
// dropped partitions are left to the sweeper, which clears dangling entries
// when the stamp they point at is gone.
func DropLog(db *pebblestore.DB, namespace, topic string) error {
	logPfx := KeyLogPrefix(namespace, topic)
	if err := db.DeleteRange(logPfx, prefixUpperBound(logPfx)); err != nil {
		return err
	}
	curPfx := KeyCursorTopicPrefix(namespace, topic)
	return db.DeleteRange(curPfx, prefixUpperBound(curPfx))
}
