package eventlog

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cockroachdb/pebble"
)

// TrimToMaxBytes drops oldest entries until the log's total value bytes fit
// under maxBytes. This caps a single session that a runaway generator keeps
// growing; whole-session reclamation goes through expiry instead. Deletes
// are committed in batches of batchLimit keys, with an optional pause
// between commits so a large trim cannot starve readers. Returns the number
// of entries deleted.
func (l *Log) TrimToMaxBytes(ctx context.Context, maxBytes int64, batchLimit int, throttle time.Duration) (int, error) {
	if maxBytes < 0 {
		return 0, nil
	}
	if batchLimit <= 0 {
		batchLimit = 1024
	}

	low := KeyLogEntry(l.namespace, l.topic, l.part, 0)
	hi := KeyLogEntry(l.namespace, l.topic, l.part, ^uint64(0))
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var total int64
	for ok := iter.First(); ok; ok = iter.Next() {
		total += int64(len(iter.Value()))
	}
	if total <= maxBytes {
		return 0, nil
	}

	deleted := 0
	ok := iter.First()
	for ok && total > maxBytes {
		b := l.db.NewBatch()
		var batchFirst, batchLast uint64
		n := 0
		for ok && n < batchLimit && total > maxBytes {
			seq := binary.BigEndian.Uint64(iter.Key()[len(low)-8:])
			size := int64(len(iter.Value()))
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, err
			}
			if n == 0 {
				batchFirst = seq
			}
			batchLast = seq
			total -= size
			deleted++
			n++
			ok = iter.Next()
		}
		if err := l.db.CommitBatch(ctx, b); err != nil {
			b.Close()
			return deleted, err
		}
		b.Close()
		// Every committed range gets exactly one emit, so an archiver sees
		// no overlaps and nothing it cannot trust after a mid-trim failure.
		l.archiver.EmitTrimRange(l.namespace, l.topic, l.part, batchFirst, batchLast)
		if throttle > 0 {
			time.Sleep(throttle)
		}
	}
	return deleted, nil
}
