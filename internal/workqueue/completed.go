package workqueue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
	"github.com/cockroachdb/pebble"
)

// A CompletedEntry records one finished stream job with its timing metadata.
type CompletedEntry struct {
	ID            []byte
	Seq           uint64
	ConsumerID    string
	EnqueuedAtMs  int64
	DequeuedAtMs  int64
	CompletedAtMs int64
	Duration      int64 // CompletedAtMs - DequeuedAtMs
	DeliveryCount int32
	PayloadSize   int32
	Result        string
	Error         string
	Headers       map[string]string
}

// ResultLog is the bounded buffer of recently finished jobs backing the
// recent-results endpoint. Entries are keyed by queue sequence, so a forward
// scan yields enqueue order, and the buffer is pruned by count and age as
// new results land.
type ResultLog struct {
	db         *pebblestore.DB
	namespace  string
	name       string
	maxEntries int
	maxAgeMs   int64
}

// NewResultLog opens the result buffer for one queue.
func NewResultLog(db *pebblestore.DB, namespace, name string) *ResultLog {
	return &ResultLog{
		db:         db,
		namespace:  namespace,
		name:       name,
		maxEntries: 1000,
		maxAgeMs:   24 * 3600 * 1000,
	}
}

// SetRetention overrides the retention bounds. Zero values keep the current
// setting.
func (rl *ResultLog) SetRetention(maxEntries int, maxAgeMs int64) {
	if maxEntries > 0 {
		rl.maxEntries = maxEntries
	}
	if maxAgeMs > 0 {
		rl.maxAgeMs = maxAgeMs
	}
}

// Add stores one finished job and prunes whatever the retention bounds no
// longer cover.
func (rl *ResultLog) Add(ctx context.Context, entry *CompletedEntry) error {
	if entry == nil {
		return fmt.Errorf("nil result entry")
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	meta, err := rl.readMeta()
	if err != nil {
		return fmt.Errorf("read result meta: %w", err)
	}
	if meta.count == 0 {
		meta.firstSeq = entry.Seq
	}
	meta.lastSeq = entry.Seq
	meta.count++
	meta.bytes += int64(len(value))

	batch := rl.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(completedKey(rl.namespace, rl.name, entry.Seq), value, nil); err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	if err := batch.Set(completedMetaKey(rl.namespace, rl.name), meta.encode(), nil); err != nil {
		return fmt.Errorf("set result meta: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}

	if int(meta.count) > rl.maxEntries {
		// Trimmed results are gone for good; the recent view is best effort.
		_ = rl.trim(time.Now().UnixMilli())
	}
	return nil
}

// Recent returns up to limit finished jobs, newest first. Entries past the
// age bound are skipped even when still on disk.
func (rl *ResultLog) Recent(ctx context.Context, limit int) ([]*CompletedEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	lo := completedPrefix(rl.namespace, rl.name)
	hi := append(append([]byte{}, lo...), 0xFF)
	iter, err := rl.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, fmt.Errorf("result iterator: %w", err)
	}
	defer iter.Close()

	cutoff := int64(0)
	if rl.maxAgeMs > 0 {
		cutoff = time.Now().UnixMilli() - rl.maxAgeMs
	}

	entries := make([]*CompletedEntry, 0, limit)
	for ok := iter.Last(); ok && len(entries) < limit; ok = iter.Prev() {
		var entry CompletedEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		if entry.CompletedAtMs < cutoff {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// trim walks the buffer oldest first, deleting entries past the age bound
// and then enough of the remainder to respect the count bound. Meta is
// rebuilt from the survivors.
func (rl *ResultLog) trim(nowMs int64) error {
	lo := completedPrefix(rl.namespace, rl.name)
	hi := append(append([]byte{}, lo...), 0xFF)
	iter, err := rl.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return fmt.Errorf("trim iterator: %w", err)
	}
	defer iter.Close()

	type kept struct {
		seq  uint64
		size int64
	}
	var (
		survivors []kept
		doomed    [][]byte
	)
	cutoff := int64(0)
	if rl.maxAgeMs > 0 {
		cutoff = nowMs - rl.maxAgeMs
	}
	for ok := iter.First(); ok; ok = iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		var entry CompletedEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			// Undecodable rows just go.
			doomed = append(doomed, key)
			continue
		}
		if entry.CompletedAtMs < cutoff {
			doomed = append(doomed, key)
			continue
		}
		survivors = append(survivors, kept{seq: entry.Seq, size: int64(len(iter.Value()))})
	}
	if over := len(survivors) - rl.maxEntries; over > 0 {
		for _, s := range survivors[:over] {
			doomed = append(doomed, completedKey(rl.namespace, rl.name, s.seq))
		}
		survivors = survivors[over:]
	}
	if len(doomed) == 0 {
		return nil
	}

	batch := rl.db.NewBatch()
	defer batch.Close()
	for _, key := range doomed {
		if err := batch.Delete(key, nil); err != nil {
			return fmt.Errorf("delete result: %w", err)
		}
	}
	var meta resultMeta
	if n := len(survivors); n > 0 {
		meta.firstSeq = survivors[0].seq
		meta.lastSeq = survivors[n-1].seq
		meta.count = int32(n)
		for _, s := range survivors {
			meta.bytes += s.size
		}
	}
	if err := batch.Set(completedMetaKey(rl.namespace, rl.name), meta.encode(), nil); err != nil {
		return fmt.Errorf("set result meta: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit trim: %w", err)
	}
	return nil
}

// resultMeta summarizes the buffer so Add can spot a needed trim without
// scanning. Stored as firstSeq | lastSeq | count | bytes, big endian.
type resultMeta struct {
	firstSeq uint64
	lastSeq  uint64
	count    int32
	bytes    int64
}

func (m resultMeta) encode() []byte {
	buf := make([]byte, 28)
	binary.BigEndian.PutUint64(buf[0:8], m.firstSeq)
	binary.BigEndian.PutUint64(buf[8:16], m.lastSeq)
	binary.BigEndian.PutUint32(buf[16:20], uint32(m.count))
	binary.BigEndian.PutUint64(buf[20:28], uint64(m.bytes))
	return buf
}

func (rl *ResultLog) readMeta() (resultMeta, error) {
	value, err := rl.db.Get(completedMetaKey(rl.namespace, rl.name))
	if err != nil {
		if err == pebble.ErrNotFound {
			return resultMeta{}, nil
		}
		return resultMeta{}, err
	}
	if len(value) < 28 {
		return resultMeta{}, fmt.Errorf("result meta too short: %d bytes", len(value))
	}
	return resultMeta{
		firstSeq: binary.BigEndian.Uint64(value[0:8]),
		lastSeq:  binary.BigEndian.Uint64(value[8:16]),
		count:    int32(binary.BigEndian.Uint32(value[16:20])),
		bytes:    int64(binary.BigEndian.Uint64(value[20:28])),
	}, nil
}
