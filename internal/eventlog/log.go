package eventlog

import (
	"context"
	"encoding/binary"
	"sync"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

// AppendRecord is one entry to append: an optional header describing the
// payload and the payload bytes relayed to clients verbatim.
type AppendRecord struct {
	Header  []byte
	Payload []byte
}

// Log is the append-only entry sequence for one session, addressed by
// namespace/topic/partition. A Log hands out monotonically increasing
// sequence numbers under its mutex; everything else reads storage directly.
type Log struct {
	db        *pebblestore.DB
	namespace string
	topic     string
	part      uint32

	mu       sync.Mutex
	lastSeq  uint64
	notifyCh chan struct{}
	archiver ArchiverHook
}

// OpenLog binds a Log to its keyspace and recovers the last assigned
// sequence from partition metadata when the log already exists.
func OpenLog(db *pebblestore.DB, namespace, topic string, partition uint32) (*Log, error) {
	l := &Log{
		db:        db,
		namespace: namespace,
		topic:     topic,
		part:      partition,
		notifyCh:  make(chan struct{}),
		archiver:  noopArchiver{},
	}
	if meta, err := db.Get(KeyLogMeta(namespace, topic, partition)); err == nil && len(meta) >= 8 {
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return l, nil
}

// Append writes the records as one atomic batch and returns their assigned
// sequences. Waiters blocked in WaitForAppend wake once the batch is
// durable, never before.
func (l *Log) Append(ctx context.Context, recs []AppendRecord) ([]uint64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	seqs := make([]uint64, len(recs))
	for i, r := range recs {
		l.lastSeq++
		if err := b.Set(KeyLogEntry(l.namespace, l.topic, l.part, l.lastSeq), EncodeRecord(r.Header, r.Payload), nil); err != nil {
			return nil, err
		}
		seqs[i] = l.lastSeq
	}

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.lastSeq)
	if err := b.Set(KeyLogMeta(l.namespace, l.topic, l.part), meta[:], nil); err != nil {
		return nil, err
	}

	if err := l.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}

	// Closing the channel wakes every waiter; the fresh one arms the next
	// append.
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	return seqs, nil
}
