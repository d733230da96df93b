package workqueue

import (
	"context"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
	"github.com/cockroachdb/pebble"
)

// DefaultGroup is the consumer group the in-process worker pool dequeues
// under.
const DefaultGroup = "workers"

// retryPriority is where failed jobs land when they come back from their
// retry delay. Fresh jobs enqueue at 0, so retries yield to new work.
const retryPriority = 10

// WorkQueue is the durable job queue the dispatcher feeds and the worker
// pool drains. Jobs are indexed by priority for immediate delivery or by
// fire time when delayed; every delivery holds a lease that a background
// sweeper reclaims once it expires.
type WorkQueue struct {
	db        *pebblestore.DB
	namespace string
	queue     string
	part      uint32

	mu        sync.Mutex // guards lastSeq and sweepStop
	lastSeq   uint64
	sweepStop chan struct{}
}

// OpenQueue binds a queue to its keyspace, restoring the last assigned
// sequence from partition metadata when present.
func OpenQueue(db *pebblestore.DB, namespace, queue string, partition uint32) (*WorkQueue, error) {
	q := &WorkQueue{db: db, namespace: namespace, queue: queue, part: partition}
	q.lastSeq = q.loadMeta().lastSeq
	return q, nil
}

// queueMeta is the per-partition summary record: the last assigned seq and
// an availability counter. The counter is maintained best effort outside
// the enqueue mutex, so it can drift under concurrent dequeues.
type queueMeta struct {
	lastSeq   uint64
	available uint32
}

func (m queueMeta) encode() []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint64(out[:8], m.lastSeq)
	binary.BigEndian.PutUint32(out[8:12], m.available)
	return out
}

func (q *WorkQueue) loadMeta() queueMeta {
	var m queueMeta
	raw, err := q.db.Get(MetaKey(q.namespace, q.queue, q.part))
	if err != nil {
		return m
	}
	if len(raw) >= 8 {
		m.lastSeq = binary.BigEndian.Uint64(raw[:8])
	}
	if len(raw) >= 12 {
		m.available = binary.BigEndian.Uint32(raw[8:12])
	}
	return m
}

// seqToMsgID widens a sequence into the 16-byte id used by lease, delay and
// DLQ keys; the seq occupies the low half.
func seqToMsgID(seq uint64) [16]byte {
	var id [16]byte
	binary.BigEndian.PutUint64(id[8:], seq)
	return id
}

func seqFromMsgID(id [16]byte) uint64 { return binary.BigEndian.Uint64(id[8:]) }

// Lease records pack expiry and the failed-delivery count.
func encodeLease(expMs int64, attempts uint32) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint64(out[:8], uint64(expMs))
	binary.BigEndian.PutUint32(out[8:12], attempts)
	return out
}

func decodeLease(v []byte) (expMs int64, attempts uint32, ok bool) {
	if len(v) < 12 {
		return 0, 0, false
	}
	return int64(binary.BigEndian.Uint64(v[:8])), binary.BigEndian.Uint32(v[8:12]), true
}

// Delay index values point back at the job with its original priority.
func encodeDelayRef(priority uint32, seq uint64) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint32(out[:4], priority)
	binary.BigEndian.PutUint64(out[4:12], seq)
	return out
}

func decodeDelayRef(v []byte) (priority uint32, seq uint64, ok bool) {
	if len(v) < 12 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint32(v[:4]), binary.BigEndian.Uint64(v[4:12]), true
}

func scanUpperBound(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), 0xFF)
}

// Enqueue appends one job and indexes it for delivery: by priority when
// immediate, into the delay index when delayMs > 0. Lower priority values
// dequeue first. A nowMs <= 0 means the wall clock.
func (q *WorkQueue) Enqueue(ctx context.Context, header, payload []byte, priority uint32, delayMs int64, nowMs int64) (uint64, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.db.NewBatch()
	defer b.Close()

	q.lastSeq++
	seq := q.lastSeq
	if err := b.Set(MsgKey(q.namespace, q.queue, q.part, seq), EncodeMessage(header, payload), nil); err != nil {
		return 0, err
	}

	m := q.loadMeta()
	m.lastSeq = seq
	if delayMs > 0 {
		fire := uint64(nowMs + delayMs)
		if err := b.Set(DelayKey(q.namespace, q.queue, fire, seqToMsgID(seq)), encodeDelayRef(priority, seq), nil); err != nil {
			return 0, err
		}
	} else {
		if err := b.Set(PrioKey(q.namespace, q.queue, priority, seq), nil, nil); err != nil {
			return 0, err
		}
		m.available++
	}
	if err := b.Set(MetaKey(q.namespace, q.queue, q.part), m.encode(), nil); err != nil {
		return 0, err
	}

	if err := q.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return seq, nil
}

// LeasedMessage is one delivery: the decoded job plus its lease expiry and
// how many failed deliveries preceded it.
type LeasedMessage struct {
	Seq      uint64
	Header   []byte
	Payload  []byte
	ExpiryMs int64
	Attempts uint32
}

// promoteDue moves delayed jobs whose fire time has passed into the
// priority index so the next dequeue sees them.
func (q *WorkQueue) promoteDue(ctx context.Context, nowMs int64, max int) error {
	prefix := DelayPrefix(q.namespace, q.queue)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: scanUpperBound(prefix)})
	if err != nil {
		return err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	promoted := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		if len(key) < len(prefix)+8+16 {
			continue
		}
		fire := int64(binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8]))
		if fire > nowMs {
			// Fire-time ordered index: the rest is not due yet.
			break
		}
		prio, seq, okRef := decodeDelayRef(iter.Value())
		if !okRef {
			continue
		}
		if err := b.Delete(key, nil); err != nil {
			return err
		}
		if err := b.Set(PrioKey(q.namespace, q.queue, prio, seq), nil, nil); err != nil {
			return err
		}
		promoted++
		if max > 0 && promoted >= max {
			break
		}
	}
	if promoted == 0 {
		return nil
	}

	m := q.loadMeta()
	m.available += uint32(promoted)
	if err := b.Set(MetaKey(q.namespace, q.queue, q.part), m.encode(), nil); err != nil {
		return err
	}
	return q.db.CommitBatch(ctx, b)
}

// Dequeue leases up to count jobs in priority order. Attempts recorded by
// earlier failed deliveries carry into the fresh lease.
func (q *WorkQueue) Dequeue(ctx context.Context, group string, count int, leaseMs int64, nowMs int64) ([]LeasedMessage, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	if count <= 0 {
		count = 1
	}
	if leaseMs <= 0 {
		leaseMs = 30_000
	}
	_ = q.promoteDue(ctx, nowMs, count*4)

	prefix := PrioPrefix(q.namespace, q.queue)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: scanUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	msgs := make([]LeasedMessage, 0, count)
	for ok := iter.First(); ok && len(msgs) < count; ok = iter.Next() {
		k := iter.Key()
		if len(k) < len(prefix)+4+16 {
			continue
		}
		seq := binary.BigEndian.Uint64(k[len(k)-8:])

		raw, errGet := q.db.Get(MsgKey(q.namespace, q.queue, q.part, seq))
		if errGet != nil {
			// Index entry outlived its job; drop it.
			_ = b.Delete(k, nil)
			continue
		}
		dec, okDec := DecodeMessage(raw)
		if !okDec {
			_ = b.Delete(k, nil)
			continue
		}

		exp := nowMs + leaseMs
		id := seqToMsgID(seq)
		var attempts uint32
		if prior, errPrior := q.db.Get(LeaseKey(q.namespace, q.queue, group, id)); errPrior == nil {
			if _, a, okLease := decodeLease(prior); okLease {
				attempts = a
			}
		}
		if err := b.Set(LeaseKey(q.namespace, q.queue, group, id), encodeLease(exp, attempts), nil); err != nil {
			return nil, err
		}
		if err := b.Set(LeaseIdxKey(q.namespace, q.queue, uint64(exp), id), nil, nil); err != nil {
			return nil, err
		}
		if err := b.Delete(k, nil); err != nil {
			return nil, err
		}
		msgs = append(msgs, LeasedMessage{Seq: seq, Header: dec.Header, Payload: dec.Payload, ExpiryMs: exp, Attempts: attempts})
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	m := q.loadMeta()
	if n := uint32(len(msgs)); m.available > n {
		m.available -= n
	} else {
		m.available = 0
	}
	if err := b.Set(MetaKey(q.namespace, q.queue, q.part), m.encode(), nil); err != nil {
		return nil, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ExtendLease pushes the expiry of live leases forward, preserving their
// attempt counts. Long runs call this mid-flight so the sweeper does not
// hand their jobs to another worker.
func (q *WorkQueue) ExtendLease(ctx context.Context, group string, seqs []uint64, leaseMs int64, nowMs int64) error {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	if leaseMs <= 0 {
		leaseMs = 30_000
	}
	b := q.db.NewBatch()
	defer b.Close()
	for _, seq := range seqs {
		id := seqToMsgID(seq)
		exp := nowMs + leaseMs
		var attempts uint32
		if existing, err := q.db.Get(LeaseKey(q.namespace, q.queue, group, id)); err == nil {
			if oldExp, a, ok := decodeLease(existing); ok {
				attempts = a
				if oldExp != exp {
					_ = b.Delete(LeaseIdxKey(q.namespace, q.queue, uint64(oldExp), id), nil)
				}
			}
		}
		if err := b.Set(LeaseKey(q.namespace, q.queue, group, id), encodeLease(exp, attempts), nil); err != nil {
			return err
		}
		if err := b.Set(LeaseIdxKey(q.namespace, q.queue, uint64(exp), id), nil, nil); err != nil {
			return err
		}
	}
	return q.db.CommitBatch(ctx, b)
}

// Complete retires finished jobs: lease, expiry index entry and stored
// message go in one batch, so the sweeper can never resurrect a seq that
// already finished.
func (q *WorkQueue) Complete(ctx context.Context, group string, seqs []uint64) error {
	b := q.db.NewBatch()
	defer b.Close()
	for _, seq := range seqs {
		id := seqToMsgID(seq)
		if existing, err := q.db.Get(LeaseKey(q.namespace, q.queue, group, id)); err == nil {
			if exp, _, ok := decodeLease(existing); ok {
				_ = b.Delete(LeaseIdxKey(q.namespace, q.queue, uint64(exp), id), nil)
			}
		}
		if err := b.Delete(LeaseKey(q.namespace, q.queue, group, id), nil); err != nil {
			return err
		}
		if err := b.Delete(MsgKey(q.namespace, q.queue, q.part, seq), nil); err != nil {
			return err
		}
	}
	return q.db.CommitBatch(ctx, b)
}

// Fail releases leases after failed runs. With toDLQ the job's payload
// moves to the dead-letter keyspace; otherwise the job re-enters the delay
// index and comes back retryAfterMs later. The bumped attempt count rides
// in a residual lease record until the next delivery picks it up.
func (q *WorkQueue) Fail(ctx context.Context, group string, seqs []uint64, retryAfterMs int64, toDLQ bool, nowMs int64) error {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	b := q.db.NewBatch()
	defer b.Close()
	for _, seq := range seqs {
		id := seqToMsgID(seq)
		var attempts uint32
		if existing, err := q.db.Get(LeaseKey(q.namespace, q.queue, group, id)); err == nil {
			if exp, a, ok := decodeLease(existing); ok {
				attempts = a
				_ = b.Delete(LeaseIdxKey(q.namespace, q.queue, uint64(exp), id), nil)
			}
		}
		attempts++
		_ = b.Delete(LeaseKey(q.namespace, q.queue, group, id), nil)

		if toDLQ {
			if raw, err := q.db.Get(MsgKey(q.namespace, q.queue, q.part, seq)); err == nil {
				if err := b.Set(DLQKey(q.namespace, q.queue, group, id), raw, nil); err != nil {
					return err
				}
			}
			if err := b.Delete(MsgKey(q.namespace, q.queue, q.part, seq), nil); err != nil {
				return err
			}
			continue
		}

		fire := uint64(nowMs + retryAfterMs)
		if err := b.Set(DelayKey(q.namespace, q.queue, fire, id), encodeDelayRef(retryPriority, seq), nil); err != nil {
			return err
		}
		if err := b.Set(LeaseKey(q.namespace, q.queue, group, id), encodeLease(nowMs, attempts), nil); err != nil {
			return err
		}
	}
	return q.db.CommitBatch(ctx, b)
}

// ReclaimExpired returns expired-lease jobs to availability at
// defaultPriority and clears their lease state, so a worker that died
// mid-run forfeits its jobs to the next dequeue.
func (q *WorkQueue) ReclaimExpired(ctx context.Context, group string, nowMs int64, max int, defaultPriority uint32) (int, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	prefix := LeaseIdxPrefix(q.namespace, q.queue)
	hi := scanUpperBound(prefix)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	reclaimed := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		k := iter.Key()
		if len(k) < len(prefix)+8+16 {
			continue
		}
		exp := int64(binary.BigEndian.Uint64(k[len(prefix) : len(prefix)+8]))
		if exp > nowMs {
			// Deadline-ordered index: the rest is still leased.
			break
		}
		var id [16]byte
		copy(id[:], k[len(k)-16:])
		seq := seqFromMsgID(id)

		_ = b.Delete(k, nil)
		_ = b.Delete(LeaseKey(q.namespace, q.queue, group, id), nil)
		if err := b.Set(PrioKey(q.namespace, q.queue, defaultPriority, seq), nil, nil); err != nil {
			return reclaimed, err
		}
		reclaimed++
		if max > 0 && reclaimed >= max {
			break
		}
	}
	if reclaimed == 0 {
		return 0, nil
	}

	m := q.loadMeta()
	m.available += uint32(reclaimed)
	if err := b.Set(MetaKey(q.namespace, q.queue, q.part), m.encode(), nil); err != nil {
		return reclaimed, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return reclaimed, err
	}
	if reclaimed >= 4096 {
		// A mass reclaim leaves a tombstone pile behind; compact it away.
		_ = q.db.CompactRange(prefix, hi)
	}
	return reclaimed, nil
}

// StartSweeper launches the background loop that reclaims expired leases.
// Calling it while a sweeper already runs is a no-op.
func (q *WorkQueue) StartSweeper(group string, interval time.Duration, maxPerTick int, defaultPriority uint32) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if maxPerTick <= 0 {
		maxPerTick = 1024
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sweepStop != nil {
		return
	}
	stop := make(chan struct{})
	q.sweepStop = stop
	go q.sweepLoop(stop, group, interval, maxPerTick, defaultPriority)
}

func (q *WorkQueue) sweepLoop(stop <-chan struct{}, group string, interval time.Duration, maxPerTick int, defaultPriority uint32) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		// Jitter keeps the sweepers of many queues from ticking in lockstep.
		wait := interval + time.Duration(rng.Int63n(int64(interval/10+1)))
		select {
		case <-stop:
			return
		case <-time.After(wait):
			_, _ = q.ReclaimExpired(context.Background(), group, time.Now().UnixMilli(), maxPerTick, defaultPriority)
		}
	}
}

// StopSweeper halts the loop. A reclaim already in flight finishes on its
// own.
func (q *WorkQueue) StopSweeper() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sweepStop != nil {
		close(q.sweepStop)
		q.sweepStop = nil
	}
}

// QueueStats is a point-in-time summary of queue state.
type QueueStats struct {
	LastSeq      uint64
	Available    int
	Leased       int
	DeadLettered int
}

// Stats reports enqueue progress, availability and the lease/DLQ backlog
// for a group. Counts come from index scans, so they are approximate under
// concurrent writers.
func (q *WorkQueue) Stats(group string) (QueueStats, error) {
	m := q.loadMeta()
	st := QueueStats{LastSeq: m.lastSeq, Available: int(m.available)}

	leased, err := q.countPrefix(LeasePrefix(q.namespace, q.queue, group))
	if err != nil {
		return st, err
	}
	st.Leased = leased

	dead, err := q.countPrefix(DLQPrefix(q.namespace, q.queue, group))
	if err != nil {
		return st, err
	}
	st.DeadLettered = dead
	return st, nil
}

func (q *WorkQueue) countPrefix(prefix []byte) (int, error) {
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: scanUpperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}
