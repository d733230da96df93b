package eventlog

import (
	"context"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

// ExpirySweeper reclaims logs whose deadline has passed. It scans the
// namespace expiry index in deadline order, so each pass only touches keys
// that are already due.
type ExpirySweeper struct {
	db        *pebblestore.DB
	namespace string
	interval  time.Duration
	onDrop    func(topic string)

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewExpirySweeper builds a sweeper for one namespace.
func NewExpirySweeper(db *pebblestore.DB, namespace string, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &ExpirySweeper{db: db, namespace: namespace, interval: interval}
}

// OnDrop registers a callback invoked after each dropped log, with the
// topic that was reclaimed. Set it before Start; it runs on the sweeper
// goroutine.
func (s *ExpirySweeper) OnDrop(fn func(topic string)) {
	s.onDrop = fn
}

// Start launches the background loop. Repeated calls are no-ops.
func (s *ExpirySweeper) Start() {
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go func() {
		defer close(s.doneCh)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for {
			select {
			case <-s.stopCh:
				return
			case <-time.After(s.interval + time.Duration(rng.Int63n(int64(s.interval/10+1)))):
				_, _ = s.SweepOnce(context.Background(), time.Now().UnixMilli())
			}
		}
	}()
}

// Stop ends the background loop and waits for it to exit.
func (s *ExpirySweeper) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
	s.doneCh = nil
}

// SweepOnce drops every log whose deadline is at or before nowMs and returns
// the number of partitions reclaimed. Index entries whose stamp has moved or
// vanished are cleared without touching the log.
func (s *ExpirySweeper) SweepOnce(ctx context.Context, nowMs int64) (int, error) {
	pfx := KeyExpiryIndexPrefix(s.namespace)
	hi := append([]byte(nil), pfx...)
	hi = appendBE8(hi, uint64(nowMs)+1)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: pfx, UpperBound: hi})
	if err != nil {
		return 0, err
	}

	type due struct {
		key        []byte
		deadlineMs int64
		topic      string
		partition  uint32
	}
	var dues []due
	for ok := iter.First(); ok; ok = iter.Next() {
		deadlineMs, topic, partition, okParse := parseExpiryIndexKey(pfx, iter.Key())
		if !okParse {
			continue
		}
		dues = append(dues, due{
			key:        append([]byte(nil), iter.Key()...),
			deadlineMs: deadlineMs,
			topic:      topic,
			partition:  partition,
		})
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, d := range dues {
		stamp, errGet := s.db.Get(KeyLogExpiry(s.namespace, d.topic, d.partition))
		live := errGet == nil && len(stamp) >= 8 && int64(binary.BigEndian.Uint64(stamp[:8])) == d.deadlineMs
		if live {
			if err := DropLog(s.db, s.namespace, d.topic); err != nil {
				return reclaimed, err
			}
			reclaimed++
			if s.onDrop != nil {
				s.onDrop(d.topic)
			}
		}
		if err := s.db.Delete(d.key); err != nil {
			return reclaimed, err
		}
	}
	return reclaimed, nil
}
