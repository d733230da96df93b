package eventlog

import (
	"context"
	"testing"
	"time"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

func newLogForExpiry(t *testing.T, topic string) (*pebblestore.DB, *Log) {
	t.Helper()
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l, err := OpenLog(db, "ns", topic, 1)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return db, l
}

func TestSetExpiryRoundTrip(t *testing.T) {
	_, l := newLogForExpiry(t, "t")
	if _, ok := l.ExpiresAtMs(); ok {
		t.Fatalf("fresh log should carry no deadline")
	}
	deadline := time.Now().UnixMilli() + 60_000
	if err := l.SetExpiry(context.Background(), deadline); err != nil {
		t.Fatalf("set expiry: %v", err)
	}
	got, ok := l.ExpiresAtMs()
	if !ok || got != deadline {
		t.Fatalf("want deadline %d, got %d (ok=%v)", deadline, got, ok)
	}
}

func TestExpiredLogReadsEmpty(t *testing.T) {
	_, l := newLogForExpiry(t, "t")
	ctx := context.Background()
	if _, err := l.Append(ctx, []AppendRecord{{Payload: []byte("a")}, {Payload: []byte("b")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	items, _ := l.Read(ReadOptions{Limit: 10})
	if len(items) != 2 {
		t.Fatalf("want 2 items before deadline, got %d", len(items))
	}
	if err := l.SetExpiry(ctx, time.Now().UnixMilli()-1000); err != nil {
		t.Fatalf("set expiry: %v", err)
	}
	items, _ = l.Read(ReadOptions{Limit: 10})
	if len(items) != 0 {
		t.Fatalf("expired log must read empty, got %d items", len(items))
	}
}

func TestLogExists(t *testing.T) {
	db, l := newLogForExpiry(t, "t")
	ctx := context.Background()
	now := time.Now().UnixMilli()

	if ok, _ := LogExists(db, "ns", "t", 1, now); ok {
		t.Fatalf("unwritten log must not exist")
	}
	if _, err := l.Append(ctx, []AppendRecord{{Payload: []byte("a")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ok, _ := LogExists(db, "ns", "t", 1, now); !ok {
		t.Fatalf("written log must exist")
	}
	if err := l.SetExpiry(ctx, now+60_000); err != nil {
		t.Fatalf("set expiry: %v", err)
	}
	if ok, _ := LogExists(db, "ns", "t", 1, now); !ok {
		t.Fatalf("log must exist before its deadline")
	}
	if ok, _ := LogExists(db, "ns", "t", 1, now+60_000); ok {
		t.Fatalf("log must not exist at its deadline")
	}
}

func TestSweepOnceDropsDueLogs(t *testing.T) {
	db, l := newLogForExpiry(t, "due")
	ctx := context.Background()
	keep, err := OpenLog(db, "ns", "keep", 1)
	if err != nil {
		t.Fatalf("open keep: %v", err)
	}

	now := time.Now().UnixMilli()
	seqs, err := l.Append(ctx, []AppendRecord{{Payload: []byte("a")}})
	if err != nil {
		t.Fatalf("append due: %v", err)
	}
	if err := l.CommitCursor("relay", TokenFromSeq(seqs[0])); err != nil {
		t.Fatalf("commit cursor: %v", err)
	}
	if err := l.SetExpiry(ctx, now-1); err != nil {
		t.Fatalf("set expiry due: %v", err)
	}
	if _, err := keep.Append(ctx, []AppendRecord{{Payload: []byte("b")}}); err != nil {
		t.Fatalf("append keep: %v", err)
	}
	if err := keep.SetExpiry(ctx, now+60_000); err != nil {
		t.Fatalf("set expiry keep: %v", err)
	}

	s := NewExpirySweeper(db, "ns", time.Second)
	n, err := s.SweepOnce(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 reclaimed, got %d", n)
	}

	if ok, _ := db.Has(KeyLogMeta("ns", "due", 1)); ok {
		t.Fatalf("meta survived sweep")
	}
	if ok, _ := db.Has(KeyLogEntry("ns", "due", 1, seqs[0])); ok {
		t.Fatalf("entry survived sweep")
	}
	if ok, _ := db.Has(KeyLogExpiry("ns", "due", 1)); ok {
		t.Fatalf("expiry stamp survived sweep")
	}
	if ok, _ := db.Has(KeyCursor("ns", "due", "relay", 1)); ok {
		t.Fatalf("cursor survived sweep")
	}
	if ok, _ := db.Has(KeyLogMeta("ns", "keep", 1)); !ok {
		t.Fatalf("keep log must survive sweep")
	}
}

func TestSweepHonorsRestampedDeadline(t *testing.T) {
	db, l := newLogForExpiry(t, "t")
	ctx := context.Background()
	now := time.Now().UnixMilli()

	if _, err := l.Append(ctx, []AppendRecord{{Payload: []byte("a")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.SetExpiry(ctx, now-1); err != nil {
		t.Fatalf("set expiry 1: %v", err)
	}
	// moving the deadline forward must invalidate the earlier index entry
	if err := l.SetExpiry(ctx, now+60_000); err != nil {
		t.Fatalf("set expiry 2: %v", err)
	}

	s := NewExpirySweeper(db, "ns", time.Second)
	n, err := s.SweepOnce(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("restamped log must not be reclaimed, got %d", n)
	}
	if ok, _ := db.Has(KeyLogMeta("ns", "t", 1)); !ok {
		t.Fatalf("log vanished despite live deadline")
	}
}

func TestListLogs(t *testing.T) {
	db, l := newLogForExpiry(t, "alpha")
	ctx := context.Background()
	now := time.Now().UnixMilli()

	if _, err := l.Append(ctx, []AppendRecord{{Payload: []byte("a")}, {Payload: []byte("b")}}); err != nil {
		t.Fatalf("append alpha: %v", err)
	}
	if err := l.SetExpiry(ctx, now+60_000); err != nil {
		t.Fatalf("set expiry alpha: %v", err)
	}
	gone, err := OpenLog(db, "ns", "gone", 1)
	if err != nil {
		t.Fatalf("open gone: %v", err)
	}
	if _, err := gone.Append(ctx, []AppendRecord{{Payload: []byte("x")}}); err != nil {
		t.Fatalf("append gone: %v", err)
	}
	if err := gone.SetExpiry(ctx, now-1); err != nil {
		t.Fatalf("set expiry gone: %v", err)
	}

	infos, err := ListLogs(db, "ns", now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("want 1 live log, got %d", len(infos))
	}
	got := infos[0]
	if got.Topic != "alpha" || got.Partition != 1 || got.LastSeq != 2 || got.ExpiresAtMs != now+60_000 {
		t.Fatalf("unexpected info: %+v", got)
	}
}
