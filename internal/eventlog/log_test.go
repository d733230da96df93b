package eventlog

import (
	"context"
	"testing"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

func newSessionLog(t *testing.T) *Log {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l, err := OpenLog(db, "default", "stream:search:chat-1", 0)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

func TestAppendAssignsContiguousSeqs(t *testing.T) {
	l := newSessionLog(t)
	ctx := context.Background()

	first, err := l.Append(ctx, []AppendRecord{
		{Payload: []byte(`{"content":"hello"}`)},
		{Payload: []byte(`{"content":"world"}`)},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(first) != 2 || first[0] != 1 || first[1] != 2 {
		t.Fatalf("want seqs [1 2], got %v", first)
	}

	second, err := l.Append(ctx, []AppendRecord{{Payload: []byte("[DONE]")}})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(second) != 1 || second[0] != 3 {
		t.Fatalf("want seq 3 after two prior entries, got %v", second)
	}
}

func TestAppendEmptyBatch(t *testing.T) {
	l := newSessionLog(t)
	seqs, err := l.Append(context.Background(), nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(seqs) != 0 {
		t.Fatalf("empty batch assigned seqs: %v", seqs)
	}
}

func TestSeqContinuesAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	l, err := OpenLog(db, "default", "stream:search:chat-9", 0)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := l.Append(ctx, []AppendRecord{{Payload: []byte("one")}, {Payload: []byte("two")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	l2, err := OpenLog(db2, "default", "stream:search:chat-9", 0)
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}

	seqs, err := l2.Append(ctx, []AppendRecord{{Payload: []byte("three")}})
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if len(seqs) != 1 || seqs[0] != 3 {
		t.Fatalf("want seq 3 after reopen, got %v", seqs)
	}
}
