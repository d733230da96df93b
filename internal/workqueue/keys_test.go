package workqueue

import (
	"bytes"
	"testing"
)

func TestPrioKeySortsByPriorityThenSeq(t *testing.T) {
	low := PrioKey("ns", "jobs", 1, 100)
	high := PrioKey("ns", "jobs", 2, 50)
	if bytes.Compare(low, high) >= 0 {
		t.Fatal("priority 1 must sort before priority 2 regardless of seq")
	}

	older := PrioKey("ns", "jobs", 1, 7)
	newer := PrioKey("ns", "jobs", 1, 8)
	if bytes.Compare(older, newer) >= 0 {
		t.Fatal("same priority must sort by seq")
	}
}

func TestLeaseIdxKeySortsByExpiry(t *testing.T) {
	id := [16]byte{1}
	soon := LeaseIdxKey("ns", "jobs", 100, id)
	later := LeaseIdxKey("ns", "jobs", 200, id)
	if bytes.Compare(soon, later) >= 0 {
		t.Fatal("earlier expiry must sort first")
	}
}

func TestConsumerIndexKeySortsByDeadline(t *testing.T) {
	a := consumerIndexKey("ns", "jobs", "workers", 100, "w1")
	b := consumerIndexKey("ns", "jobs", "workers", 200, "w1")
	if bytes.Compare(a, b) >= 0 {
		t.Fatal("earlier deadline must sort first")
	}
	if !bytes.HasPrefix(a, consumerIndexPrefix("ns", "jobs", "workers")) {
		t.Fatal("index key must stay under its group prefix")
	}
}

func TestCompletedKeySortsBySeq(t *testing.T) {
	// Binary seq encoding keeps seq 9 ahead of seq 10, which a decimal
	// rendering would flip.
	a := completedKey("ns", "jobs", 9)
	b := completedKey("ns", "jobs", 10)
	if bytes.Compare(a, b) >= 0 {
		t.Fatal("result keys must sort by seq")
	}
}

func TestCompletedKeysStayUnderPrefix(t *testing.T) {
	prefix := completedPrefix("ns", "jobs")
	key := completedKey("ns", "jobs", 42)
	if !bytes.HasPrefix(key, prefix) {
		t.Fatalf("result key %q escapes prefix %q", key, prefix)
	}

	meta := completedMetaKey("ns", "jobs")
	if bytes.HasPrefix(meta, prefix) {
		t.Fatal("meta key must live outside the entry scan range")
	}
}

func TestKeysIsolateQueues(t *testing.T) {
	a := MsgKey("ns", "jobs", 0, 1)
	b := MsgKey("ns", "other", 0, 1)
	if bytes.Equal(a, b) {
		t.Fatal("different queues must not share message keys")
	}
}
