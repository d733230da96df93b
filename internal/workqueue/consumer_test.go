package workqueue

import (
	"context"
	"testing"
	"time"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

func openTestRegistry(t *testing.T, ttl time.Duration) *ConsumerRegistry {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewConsumerRegistry(db, "default", "generate", DefaultGroup, ttl)
}

func TestRegisterPreservesFirstRegistration(t *testing.T) {
	cr := openTestRegistry(t, time.Hour)
	ctx := context.Background()

	c1, err := cr.Register(ctx, "worker-a", map[string]string{"host": "box1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if c1.Group != DefaultGroup || c1.ExpiresAtMs <= c1.RegisteredMs {
		t.Fatalf("bad registration: %+v", c1)
	}

	time.Sleep(5 * time.Millisecond)
	c2, err := cr.Register(ctx, "worker-a", nil)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if c2.RegisteredMs != c1.RegisteredMs {
		t.Fatalf("re-register reset RegisteredMs: %d -> %d", c1.RegisteredMs, c2.RegisteredMs)
	}
	if c2.ExpiresAtMs < c1.ExpiresAtMs {
		t.Fatalf("re-register moved the deadline backwards: %d -> %d", c1.ExpiresAtMs, c2.ExpiresAtMs)
	}
}

func TestHeartbeatExtendsDeadline(t *testing.T) {
	cr := openTestRegistry(t, time.Hour)
	ctx := context.Background()

	c, err := cr.Register(ctx, "worker-a", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	deadline, err := cr.Heartbeat(ctx, "worker-a")
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if deadline < c.ExpiresAtMs {
		t.Fatalf("heartbeat moved the deadline backwards: %d -> %d", c.ExpiresAtMs, deadline)
	}
}

func TestHeartbeatUnknownConsumer(t *testing.T) {
	cr := openTestRegistry(t, time.Hour)
	if _, err := cr.Heartbeat(context.Background(), "never-registered"); err == nil {
		t.Fatalf("want error for unknown consumer")
	}
}

func TestUnregisterUnknownIsNoOp(t *testing.T) {
	cr := openTestRegistry(t, time.Hour)
	if err := cr.Unregister(context.Background(), "never-registered"); err != nil {
		t.Fatalf("unregister unknown: %v", err)
	}
}

func TestCleanupExpiredRemovesSilentWorkers(t *testing.T) {
	cr := openTestRegistry(t, time.Millisecond)
	ctx := context.Background()

	if _, err := cr.Register(ctx, "worker-dead", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	removed, err := cr.CleanupExpired(ctx, 16)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("want 1 removed, got %d", removed)
	}
	if _, err := cr.Heartbeat(ctx, "worker-dead"); err == nil {
		t.Fatalf("cleaned-up consumer still heartbeats")
	}
}

func TestCleanupDropsDanglingIndexEntries(t *testing.T) {
	cr := openTestRegistry(t, time.Millisecond)
	ctx := context.Background()

	if _, err := cr.Register(ctx, "worker-x", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Delete the record out from under the index, as a crashed partial
	// unregister would.
	if err := cr.db.Delete(cr.key("worker-x")); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := cr.CleanupExpired(ctx, 16); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	ids, dangling, err := cr.expired(time.Now().UnixMilli()+int64(time.Hour/time.Millisecond), 16)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ids) != 0 || len(dangling) != 0 {
		t.Fatalf("index not cleaned: ids=%v dangling=%d", ids, len(dangling))
	}
}
