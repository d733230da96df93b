package producer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/workqueue"
)

func submitJob(t *testing.T, rt *runtime.Runtime, key session.Key) {
	t.Helper()
	cfg := rt.Config()
	q, err := rt.SharedQueue(cfg.Namespace, cfg.Queue.Name, 0)
	if err != nil {
		t.Fatalf("shared queue: %v", err)
	}
	payload, err := json.Marshal(session.Job{FeatureID: key.FeatureID, ChatID: key.ChatID})
	if err != nil {
		t.Fatalf("encode job: %v", err)
	}
	now := time.Now().UnixMilli()
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(now))
	if _, err := q.Enqueue(context.Background(), hdr[:], payload, 0, 0, now); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func waitForTerminal(t *testing.T, rt *runtime.Runtime, key session.Key, want session.EntryKind, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		items := readAll(t, rt, key)
		if n := len(items); n > 0 {
			if h, err := session.DecodeEntryHeader(items[n-1].Header); err == nil && h.Kind == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s never reached a %s entry", key.String(), want)
}

func waitForOutcome(t *testing.T, rt *runtime.Runtime, timeout time.Duration) *workqueue.CompletedEntry {
	t.Helper()
	cfg := rt.Config()
	results := workqueue.NewResultLog(rt.DB(), cfg.Namespace, cfg.Queue.Name)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		entries, err := results.Recent(context.Background(), 10)
		if err != nil {
			t.Fatalf("list completed: %v", err)
		}
		if len(entries) > 0 {
			return entries[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no job outcome recorded")
	return nil
}

func TestPoolRunsSubmittedJob(t *testing.T) {
	rt := newTestRuntime(t, fastConfig())
	pool := NewPool(rt)
	if err := pool.Start(); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	t.Cleanup(pool.Stop)

	key := session.Key{FeatureID: "feature-1", ChatID: "chat-pool"}
	submitJob(t, rt, key)
	waitForTerminal(t, rt, key, session.KindDone, 5*time.Second)

	entry := waitForOutcome(t, rt, 2*time.Second)
	if want := "Generated 3 messages for feature-1:chat-pool"; entry.Result != want {
		t.Fatalf("result %q, want %q", entry.Result, want)
	}
	if entry.Error != "" {
		t.Fatalf("unexpected error on success outcome: %q", entry.Error)
	}
	if entry.ConsumerID != pool.ConsumerID() {
		t.Fatalf("outcome consumer %q, want %q", entry.ConsumerID, pool.ConsumerID())
	}
	if entry.EnqueuedAtMs == 0 || entry.CompletedAtMs < entry.DequeuedAtMs {
		t.Fatalf("implausible outcome timing %+v", entry)
	}
}

func TestPoolRecordsFailedRun(t *testing.T) {
	rt := newTestRuntime(t, fastConfig())
	pool := NewPool(rt)
	pool.Runner().SetWork(func(ctx context.Context, i int) error {
		if i == 0 {
			return errors.New("upstream unavailable")
		}
		return nil
	})
	if err := pool.Start(); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	t.Cleanup(pool.Stop)

	key := session.Key{FeatureID: "feature-1", ChatID: "chat-fail"}
	submitJob(t, rt, key)
	waitForTerminal(t, rt, key, session.KindError, 5*time.Second)

	entry := waitForOutcome(t, rt, 2*time.Second)
	if !strings.Contains(entry.Error, "upstream unavailable") {
		t.Fatalf("outcome error %q does not name the cause", entry.Error)
	}
	if entry.Result != "" {
		t.Fatalf("failed run carries result %q", entry.Result)
	}

	q, err := rt.SharedQueue(rt.Config().Namespace, rt.Config().Queue.Name, 0)
	if err != nil {
		t.Fatalf("shared queue: %v", err)
	}
	stats, err := q.Stats(workqueue.DefaultGroup)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.DeadLettered != 1 {
		t.Fatalf("want 1 dead-lettered job, got %d", stats.DeadLettered)
	}
	if stats.Leased != 0 {
		t.Fatalf("want no leases after failure, got %d", stats.Leased)
	}
}

func TestPoolConcurrencyCeiling(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-heavy")
	}
	cfg := fastConfig()
	cfg.Produce.MessageCount = 1
	cfg.Queue.MaxConcurrent = 2
	rt := newTestRuntime(t, cfg)

	var inflight, maxSeen int32
	pool := NewPool(rt)
	pool.Runner().SetWork(func(ctx context.Context, i int) error {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			prev := atomic.LoadInt32(&maxSeen)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxSeen, prev, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return nil
	})
	if err := pool.Start(); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	t.Cleanup(pool.Stop)

	keys := make([]session.Key, 5)
	for i := range keys {
		keys[i] = session.Key{FeatureID: "feature-1", ChatID: fmt.Sprintf("chat-%d", i)}
		submitJob(t, rt, keys[i])
	}
	for _, key := range keys {
		waitForTerminal(t, rt, key, session.KindDone, 10*time.Second)
	}
	if got := atomic.LoadInt32(&maxSeen); got > 2 {
		t.Fatalf("observed %d concurrent runs, ceiling is 2", got)
	}
}

func TestPoolStopInterruptsRun(t *testing.T) {
	cfg := fastConfig()
	cfg.Produce.PaceMs = 5_000
	rt := newTestRuntime(t, cfg)
	pool := NewPool(rt)
	if err := pool.Start(); err != nil {
		t.Fatalf("start pool: %v", err)
	}

	key := session.Key{FeatureID: "feature-1", ChatID: "chat-shutdown"}
	submitJob(t, rt, key)

	// Wait for the run to begin, then stop mid-pacing.
	deadline := time.Now().Add(2 * time.Second)
	for len(readAll(t, rt, key)) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("run never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	pool.Stop()

	items := readAll(t, rt, key)
	if len(items) == 0 {
		t.Fatalf("log empty after interrupted run")
	}
	if kind := entryKind(t, items[len(items)-1]); kind != session.KindError {
		t.Fatalf("interrupted run left %q terminal, want error", kind)
	}
}
