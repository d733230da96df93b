package dispatchsvc

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	cfgpkg "github.com/Talhamuhammadali/event-driven-mircorservice/internal/config"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/eventlog"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/workqueue"
)

func newTestService(t *testing.T) (*Service, *runtime.Runtime) {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfgpkg.Default(),
	})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return New(rt), rt
}

func firstAppend(t *testing.T, rt *runtime.Runtime, key session.Key) *eventlog.Log {
	t.Helper()
	l, err := rt.SharedLog(rt.Config().Namespace, key.String(), 0)
	if err != nil {
		t.Fatalf("shared log: %v", err)
	}
	if _, err := l.Append(context.Background(), []eventlog.AppendRecord{{Payload: []byte(`{"id":"0"}`)}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	return l
}

func TestEnsureStartedSubmitsJob(t *testing.T) {
	svc, rt := newTestService(t)
	ctx := context.Background()
	key := session.Key{FeatureID: "feature-1", ChatID: "chat-1"}

	submitted, err := svc.EnsureStarted(ctx, key)
	if err != nil {
		t.Fatalf("ensure started: %v", err)
	}
	if !submitted {
		t.Fatalf("want submitted on first request")
	}

	q, err := rt.SharedQueue(rt.Config().Namespace, rt.Config().Queue.Name, 0)
	if err != nil {
		t.Fatalf("shared queue: %v", err)
	}
	msgs, err := q.Dequeue(ctx, workqueue.DefaultGroup, 1, 30_000, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("want 1 queued job, got %d", len(msgs))
	}
	var job session.Job
	if err := json.Unmarshal(msgs[0].Payload, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.FeatureID != "feature-1" || job.ChatID != "chat-1" {
		t.Fatalf("job carries %q/%q, want feature-1/chat-1", job.FeatureID, job.ChatID)
	}
}

func TestEnsureStartedSkipsExistingLog(t *testing.T) {
	svc, rt := newTestService(t)
	ctx := context.Background()
	key := session.Key{FeatureID: "feature-1", ChatID: "chat-2"}

	// Once the producer has appended, further requests must not submit.
	firstAppend(t, rt, key)

	submitted, err := svc.EnsureStarted(ctx, key)
	if err != nil {
		t.Fatalf("ensure started: %v", err)
	}
	if submitted {
		t.Fatalf("submitted for a session whose log already exists")
	}
	stats, err := svc.QueueStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Available != 0 {
		t.Fatalf("want empty queue, got %d available", stats.Available)
	}
}

func TestEnsureStartedResubmitsAfterExpiry(t *testing.T) {
	svc, rt := newTestService(t)
	ctx := context.Background()
	key := session.Key{FeatureID: "feature-1", ChatID: "chat-3"}

	l := firstAppend(t, rt, key)
	if err := l.SetExpiry(ctx, time.Now().UnixMilli()-1); err != nil {
		t.Fatalf("set expiry: %v", err)
	}

	submitted, err := svc.EnsureStarted(ctx, key)
	if err != nil {
		t.Fatalf("ensure started: %v", err)
	}
	if !submitted {
		t.Fatalf("want resubmission once the log has expired")
	}
}

func TestEnsureStartedRejectsInvalidKey(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.EnsureStarted(context.Background(), session.Key{FeatureID: "f"}); err == nil {
		t.Fatalf("want error for empty chat id")
	}
	if _, err := svc.EnsureStarted(context.Background(), session.Key{FeatureID: "a:b", ChatID: "c"}); err == nil {
		t.Fatalf("want error for colon in feature id")
	}
}

func TestEnsureStartedConcurrentFirstRequests(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	key := session.Key{FeatureID: "feature-1", ChatID: "chat-race"}

	// Overlapping first requests may both submit; neither may fail.
	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			submitted, err := svc.EnsureStarted(ctx, key)
			if err != nil {
				t.Errorf("ensure started: %v", err)
			}
			results[i] = submitted
		}(i)
	}
	wg.Wait()

	if !results[0] && !results[1] {
		t.Fatalf("want at least one submission")
	}
	stats, err := svc.QueueStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Available < 1 || stats.Available > 2 {
		t.Fatalf("want 1 or 2 queued jobs, got %d", stats.Available)
	}
}

func TestRecentResults(t *testing.T) {
	svc, rt := newTestService(t)
	ctx := context.Background()
	cfg := rt.Config()

	results := workqueue.NewResultLog(rt.DB(), cfg.Namespace, cfg.Queue.Name)
	now := time.Now().UnixMilli()
	for i, res := range []string{"Generated 20 messages for f:c1", "Generated 20 messages for f:c2"} {
		err := results.Add(ctx, &workqueue.CompletedEntry{
			Seq:           uint64(i + 1),
			CompletedAtMs: now,
			Result:        res,
		})
		if err != nil {
			t.Fatalf("add completed: %v", err)
		}
	}

	entries, err := svc.RecentResults(ctx, 10)
	if err != nil {
		t.Fatalf("recent results: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("want 2 results, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Result != "Generated 20 messages for f:c2" {
		t.Fatalf("unexpected newest result %q", entries[0].Result)
	}
}
