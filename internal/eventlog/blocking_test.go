package eventlog

import (
	"context"
	"testing"
	"time"
)

func TestWaitForAppendWakesOnCommit(t *testing.T) {
	l := newSessionLog(t)

	woke := make(chan bool, 1)
	go func() {
		woke <- l.WaitForAppend(2 * time.Second)
	}()

	// Give the waiter a head start so it snapshots the pre-append channel.
	time.Sleep(50 * time.Millisecond)
	if _, err := l.Append(context.Background(), []AppendRecord{{Payload: []byte(`{"content":"tick"}`)}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case ok := <-woke:
		if !ok {
			t.Fatalf("waiter timed out instead of waking")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter never returned")
	}
}

func TestWaitForAppendTimesOut(t *testing.T) {
	l := newSessionLog(t)
	if l.WaitForAppend(30 * time.Millisecond) {
		t.Fatalf("expected timeout on idle log")
	}
}

func TestWaitForAppendNoDeadline(t *testing.T) {
	l := newSessionLog(t)

	woke := make(chan bool, 1)
	go func() {
		woke <- l.WaitForAppend(0)
	}()

	select {
	case <-woke:
		t.Fatalf("waiter returned before any append")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := l.Append(context.Background(), []AppendRecord{{Payload: []byte("x")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	select {
	case ok := <-woke:
		if !ok {
			t.Fatalf("indefinite wait reported timeout")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter never woke after append")
	}
}
