package eventlog

import (
	"time"
)

// WaitForAppend blocks until the next append commits or the timeout passes,
// reporting which happened. A non-positive timeout waits indefinitely.
//
// The channel is snapshotted under the mutex, so an append racing the wait
// wakes it rather than being missed.
func (l *Log) WaitForAppend(timeout time.Duration) bool {
	l.mu.Lock()
	ch := l.notifyCh
	l.mu.Unlock()

	if timeout <= 0 {
		<-ch
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
