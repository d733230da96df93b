package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cfgpkg "github.com/Talhamuhammadali/event-driven-mircorservice/internal/config"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/eventlog"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/namespace"
	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/workqueue"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Runtime wires storage, config, and facades for a single-node instance.
type Runtime struct {
	db       *pebblestore.DB
	config   cfgpkg.Config
	sweepers []*eventlog.ExpirySweeper

	logMu sync.Mutex
	logs  map[string]*eventlog.Log

	queueMu sync.Mutex
	queues  map[string]*workqueue.WorkQueue
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		db:     db,
		config: opts.Config,
		logs:   make(map[string]*eventlog.Log),
		queues: make(map[string]*workqueue.WorkQueue),
	}
	return rt, nil
}

// Close stops background sweepers and closes underlying resources.
func (r *Runtime) Close() error {
	for _, s := range r.sweepers {
		s.Stop()
	}
	r.sweepers = nil
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth verifies the store still answers. The health endpoints call
// this on every probe.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// EnsureNamespace creates a namespace record if absent.
func (r *Runtime) EnsureNamespace(name string) (namespace.Meta, error) {
	return namespace.EnsureNamespace(r.db, name)
}

// OpenLog opens a fresh log handle. Most callers want SharedLog; a private
// handle never hears other writers' append notifications.
func (r *Runtime) OpenLog(ns, topic string, partition uint32) (*eventlog.Log, error) {
	return eventlog.OpenLog(r.db, ns, topic, partition)
}

// SharedLog returns the process-wide handle for a log. Append notifications
// only reach waiters on the same handle, so a writer and its tailing readers
// must share one. Handles are evicted when the expiry sweeper reclaims the
// log.
func (r *Runtime) SharedLog(ns, topic string, partition uint32) (*eventlog.Log, error) {
	key := fmt.Sprintf("%s/%s/%d", ns, topic, partition)
	r.logMu.Lock()
	defer r.logMu.Unlock()
	if l, ok := r.logs[key]; ok {
		return l, nil
	}
	l, err := eventlog.OpenLog(r.db, ns, topic, partition)
	if err != nil {
		return nil, err
	}
	r.logs[key] = l
	return l, nil
}

// ForgetLog drops cached handles for a topic, all partitions.
func (r *Runtime) ForgetLog(ns, topic string) {
	pfx := ns + "/" + topic + "/"
	r.logMu.Lock()
	for k := range r.logs {
		if strings.HasPrefix(k, pfx) {
			delete(r.logs, k)
		}
	}
	r.logMu.Unlock()
}

// OpenQueue opens a fresh queue handle. Most callers want SharedQueue so
// sequence assignment stays on one handle.
func (r *Runtime) OpenQueue(ns, queue string, partition uint32) (*workqueue.WorkQueue, error) {
	return workqueue.OpenQueue(r.db, ns, queue, partition)
}

// SharedQueue returns the process-wide handle for a queue. Sequence
// assignment lives on the handle, so everything that enqueues in this
// process must go through the same one.
func (r *Runtime) SharedQueue(ns, queue string, partition uint32) (*workqueue.WorkQueue, error) {
	key := fmt.Sprintf("q/%s/%s/%d", ns, queue, partition)
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	if q, ok := r.queues[key]; ok {
		return q, nil
	}
	q, err := workqueue.OpenQueue(r.db, ns, queue, partition)
	if err != nil {
		return nil, err
	}
	r.queues[key] = q
	return q, nil
}

// StartExpirySweeper launches background log reclamation for a namespace.
// The sweeper is stopped by Close. Reclaimed topics are evicted from the
// shared-log registry.
func (r *Runtime) StartExpirySweeper(ns string, interval time.Duration) *eventlog.ExpirySweeper {
	s := eventlog.NewExpirySweeper(r.db, ns, interval)
	s.OnDrop(func(topic string) { r.ForgetLog(ns, topic) })
	s.Start()
	r.sweepers = append(r.sweepers, s)
	return s
}

// DB exposes the store for components that manage their own keyspace, such
// as the consumer registry and the completed-job buffer.
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the configuration the process was started with.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
