package producer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/workqueue"
	logpkg "github.com/Talhamuhammadali/event-driven-mircorservice/pkg/log"
)

// dequeuePollInterval is the idle wait between dequeue attempts when the
// queue is empty.
const dequeuePollInterval = 100 * time.Millisecond

// consumerTTL bounds how long a silent worker stays registered.
const consumerTTL = 15 * time.Second

// Pool dequeues generation jobs and runs them under a bounded concurrency
// ceiling. One pool per process; its consumer identity is registered for
// the lifetime of the pool.
type Pool struct {
	rt         *runtime.Runtime
	logger     logpkg.Logger
	runner     *Runner
	queue      *workqueue.WorkQueue
	registry   *workqueue.ConsumerRegistry
	completed  *workqueue.ResultLog
	consumerID string
	sem        *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPool creates a pool with a default logger.
func NewPool(rt *runtime.Runtime) *Pool {
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	logger = logger.With(logpkg.Component("producer"))
	return NewPoolWithLogger(rt, logger)
}

// NewPoolWithLogger creates a pool with a custom logger.
func NewPoolWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Pool {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.Component("producer"))
	}
	cfg := rt.Config()
	maxConcurrent := cfg.Queue.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Pool{
		rt:         rt,
		logger:     logger,
		runner:     NewRunner(rt, logger),
		consumerID: "worker-" + uuid.NewString(),
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Runner exposes the pool's runner so callers can reshape the work step.
func (p *Pool) Runner() *Runner { return p.runner }

// ConsumerID returns the pool's registered worker identity.
func (p *Pool) ConsumerID() string { return p.consumerID }

// Start registers the worker, starts the lease-reclaim sweeper, and begins
// dequeuing. Repeated calls are no-ops.
func (p *Pool) Start() error {
	if p.stopCh != nil {
		return nil
	}
	cfg := p.rt.Config()
	if _, err := p.rt.EnsureNamespace(cfg.Namespace); err != nil {
		return err
	}
	q, err := p.rt.SharedQueue(cfg.Namespace, cfg.Queue.Name, 0)
	if err != nil {
		return err
	}
	p.queue = q
	p.registry = workqueue.NewConsumerRegistry(p.rt.DB(), cfg.Namespace, cfg.Queue.Name, workqueue.DefaultGroup, consumerTTL)
	p.completed = workqueue.NewResultLog(p.rt.DB(), cfg.Namespace, cfg.Queue.Name)
	if cfg.Queue.ResultTTLMs > 0 {
		p.completed.SetRetention(0, cfg.Queue.ResultTTLMs)
	}

	if _, err := p.registry.Register(context.Background(), p.consumerID, map[string]string{
		"host":    p.runner.hostname,
		"feature": cfg.FeatureID,
	}); err != nil {
		return err
	}

	sweepIntv := time.Duration(cfg.Queue.SweepIntervalMs) * time.Millisecond
	p.queue.StartSweeper(workqueue.DefaultGroup, sweepIntv, 64, 0)

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.stopCh = make(chan struct{})
	p.wg.Add(2)
	go p.dequeueLoop()
	go p.heartbeatLoop()
	p.logger.With(
		logpkg.Str("consumer", p.consumerID),
		logpkg.Int("max_concurrent", cfg.Queue.MaxConcurrent),
	).Info("producer.started")
	return nil
}

// Stop interrupts in-flight runs, waits for them to record their failures,
// and unregisters the worker. Interrupted runs take the producer's failure
// path, so no session log is left without a terminal entry.
func (p *Pool) Stop() {
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	p.cancel()
	p.wg.Wait()
	p.queue.StopSweeper()
	_ = p.registry.Unregister(context.Background(), p.consumerID)
	p.stopCh = nil
	p.logger.Info("producer.stopped")
}

func (p *Pool) dequeueLoop() {
	defer p.wg.Done()
	leaseMs := p.rt.Config().Queue.LeaseMs
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		// Hold a slot before dequeuing so a saturated pool leaves jobs
		// leasable by the reclaim sweeper instead of parking them here.
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		msgs, err := p.queue.Dequeue(p.ctx, workqueue.DefaultGroup, 1, leaseMs, time.Now().UnixMilli())
		if err != nil || len(msgs) == 0 {
			p.sem.Release(1)
			if err != nil {
				p.logger.With(logpkg.Err(err)).Warn("producer.dequeue_failed")
			}
			select {
			case <-p.stopCh:
				return
			case <-time.After(dequeuePollInterval):
			}
			continue
		}
		m := msgs[0]
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer p.sem.Release(1)
			p.runJob(m)
		}()
	}
}

func (p *Pool) runJob(m workqueue.LeasedMessage) {
	nowMs := time.Now().UnixMilli()
	var job session.Job
	if err := json.Unmarshal(m.Payload, &job); err != nil {
		// No session to record into; dead-letter the message as-is.
		_ = p.queue.Fail(context.Background(), workqueue.DefaultGroup, []uint64{m.Seq}, 0, true, nowMs)
		p.logger.With(logpkg.Uint64("job_seq", m.Seq), logpkg.Err(err)).Error("producer.bad_job")
		return
	}
	jobLog := p.logger.With(
		logpkg.Str("session", job.Key().String()),
		logpkg.Uint64("job_seq", m.Seq),
	)

	extendStop := make(chan struct{})
	p.wg.Add(1)
	go p.extendLease(m.Seq, extendStop)

	started := time.Now()
	result, err := p.runner.Run(p.ctx, job)
	close(extendStop)
	doneMs := time.Now().UnixMilli()

	if err != nil {
		// The log already carries the terminal error entry; the queue just
		// tracks the failed delivery.
		_ = p.queue.Fail(context.Background(), workqueue.DefaultGroup, []uint64{m.Seq}, 0, true, doneMs)
		p.recordOutcome(m, job, started, doneMs, "", err)
		jobLog.With(logpkg.Err(err)).Error("producer.run_failed")
		return
	}
	if err := p.queue.Complete(context.Background(), workqueue.DefaultGroup, []uint64{m.Seq}); err != nil {
		jobLog.With(logpkg.Err(err)).Warn("producer.complete_failed")
	}
	p.recordOutcome(m, job, started, doneMs, result, nil)
	jobLog.With(logpkg.Int64("took_ms", doneMs-started.UnixMilli())).Info("producer.run_done")
}

// extendLease keeps the job leased for as long as it runs.
func (p *Pool) extendLease(seq uint64, stop <-chan struct{}) {
	defer p.wg.Done()
	cfg := p.rt.Config().Queue
	intv := time.Duration(cfg.ExtendEveryMs) * time.Millisecond
	if intv <= 0 {
		intv = 10 * time.Second
	}
	t := time.NewTicker(intv)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			err := p.queue.ExtendLease(context.Background(), workqueue.DefaultGroup, []uint64{seq}, cfg.LeaseMs, time.Now().UnixMilli())
			if err != nil {
				p.logger.With(logpkg.Uint64("job_seq", seq), logpkg.Err(err)).Warn("producer.extend_failed")
			}
		}
	}
}

// heartbeatLoop renews the worker registration and sweeps out silent
// consumers.
func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()
	t := time.NewTicker(consumerTTL / 3)
	defer t.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			if _, err := p.registry.Heartbeat(context.Background(), p.consumerID); err != nil {
				p.logger.With(logpkg.Err(err)).Warn("producer.heartbeat_failed")
			}
			if _, err := p.registry.CleanupExpired(context.Background(), 16); err != nil {
				p.logger.With(logpkg.Err(err)).Warn("producer.cleanup_failed")
			}
		}
	}
}

// recordOutcome writes the job's result, success or failure, into the
// retained completed buffer.
func (p *Pool) recordOutcome(m workqueue.LeasedMessage, job session.Job, started time.Time, doneMs int64, result string, runErr error) {
	var id [16]byte
	binary.BigEndian.PutUint64(id[8:], m.Seq)
	entry := &workqueue.CompletedEntry{
		ID:            id[:],
		Seq:           m.Seq,
		ConsumerID:    p.consumerID,
		DequeuedAtMs:  started.UnixMilli(),
		CompletedAtMs: doneMs,
		Duration:      doneMs - started.UnixMilli(),
		DeliveryCount: int32(m.Attempts) + 1,
		PayloadSize:   int32(len(m.Payload)),
		Result:        result,
		Headers:       map[string]string{"feature_id": job.FeatureID, "chat_id": job.ChatID},
	}
	if len(m.Header) >= 8 {
		entry.EnqueuedAtMs = int64(binary.BigEndian.Uint64(m.Header[:8]))
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if err := p.completed.Add(context.Background(), entry); err != nil {
		p.logger.With(logpkg.Uint64("job_seq", m.Seq), logpkg.Err(err)).Warn("producer.record_failed")
	}
}
