package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	cfgpkg "github.com/Talhamuhammadali/event-driven-mircorservice/internal/config"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/eventlog"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/namespace"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
	idpkg "github.com/Talhamuhammadali/event-driven-mircorservice/pkg/id"
	logpkg "github.com/Talhamuhammadali/event-driven-mircorservice/pkg/log"
)

// WorkerTag is stamped into every produced message's worker field.
const WorkerTag = "streamd"

// terminalAppendTimeout bounds the error-record append that runs after the
// job context is already canceled.
const terminalAppendTimeout = 5 * time.Second

// Runner executes one generation run: N application messages, each followed
// by a bounded unit of work and a pacing delay, then a terminal entry and
// the log's reclamation deadline.
type Runner struct {
	rt        *runtime.Runtime
	cfg       cfgpkg.ProduceConfig
	namespace string
	featureID string
	hostname  string
	logger    logpkg.Logger
	ids       *idpkg.Generator

	maxPayload int

	// work replaces the built-in simulated computation between messages.
	// Tests inject failures through it.
	work func(ctx context.Context, i int) error
}

// NewRunner builds a runner bound to the process identity. The payload cap
// comes from the namespace metadata.
func NewRunner(rt *runtime.Runtime, logger logpkg.Logger) *Runner {
	cfg := rt.Config()
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	maxPayload := namespace.Defaults().PayloadMaxBytes
	if meta, err := rt.EnsureNamespace(cfg.Namespace); err == nil && meta.PayloadMaxBytes > 0 {
		maxPayload = meta.PayloadMaxBytes
	}
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.Component("producer"))
	}
	return &Runner{
		rt:         rt,
		cfg:        cfg.Produce,
		namespace:  cfg.Namespace,
		featureID:  cfg.FeatureID,
		hostname:   host,
		logger:     logger,
		ids:        idpkg.NewGenerator(),
		maxPayload: maxPayload,
	}
}

// SetWork replaces the between-messages computation step.
func (r *Runner) SetWork(fn func(ctx context.Context, i int) error) { r.work = fn }

// Run produces the session's full message sequence and returns the result
// summary. On any failure it appends a single error record, sets the log's
// reclamation deadline, and returns the cause; the caller reports that to
// the queue. Cancellation of ctx interrupts pacing and takes the same
// failure path.
func (r *Runner) Run(ctx context.Context, job session.Job) (string, error) {
	key := job.Key()
	if err := key.Validate(); err != nil {
		return "", err
	}
	topic := key.String()
	l, err := r.rt.SharedLog(r.namespace, topic, 0)
	if err != nil {
		return "", fmt.Errorf("open session log: %w", err)
	}
	runLog := r.logger.With(logpkg.Str("session", topic))
	runLog.With(logpkg.Int("messages", r.cfg.MessageCount)).Debug("produce.start")

	for i := 0; i < r.cfg.MessageCount; i++ {
		payload, err := json.Marshal(r.buildMessage(i, job))
		if err != nil {
			return "", r.fail(l, job, fmt.Errorf("encode message %d: %w", i, err))
		}
		if len(payload) > r.maxPayload {
			return "", r.fail(l, job, fmt.Errorf("message %d is %d bytes, cap %d", i, len(payload), r.maxPayload))
		}
		if err := r.append(ctx, l, session.KindMessage, payload); err != nil {
			return "", r.fail(l, job, fmt.Errorf("append message %d: %w", i, err))
		}
		if err := r.step(ctx, i); err != nil {
			return "", r.fail(l, job, err)
		}
	}

	if err := r.append(ctx, l, session.KindDone, []byte(session.Sentinel)); err != nil {
		return "", r.fail(l, job, fmt.Errorf("append sentinel: %w", err))
	}
	// The sentinel is already the log's single terminal entry; a deadline
	// failure here must not add another.
	if err := r.setDeadline(l); err != nil {
		return "", fmt.Errorf("set log deadline: %w", err)
	}
	runLog.Debug("produce.done")
	return fmt.Sprintf("Generated %d messages for %s:%s", r.cfg.MessageCount, job.FeatureID, job.ChatID), nil
}

func (r *Runner) buildMessage(i int, job session.Job) session.Message {
	return session.Message{
		ID:                 strconv.Itoa(i),
		FeatureID:          job.FeatureID,
		ChatID:             job.ChatID,
		Message:            fmt.Sprintf("Message %d from feature %s, chat %s", i, job.FeatureID, job.ChatID),
		Timestamp:          time.Now().UTC().Format(time.RFC3339Nano),
		ContainerID:        r.hostname,
		ContainerFeatureID: r.featureID,
		Worker:             WorkerTag,
	}
}

func (r *Runner) append(ctx context.Context, l *eventlog.Log, kind session.EntryKind, payload []byte) error {
	header := session.EncodeEntryHeader(session.EntryHeader{
		TsMs: time.Now().UnixMilli(),
		Kind: kind,
		MID:  r.ids.Next().String(),
	})
	_, err := l.Append(ctx, []eventlog.AppendRecord{{Header: header, Payload: payload}})
	return err
}

// step performs the simulated computation and the pacing delay that follow
// each message.
func (r *Runner) step(ctx context.Context, i int) error {
	if r.work != nil {
		if err := r.work(ctx, i); err != nil {
			return err
		}
	} else if r.cfg.WorkIterations > 0 {
		simulateWork(r.cfg.WorkIterations)
	}
	if r.cfg.PaceMs > 0 {
		select {
		case <-time.After(time.Duration(r.cfg.PaceMs) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// fail records the terminal error entry and the reclamation deadline, then
// returns the cause. It runs on a fresh context: the run's own context is
// often what failed, and an attached relay must still observe the failure
// as a terminal entry rather than hang.
func (r *Runner) fail(l *eventlog.Log, job session.Job, cause error) error {
	rec := session.ErrorRecord{Error: cause.Error(), FeatureID: job.FeatureID, ChatID: job.ChatID}
	payload, _ := json.Marshal(rec)

	actx, cancel := context.WithTimeout(context.Background(), terminalAppendTimeout)
	defer cancel()
	if err := r.append(actx, l, session.KindError, payload); err != nil {
		r.logger.With(
			logpkg.Str("session", job.Key().String()),
			logpkg.Err(err),
		).Error("produce.error_append_failed")
	}
	if err := r.setDeadline(l); err != nil {
		r.logger.With(
			logpkg.Str("session", job.Key().String()),
			logpkg.Err(err),
		).Error("produce.deadline_failed")
	}
	return cause
}

func (r *Runner) setDeadline(l *eventlog.Log) error {
	if r.cfg.LogTTLMs <= 0 {
		return nil
	}
	actx, cancel := context.WithTimeout(context.Background(), terminalAppendTimeout)
	defer cancel()
	if err := l.SetExpiry(actx, time.Now().UnixMilli()+r.cfg.LogTTLMs); err != nil {
		return err
	}
	if r.cfg.RetentionMaxBytes > 0 {
		_, _ = l.TrimToMaxBytes(actx, r.cfg.RetentionMaxBytes, 0, 0)
	}
	return nil
}

var workSink uint64

// simulateWork burns a bounded amount of CPU standing in for real generation
// work between messages.
func simulateWork(iterations int) {
	var acc uint64
	for i := 0; i < iterations; i++ {
		acc += uint64(i) * uint64(i)
	}
	atomic.StoreUint64(&workSink, acc)
}
