package dispatchsvc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/eventlog"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/workqueue"
	logpkg "github.com/Talhamuhammadali/event-driven-mircorservice/pkg/log"
)

// Service admits generation jobs. A session's log doubles as its "already
// started" marker: the log exists exactly while a run is in progress or its
// output is still retained.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// New creates a dispatch service with a default logger.
func New(rt *runtime.Runtime) *Service {
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	logger = logger.With(logpkg.Component("dispatch"))
	return NewWithLogger(rt, logger)
}

// NewWithLogger creates a dispatch service with a custom logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.Component("dispatch"))
	}
	return &Service{rt: rt, logger: logger}
}

// EnsureStarted submits a generation job for the session unless its log
// already exists. Returns whether a job was submitted.
//
// The existence check and the submit are separate operations. Two first
// requests that overlap can both observe an absent log and both submit;
// sequential requests submit at most once. A log past its reclamation
// deadline counts as absent, so a request after expiry starts a fresh run.
func (s *Service) EnsureStarted(ctx context.Context, key session.Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	cfg := s.rt.Config()
	if _, err := s.rt.EnsureNamespace(cfg.Namespace); err != nil {
		return false, fmt.Errorf("ensure namespace: %w", err)
	}

	topic := key.String()
	nowMs := time.Now().UnixMilli()
	exists, err := eventlog.LogExists(s.rt.DB(), cfg.Namespace, topic, 0, nowMs)
	if err != nil {
		return false, fmt.Errorf("check session log: %w", err)
	}
	if exists {
		s.logger.With(logpkg.Str("session", topic)).Debug("dispatch.exists")
		return false, nil
	}

	q, err := s.rt.SharedQueue(cfg.Namespace, cfg.Queue.Name, 0)
	if err != nil {
		return false, fmt.Errorf("open queue: %w", err)
	}
	payload, err := json.Marshal(session.Job{FeatureID: key.FeatureID, ChatID: key.ChatID})
	if err != nil {
		return false, fmt.Errorf("encode job: %w", err)
	}
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(nowMs))
	seq, err := q.Enqueue(ctx, header[:], payload, 0, 0, nowMs)
	if err != nil {
		return false, fmt.Errorf("submit job: %w", err)
	}

	s.logger.With(
		logpkg.Str("session", topic),
		logpkg.Uint64("seq", seq),
	).Debug("dispatch.submit")
	return true, nil
}

// QueueStats reports depth and in-flight counts for the job queue.
func (s *Service) QueueStats(ctx context.Context) (workqueue.QueueStats, error) {
	cfg := s.rt.Config()
	q, err := s.rt.SharedQueue(cfg.Namespace, cfg.Queue.Name, 0)
	if err != nil {
		return workqueue.QueueStats{}, fmt.Errorf("open queue: %w", err)
	}
	return q.Stats(workqueue.DefaultGroup)
}

// RecentResults returns the newest retained job outcomes, successes and
// failures alike, up to limit.
func (s *Service) RecentResults(ctx context.Context, limit int) ([]*workqueue.CompletedEntry, error) {
	cfg := s.rt.Config()
	results := workqueue.NewResultLog(s.rt.DB(), cfg.Namespace, cfg.Queue.Name)
	if cfg.Queue.ResultTTLMs > 0 {
		results.SetRetention(0, cfg.Queue.ResultTTLMs)
	}
	return results.Recent(ctx, limit)
}
