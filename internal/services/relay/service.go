package relaysvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/eventlog"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
	logpkg "github.com/Talhamuhammadali/event-driven-mircorservice/pkg/log"
)

// relayCursorGroup names the observational cursor committed after each
// delivered frame. Inspection reads it back; the relay never resumes from it.
const relayCursorGroup = "relay"

// ErrTimeout reports that the inactivity ceiling elapsed with no new log
// entries. The timeout frame has already been delivered when Stream returns
// this.
var ErrTimeout = errors.New("relay: inactivity ceiling reached")

// Service tails session logs and forwards each entry to a connected client.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// New creates a relay service with a default logger.
func New(rt *runtime.Runtime) *Service {
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	logger = logger.With(logpkg.Component("relay"))
	return NewWithLogger(rt, logger)
}

// NewWithLogger creates a relay service with a custom logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.Component("relay"))
	}
	return &Service{rt: rt, logger: logger}
}

// Stream forwards the session's log to the sink as a lazy, finite,
// non-restartable sequence of frames. It returns nil when the log reached a
// terminal entry or the client went away, and ErrTimeout when the inactivity
// ceiling elapsed first.
//
// The cursor always starts at the log origin, never at "now". A relay
// attached mid-production first drains everything already written, then
// follows live appends, so every client observes the identical full
// sequence regardless of when it attached.
func (s *Service) Stream(ctx context.Context, key session.Key, sink Sink) error {
	if err := key.Validate(); err != nil {
		return err
	}
	cfg := s.rt.Config()
	topic := key.String()
	l, err := s.rt.SharedLog(cfg.Namespace, topic, 0)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	relayLog := s.logger.With(logpkg.Str("session", topic))
	pollBlock := time.Duration(cfg.Relay.PollBlockMs) * time.Millisecond
	if pollBlock <= 0 {
		pollBlock = time.Second
	}
	maxEmpty := cfg.Relay.MaxEmptyPolls
	if maxEmpty <= 0 {
		maxEmpty = 30
	}
	batchLimit := cfg.Relay.BatchLimit
	if batchLimit <= 0 {
		batchLimit = 64
	}

	var start eventlog.Token
	emptyPolls := 0
	delivered := 0
	for {
		if ctx.Err() != nil {
			relayLog.With(logpkg.Int("delivered", delivered)).Debug("relay.disconnect")
			return nil
		}
		readStart := time.Now()
		items, _ := l.Read(eventlog.ReadOptions{Start: start, Limit: batchLimit})
		if len(items) == 0 {
			if !l.WaitForAppend(pollBlock) {
				if ctx.Err() != nil {
					relayLog.With(logpkg.Int("delivered", delivered)).Debug("relay.disconnect")
					return nil
				}
				emptyPolls++
				if emptyPolls >= maxEmpty {
					return s.timeout(key, sink, relayLog, delivered)
				}
			}
			continue
		}
		emptyPolls = 0
		for _, it := range items {
			kind := entryKind(it)
			if err := sink.Send(Frame{Seq: it.Seq, Kind: kind, Payload: it.Payload}); err != nil {
				relayLog.With(logpkg.Err(err), logpkg.Int("delivered", delivered)).Debug("relay.send_failed")
				return nil
			}
			_ = sink.Flush()
			delivered++
			s.commitDelivered(l, it.Seq)
			switch kind {
			case session.KindDone:
				relayLog.With(logpkg.Int("delivered", delivered)).Debug("relay.complete")
				return nil
			case session.KindError:
				relayLog.With(logpkg.Int("delivered", delivered)).Debug("relay.failed")
				return nil
			}
		}
		start = eventlog.TokenFromSeq(items[len(items)-1].Seq + 1)
		relayLog.With(
			logpkg.Int("batch_n", len(items)),
			logpkg.Int64("deliver_ms", time.Since(readStart).Milliseconds()),
		).Debug("relay.deliver")
	}
}

// timeout delivers the single timeout error frame and ends the stream.
func (s *Service) timeout(key session.Key, sink Sink, relayLog logpkg.Logger, delivered int) error {
	rec := session.ErrorRecord{
		Error:     "stream timeout: no new messages",
		FeatureID: key.FeatureID,
		ChatID:    key.ChatID,
	}
	payload, _ := json.Marshal(rec)
	if err := sink.Send(Frame{Kind: session.KindError, Payload: payload}); err == nil {
		_ = sink.Flush()
	}
	relayLog.With(logpkg.Int("delivered", delivered)).Warn("relay.timeout")
	return ErrTimeout
}

// commitDelivered records delivery progress for inspection. Best-effort; the
// stream itself never depends on the cursor.
func (s *Service) commitDelivered(l *eventlog.Log, seq uint64) {
	_ = l.CommitCursor(relayCursorGroup, eventlog.TokenFromSeq(seq))
	_ = l.StampDelivery(relayCursorGroup, time.Now().UnixMilli())
}

// entryKind classifies an item by its header, falling back to payload
// inspection for entries written without one.
func entryKind(it eventlog.Item) session.EntryKind {
	if h, err := session.DecodeEntryHeader(it.Header); err == nil && h.Kind != "" {
		return h.Kind
	}
	if session.IsSentinelPayload(it.Payload) {
		return session.KindDone
	}
	return session.KindMessage
}
