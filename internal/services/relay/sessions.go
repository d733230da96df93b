package relaysvc

import (
	"context"
	"fmt"
	"time"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/eventlog"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
)

// ListSessions returns one SessionInfo per live session log, in key order.
// Expired but unswept logs are skipped. DeliveredSeq is the highest frame
// sequence any relay has pushed to a client; zero when never tailed.
func (s *Service) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	cfg := s.rt.Config()
	infos, err := eventlog.ListLogs(s.rt.DB(), cfg.Namespace, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, 0, len(infos))
	for _, li := range infos {
		key, err := session.ParseKey(li.Topic)
		if err != nil {
			// Not a session log; other topics may share the namespace.
			continue
		}
		si := SessionInfo{
			Key:         li.Topic,
			FeatureID:   key.FeatureID,
			ChatID:      key.ChatID,
			Entries:     li.LastSeq,
			LastSeq:     li.LastSeq,
			ExpiresAtMs: li.ExpiresAtMs,
		}
		l, err := s.rt.SharedLog(cfg.Namespace, li.Topic, li.Partition)
		if err == nil {
			// Trimmed logs no longer start at seq 1.
			if items, _ := l.Read(eventlog.ReadOptions{Limit: 1}); len(items) > 0 {
				si.Entries = li.LastSeq - items[0].Seq + 1
			}
			if tok, ok := l.GetCursor(relayCursorGroup); ok {
				si.DeliveredSeq = tok.Seq()
			}
			if ms, ok := l.LastDeliveryMs(relayCursorGroup); ok {
				si.LastDeliveredMs = ms
			}
		}
		out = append(out, si)
	}
	return out, nil
}

// TailSession streams a session's log to the sink with an optional filter.
// Unlike Stream it is an operator surface: it never emits the timeout error
// frame and it does not advance the delivery cursor. It ends at the log's
// terminal entry, even one the filter suppressed, or when ctx is done.
func (s *Service) TailSession(ctx context.Context, key session.Key, filter Filter, sink Sink) error {
	if err := key.Validate(); err != nil {
		return err
	}
	cfg := s.rt.Config()
	topic := key.String()
	l, err := s.rt.SharedLog(cfg.Namespace, topic, 0)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	pollBlock := time.Duration(cfg.Relay.PollBlockMs) * time.Millisecond
	if pollBlock <= 0 {
		pollBlock = time.Second
	}
	batchLimit := cfg.Relay.BatchLimit
	if batchLimit <= 0 {
		batchLimit = 64
	}

	var start eventlog.Token
	for {
		if ctx.Err() != nil {
			return nil
		}
		items, _ := l.Read(eventlog.ReadOptions{Start: start, Limit: batchLimit})
		if len(items) == 0 {
			l.WaitForAppend(pollBlock)
			continue
		}
		for _, it := range items {
			kind := entryKind(it)
			if filter.Eval(it.Seq, it.Header, it.Payload) {
				if err := sink.Send(Frame{Seq: it.Seq, Kind: kind, Payload: it.Payload}); err != nil {
					return nil
				}
				_ = sink.Flush()
			}
			if kind.Terminal() {
				return nil
			}
		}
		start = eventlog.TokenFromSeq(items[len(items)-1].Seq + 1)
	}
}
