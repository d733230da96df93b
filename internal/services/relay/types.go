package relaysvc

import (
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
)

// Frame is one push event delivered to a connected client. Payload is the
// log entry's bytes verbatim; transports frame it but never rewrite it.
type Frame struct {
	Seq     uint64
	Kind    session.EntryKind
	Payload []byte
}

// Sink is implemented by transports to receive relayed frames.
type Sink interface {
	Send(Frame) error
	Flush() error
}

// SessionInfo summarizes one live session log for inspection.
type SessionInfo struct {
	Key             string `json:"key"`
	FeatureID       string `json:"feature_id"`
	ChatID          string `json:"chat_id"`
	Entries         uint64 `json:"entries"`
	LastSeq         uint64 `json:"last_seq"`
	DeliveredSeq    uint64 `json:"delivered_seq"`
	LastDeliveredMs int64  `json:"last_delivered_ms,omitempty"`
	ExpiresAtMs     int64  `json:"expires_at_ms,omitempty"`
}
