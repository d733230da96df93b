package session

import (
	"errors"
	"fmt"
	"strings"
)

// KeyPrefix is the addressing prefix for session logs.
const KeyPrefix = "stream:"

// Sentinel is the reserved payload that marks normal completion of a
// session's log. It is forwarded to clients verbatim.
const Sentinel = "[DONE]"

// ErrInvalidKey reports a malformed session key or key component.
var ErrInvalidKey = errors.New("invalid session key")

// Key identifies one generation session: a feature and a conversation.
type Key struct {
	FeatureID string
	ChatID    string
}

// NewKey builds a validated Key from its components.
func NewKey(featureID, chatID string) (Key, error) {
	k := Key{FeatureID: featureID, ChatID: chatID}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// String returns the log address for the session: stream:<feature>:<chat>.
func (k Key) String() string {
	return KeyPrefix + k.FeatureID + ":" + k.ChatID
}

// Validate checks that both components are present and addressable. Colons
// are reserved as the address separator, slashes as the storage keyspace
// separator.
func (k Key) Validate() error {
	if k.FeatureID == "" || k.ChatID == "" {
		return fmt.Errorf("%w: feature and chat must be non-empty", ErrInvalidKey)
	}
	if strings.ContainsAny(k.FeatureID, ":/") || strings.ContainsAny(k.ChatID, ":/") {
		return fmt.Errorf("%w: components must not contain ':' or '/'", ErrInvalidKey)
	}
	return nil
}

// ParseKey parses a log address of the form stream:<feature>:<chat>.
func ParseKey(s string) (Key, error) {
	rest, ok := strings.CutPrefix(s, KeyPrefix)
	if !ok {
		return Key{}, fmt.Errorf("%w: missing %q prefix", ErrInvalidKey, KeyPrefix)
	}
	feature, chat, ok := strings.Cut(rest, ":")
	if !ok {
		return Key{}, fmt.Errorf("%w: missing chat component", ErrInvalidKey)
	}
	return NewKey(feature, chat)
}

// Job is the queued work order for one generation run. Its JSON encoding is
// the queue message payload.
type Job struct {
	FeatureID string `json:"feature_id"`
	ChatID    string `json:"chat_id"`
}

// Key returns the session the job generates for.
func (j Job) Key() Key {
	return Key{FeatureID: j.FeatureID, ChatID: j.ChatID}
}

// Message is one produced application message. The JSON encoding of this
// struct is the entry payload relayed to clients.
type Message struct {
	ID                 string `json:"id"`
	FeatureID          string `json:"feature_id"`
	ChatID             string `json:"chat_id"`
	Message            string `json:"message"`
	Timestamp          string `json:"timestamp"`
	ContainerID        string `json:"container_id"`
	ContainerFeatureID string `json:"container_feature_id"`
	Worker             string `json:"worker"`
}

// ErrorRecord is the terminal payload recording abnormal completion. Relays
// forward it as data and then end the stream.
type ErrorRecord struct {
	Error     string `json:"error"`
	FeatureID string `json:"feature_id"`
	ChatID    string `json:"chat_id"`
}

// IsSentinelPayload reports whether a raw entry payload is the completion
// sentinel. Used as a fallback when an entry carries no kind header.
func IsSentinelPayload(p []byte) bool { return string(p) == Sentinel }
