package eventlog

import (
	"encoding/binary"
)

// Group cursors track how far one consumer group has worked through a log.
// Commits are monotone: a replayed or out-of-order commit at or below the
// stored position is dropped, so retries never move a group backward.
func (l *Log) CommitCursor(group string, tok Token) error {
	key := KeyCursor(l.namespace, l.topic, group, l.part)
	if cur, err := l.db.Get(key); err == nil && len(cur) >= 8 {
		if tok.Seq() <= binary.BigEndian.Uint64(cur[:8]) {
			return nil
		}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], tok.Seq())
	return l.db.Set(key, buf[:])
}

// GetCursor loads the stored position for a group, reporting false when the
// group has never committed.
func (l *Log) GetCursor(group string) (Token, bool) {
	cur, err := l.db.Get(KeyCursor(l.namespace, l.topic, group, l.part))
	if err != nil || len(cur) < 8 {
		return Token{}, false
	}
	var t Token
	copy(t[:], cur[:8])
	return t, true
}

// StampDelivery records the wall-clock time (unix ms) of the group's latest
// delivery next to its cursor. Session listings surface the stamp, which
// makes streams nobody is draining visible.
func (l *Log) StampDelivery(group string, atMs int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(atMs))
	return l.db.Set(KeyCursorLastDelivered(l.namespace, l.topic, group, l.part), buf[:])
}

// LastDeliveryMs reads the group's delivery stamp, reporting false when no
// delivery was ever recorded.
func (l *Log) LastDeliveryMs(group string) (int64, bool) {
	v, err := l.db.Get(KeyCursorLastDelivered(l.namespace, l.topic, group, l.part))
	if err != nil || len(v) < 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(v[:8])), true
}
