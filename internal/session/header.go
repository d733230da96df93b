package session

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// EntryKind tags what an entry's payload is, so readers treat termination as
// data rather than sniffing payload bytes.
type EntryKind string

const (
	KindMessage EntryKind = "message"
	KindDone    EntryKind = "done"
	KindError   EntryKind = "error"
)

// Terminal reports whether entries of this kind end a session's log.
func (k EntryKind) Terminal() bool { return k == KindDone || k == KindError }

// EntryHeader is the internal metadata stored alongside each entry payload.
// On the wire it is an 8-byte big-endian millisecond timestamp followed by a
// JSON string map, the same shape the log trimmer and tail filters consume.
type EntryHeader struct {
	TsMs int64
	Kind EntryKind
	MID  string
}

// EncodeEntryHeader serializes an entry header.
func EncodeEntryHeader(h EntryHeader) []byte {
	m := map[string]string{"kind": string(h.Kind)}
	if h.MID != "" {
		m["mid"] = h.MID
	}
	tail, _ := json.Marshal(m)
	buf := make([]byte, 8, 8+len(tail))
	binary.BigEndian.PutUint64(buf, uint64(h.TsMs))
	return append(buf, tail...)
}

// DecodeEntryHeader parses an entry header produced by EncodeEntryHeader.
func DecodeEntryHeader(b []byte) (EntryHeader, error) {
	if len(b) < 8 {
		return EntryHeader{}, fmt.Errorf("entry header too short: %d bytes", len(b))
	}
	h := EntryHeader{TsMs: int64(binary.BigEndian.Uint64(b[:8]))}
	if len(b) == 8 {
		return h, nil
	}
	var m map[string]string
	if err := json.Unmarshal(b[8:], &m); err != nil {
		return EntryHeader{}, fmt.Errorf("decode entry header: %w", err)
	}
	h.Kind = EntryKind(m["kind"])
	h.MID = m["mid"]
	return h, nil
}
