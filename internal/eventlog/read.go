package eventlog

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
)

// Token is a read position: the big-endian sequence the next read starts at.
type Token [8]byte

// TokenFromSeq builds a Token positioned at seq. Consumers resume after a
// delivered item with TokenFromSeq(item.Seq + 1).
func TokenFromSeq(seq uint64) Token { var t Token; binary.BigEndian.PutUint64(t[:], seq); return t }

// Seq returns the sequence this token points at.
func (t Token) Seq() uint64 { return binary.BigEndian.Uint64(t[:]) }

// ReadOptions bound one Read call.
type ReadOptions struct {
	Start Token // zero starts at the first live entry
	Limit int   // zero reads to the end of the log
}

// Item is one decoded log entry.
type Item struct {
	Seq     uint64
	Header  []byte
	Payload []byte
}

// Read scans forward from Start (inclusive) and returns up to Limit items
// plus the token to continue from; a zero token means the end of the log
// was reached. A log past its reclamation deadline reads as empty even
// before the sweeper drops its keys, so late consumers see an absent
// session, never a stale one.
func (l *Log) Read(opts ReadOptions) ([]Item, Token) {
	items := make([]Item, 0, max(1, opts.Limit))
	var next Token
	if l.expiredNow() {
		return items, next
	}

	low := KeyLogEntry(l.namespace, l.topic, l.part, 0)
	hi := KeyLogEntry(l.namespace, l.topic, l.part, ^uint64(0))
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return items, next
	}
	defer iter.Close()

	var ok bool
	if start := opts.Start.Seq(); start == 0 {
		ok = iter.First()
	} else {
		ok = iter.SeekGE(KeyLogEntry(l.namespace, l.topic, l.part, start))
	}
	for ; ok && (opts.Limit == 0 || len(items) < opts.Limit); ok = iter.Next() {
		// Entries failing their checksum are skipped, not fatal.
		if dec, valid := DecodeRecord(iter.Value()); valid {
			items = append(items, Item{Seq: entrySeq(iter.Key()), Header: dec.Header, Payload: dec.Payload})
		}
	}
	if ok {
		next = TokenFromSeq(entrySeq(iter.Key()))
	}
	return items, next
}

// entrySeq reads the big-endian sequence that terminates every entry key.
func entrySeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
