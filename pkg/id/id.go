package id

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// ID is a 128-bit message identifier: 8 bytes of millisecond timestamp
// followed by 8 bytes of sequence, both big-endian. Byte order is
// generation order, so IDs sort chronologically as raw bytes and as hex.
type ID [16]byte

// String renders the ID as 32 lowercase hex characters.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Compare orders two IDs by generation, returning -1, 0 or 1.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// NowMs is the clock used for the timestamp half of an ID. Tests swap it
// to pin or step time.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Generator hands out process-wide monotone IDs. A clock step backward
// pins the timestamp; a sequence overflow waits out the millisecond.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint64
}

func NewGenerator() *Generator { return &Generator{} }

// Next returns an ID strictly greater than every ID this Generator has
// returned before.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		// Stay on the last millisecond and keep counting rather than
		// emit an ID that sorts before an earlier one.
		ms = g.lastMs
	}
	switch {
	case ms > g.lastMs:
		g.sequence = 0
	case g.sequence == math.MaxUint64:
		ms = g.waitNextMs()
		g.sequence = 0
	default:
		g.sequence++
	}
	g.lastMs = ms

	var out ID
	binary.BigEndian.PutUint64(out[:8], uint64(ms))
	binary.BigEndian.PutUint64(out[8:], g.sequence)
	return out
}

func (g *Generator) waitNextMs() int64 {
	for {
		if ms := NowMs(); ms > g.lastMs {
			return ms
		}
		time.Sleep(100 * time.Microsecond)
	}
}
