package workqueue

import (
	"encoding/binary"
	"hash/crc32"
)

// Stored message layout:
//
//	headerLen uint32 BE | header | payload | crc32c over header+payload
//
// The trailing checksum keeps a torn write from surfacing as a silently
// corrupt job after a crash.

var msgCRC = crc32.MakeTable(crc32.Castagnoli)

// EncodeMessage packs a header and payload into one storage value.
func EncodeMessage(header, payload []byte) []byte {
	n := 4 + len(header) + len(payload) + 4
	out := make([]byte, n)
	binary.BigEndian.PutUint32(out[:4], uint32(len(header)))
	copy(out[4:], header)
	copy(out[4+len(header):], payload)
	sum := crc32.Update(0, msgCRC, out[4:n-4])
	binary.BigEndian.PutUint32(out[n-4:], sum)
	return out
}

// Decoded holds the two sections of a stored message. Both slices are
// copies, safe to retain after a pebble iterator advances.
type Decoded struct {
	Header  []byte
	Payload []byte
}

// DecodeMessage unpacks a storage value, reporting false on any structural
// or checksum mismatch.
func DecodeMessage(b []byte) (Decoded, bool) {
	if len(b) < 8 {
		return Decoded{}, false
	}
	hlen := int(binary.BigEndian.Uint32(b[:4]))
	if 4+hlen+4 > len(b) {
		return Decoded{}, false
	}
	body := b[4 : len(b)-4]
	if crc32.Update(0, msgCRC, body) != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return Decoded{}, false
	}
	return Decoded{
		Header:  append([]byte(nil), body[:hlen]...),
		Payload: append([]byte(nil), body[hlen:]...),
	}, true
}
