package eventlog

import (
	"encoding/binary"
	"hash/crc32"
)

// Log entries are stored as:
//
//	uvarint headerLen | header | payload | crc32c over header+payload
//
// The varint keeps the common no-header entry at one byte of framing, and
// the checksum lets readers drop entries corrupted by a torn write instead
// of relaying garbage frames.

var recordCRC = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord frames a header and payload into one storage value.
func EncodeRecord(header, payload []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	prefix := binary.PutUvarint(lenBuf[:], uint64(len(header)))

	out := make([]byte, prefix+len(header)+len(payload)+4)
	copy(out, lenBuf[:prefix])
	copy(out[prefix:], header)
	copy(out[prefix+len(header):], payload)

	sum := crc32.Update(0, recordCRC, out[prefix:len(out)-4])
	binary.BigEndian.PutUint32(out[len(out)-4:], sum)
	return out
}

// Decoded holds a record's two sections, copied out of the storage value.
type Decoded struct {
	Header  []byte
	Payload []byte
}

// DecodeRecord unframes a storage value, reporting false for anything
// structurally invalid or failing its checksum.
func DecodeRecord(b []byte) (Decoded, bool) {
	hlen, prefix := binary.Uvarint(b)
	if prefix <= 0 {
		return Decoded{}, false
	}
	if uint64(len(b)) < uint64(prefix)+hlen+4 {
		return Decoded{}, false
	}
	body := b[prefix : len(b)-4]
	if crc32.Update(0, recordCRC, body) != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return Decoded{}, false
	}
	return Decoded{
		Header:  append([]byte(nil), body[:hlen]...),
		Payload: append([]byte(nil), body[hlen:]...),
	}, true
}
