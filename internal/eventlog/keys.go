package eventlog

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - ns/{ns}/log/{topic}/{part_be4}/m
// - ns/{ns}/log/{topic}/{part_be4}/e/{seq_be8}
// - ns/{ns}/log/{topic}/{part_be4}/x
// - ns/{ns}/cursor/{topic}/{group}/{part_be4}
// - ns/{ns}/expidx/{deadline_be8}/{topic}/{part_be4}
//
// Topics must not contain '/': key parsing treats the first slash after the
// namespace segment as the topic boundary.

var (
	sep          = byte('/')
	nsPrefix     = []byte("ns/")
	logSeg       = []byte("/log/")
	cursorSeg    = []byte("/cursor/")
	metaSuffix   = []byte("/m")
	entrySeg     = []byte("/e/")
	ldSuffix     = []byte("/ts")
	expirySuffix = []byte("/x")
	expIdxSeg    = []byte("/expidx/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyLogMeta builds the partition metadata key.
func KeyLogMeta(namespace, topic string, partition uint32) []byte {
	k := make([]byte, 0, len(namespace)+len(topic)+32)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, logSeg...)
	k = append(k, topic...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	k = append(k, metaSuffix...)
	return k
}

// KeyLogEntry builds the entry key with a big-endian sequence for proper ordering.
func KeyLogEntry(namespace, topic string, partition uint32, seq uint64) []byte {
	k := make([]byte, 0, len(namespace)+len(topic)+48)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, logSeg...)
	k = append(k, topic...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// KeyCursor builds the durable cursor key for a group and partition.
func KeyCursor(namespace, topic, group string, partition uint32) []byte {
	k := make([]byte, 0, len(namespace)+len(topic)+len(group)+48)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, cursorSeg...)
	k = append(k, topic...)
	k = append(k, sep)
	k = append(k, group...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	return k
}

// KeyCursorLastDelivered builds the delivery stamp key, colocated with the
// group cursor so DropLog clears both in one range.
// Layout: ns/{ns}/cursor/{topic}/{group}/{part_be4}/ts
func KeyCursorLastDelivered(namespace, topic, group string, partition uint32) []byte {
	k := KeyCursor(namespace, topic, group, partition)
	k = append(k, ldSuffix...)
	return k
}

// KeyCursorTopicPrefix returns the range prefix covering every cursor and
// delivery stamp of a topic, across groups and partitions.
// Layout prefix: ns/{ns}/cursor/{topic}/
func KeyCursorTopicPrefix(namespace, topic string) []byte {
	k := make([]byte, 0, len(namespace)+len(topic)+24)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, cursorSeg...)
	k = append(k, topic...)
	k = append(k, sep)
	return k
}

// KeyLogExpiry builds the per-partition reclamation deadline key.
// Layout: ns/{ns}/log/{topic}/{part_be4}/x
func KeyLogExpiry(namespace, topic string, partition uint32) []byte {
	k := make([]byte, 0, len(namespace)+len(topic)+32)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, logSeg...)
	k = append(k, topic...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	k = append(k, expirySuffix...)
	return k
}

// KeyLogPrefix returns the range prefix covering every key of a topic:
// metadata, entries and the expiry stamp across all partitions.
// Layout prefix: ns/{ns}/log/{topic}/
func KeyLogPrefix(namespace, topic string) []byte {
	k := make([]byte, 0, len(namespace)+len(topic)+16)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, logSeg...)
	k = append(k, topic...)
	k = append(k, sep)
	return k
}

// KeyLogTopicsPrefix returns the range prefix covering every topic of a
// namespace. Layout prefix: ns/{ns}/log/
func KeyLogTopicsPrefix(namespace string) []byte {
	k := make([]byte, 0, len(namespace)+12)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, logSeg...)
	return k
}

// KeyExpiryIndex builds the deadline-ordered index entry pointing at an
// expiring partition. Layout: ns/{ns}/expidx/{deadline_be8}/{topic}/{part_be4}
func KeyExpiryIndex(namespace string, deadlineMs int64, topic string, partition uint32) []byte {
	k := make([]byte, 0, len(namespace)+len(topic)+40)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, expIdxSeg...)
	k = appendBE8(k, uint64(deadlineMs))
	k = append(k, sep)
	k = append(k, topic...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	return k
}

// KeyExpiryIndexPrefix returns the range prefix for the namespace expiry index.
func KeyExpiryIndexPrefix(namespace string) []byte {
	k := make([]byte, 0, len(namespace)+12)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, expIdxSeg...)
	return k
}

// parseExpiryIndexKey recovers deadline, topic and partition from an index
// key. The partition is fixed-width at the tail, so a topic never needs
// escaping as long as it contains no '/'.
func parseExpiryIndexKey(prefix, key []byte) (deadlineMs int64, topic string, partition uint32, ok bool) {
	rest := key[len(prefix):]
	// deadline_be8 '/' topic '/' part_be4
	if len(rest) < 8+1+1+1+4 {
		return 0, "", 0, false
	}
	deadlineMs = int64(binary.BigEndian.Uint64(rest[:8]))
	if rest[8] != sep || rest[len(rest)-5] != sep {
		return 0, "", 0, false
	}
	topic = string(rest[9 : len(rest)-5])
	partition = binary.BigEndian.Uint32(rest[len(rest)-4:])
	return deadlineMs, topic, partition, true
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix. All builders above end prefixes with '/', so incrementing the
// final byte never carries.
func prefixUpperBound(prefix []byte) []byte {
	hi := append([]byte(nil), prefix...)
	hi[len(hi)-1]++
	return hi
}
