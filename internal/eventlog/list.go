package eventlog

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

// LogInfo summarizes one stored partition.
type LogInfo struct {
	Topic       string
	Partition   uint32
	LastSeq     uint64
	ExpiresAtMs int64 // 0 when no deadline is set
}

// LogExists reports whether the partition has been written and has not passed
// its reclamation deadline. An expired but unswept partition counts as absent.
func LogExists(db *pebblestore.DB, namespace, topic string, partition uint32, nowMs int64) (bool, error) {
	found, err := db.Has(KeyLogMeta(namespace, topic, partition))
	if err != nil || !found {
		return false, err
	}
	v, err := db.Get(KeyLogExpiry(namespace, topic, partition))
	if err != nil || len(v) < 8 {
		return true, nil
	}
	return int64(binary.BigEndian.Uint64(v[:8])) > nowMs, nil
}

// ListLogs scans partition metadata under the namespace and returns one entry
// per live partition, in topic order. Expired but unswept partitions are
// skipped, matching LogExists.
func ListLogs(db *pebblestore.DB, namespace string, nowMs int64) ([]LogInfo, error) {
	pfx := KeyLogTopicsPrefix(namespace)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: pfx, UpperBound: prefixUpperBound(pfx)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var infos []LogInfo
	for ok := iter.First(); ok; ok = iter.Next() {
		topic, partition, kind, okParse := parseLogKey(pfx, iter.Key())
		if !okParse || kind != logKeyMeta {
			continue
		}
		v := iter.Value()
		if len(v) < 8 {
			continue
		}
		info := LogInfo{Topic: topic, Partition: partition, LastSeq: binary.BigEndian.Uint64(v[:8])}
		if ev, errGet := db.Get(KeyLogExpiry(namespace, topic, partition)); errGet == nil && len(ev) >= 8 {
			info.ExpiresAtMs = int64(binary.BigEndian.Uint64(ev[:8]))
			if info.ExpiresAtMs <= nowMs {
				continue
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

type logKeyKind int

const (
	logKeyMeta logKeyKind = iota
	logKeyEntry
	logKeyExpiry
	logKeyOther
)

// parseLogKey splits a key under ns/{ns}/log/ into topic, partition and kind.
// The partition is located structurally after the first '/' following the
// topic, so its big-endian bytes may themselves contain '/'.
func parseLogKey(prefix, key []byte) (topic string, partition uint32, kind logKeyKind, ok bool) {
	rest := key[len(prefix):]
	i := bytes.IndexByte(rest, sep)
	if i <= 0 || len(rest) < i+1+4 {
		return "", 0, logKeyOther, false
	}
	topic = string(rest[:i])
	partition = binary.BigEndian.Uint32(rest[i+1 : i+5])
	switch tail := rest[i+5:]; {
	case bytes.Equal(tail, metaSuffix):
		kind = logKeyMeta
	case bytes.Equal(tail, expirySuffix):
		kind = logKeyExpiry
	case bytes.HasPrefix(tail, entrySeg):
		kind = logKeyEntry
	default:
		kind = logKeyOther
	}
	return topic, partition, kind, true
}
