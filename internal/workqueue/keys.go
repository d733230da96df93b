package workqueue

import (
	"encoding/binary"
	"strconv"
)

// All queue state lives under ns/{namespace}/wq/{name}/. Index keys embed
// big-endian fixed-width integers so lexicographic key order doubles as
// numeric order, and jobs are addressed by a 16-byte id whose low half is
// the sequence.
const (
	prefixPriority  = "priority_idx/"
	prefixDelay     = "delay_idx/"
	prefixLease     = "lease/"
	prefixLeaseIdx  = "lease_idx/"
	prefixDLQ       = "dlq/"
	prefixCons      = "cons/"
	prefixConsIdx   = "cons_idx/"
	prefixCompleted = "completed/"
)

func baseKey(namespace, name, section string) []byte {
	return []byte("ns/" + namespace + "/wq/" + name + "/" + section)
}

// MetaKey addresses the per-partition summary record.
// Layout: ns/{ns}/wq/{name}/meta/{partition}
func MetaKey(namespace, name string, partition uint32) []byte {
	return baseKey(namespace, name, "meta/"+strconv.FormatUint(uint64(partition), 10))
}

// MsgKey addresses one stored job body.
// Layout: ns/{ns}/wq/{name}/msg/{partition}/{seq}
func MsgKey(namespace, name string, partition uint32, seq uint64) []byte {
	return baseKey(namespace, name,
		"msg/"+strconv.FormatUint(uint64(partition), 10)+"/"+strconv.FormatUint(seq, 10))
}

// PrioKey indexes an available job. Lower priority values sort first, and
// within a priority the seq keeps FIFO order.
// Layout: ns/{ns}/wq/{name}/priority_idx/{priority BE4}{id 16}
func PrioKey(namespace, name string, priority uint32, seq uint64) []byte {
	k := binary.BigEndian.AppendUint32(baseKey(namespace, name, prefixPriority), priority)
	id := seqToMsgID(seq)
	return append(k, id[:]...)
}

// PrioPrefix spans the whole priority index.
func PrioPrefix(namespace, name string) []byte {
	return baseKey(namespace, name, prefixPriority)
}

// DelayKey indexes a job waiting for its fire time.
// Layout: ns/{ns}/wq/{name}/delay_idx/{ready_at_ms BE8}{id 16}
func DelayKey(namespace, name string, readyAtMs uint64, id [16]byte) []byte {
	k := binary.BigEndian.AppendUint64(baseKey(namespace, name, prefixDelay), readyAtMs)
	return append(k, id[:]...)
}

// DelayPrefix spans the whole delay index.
func DelayPrefix(namespace, name string) []byte {
	return baseKey(namespace, name, prefixDelay)
}

// LeaseKey addresses a group's lease record for one job.
// Layout: ns/{ns}/wq/{name}/lease/{group}/{id 16}
func LeaseKey(namespace, name, group string, id [16]byte) []byte {
	return append(baseKey(namespace, name, prefixLease+group+"/"), id[:]...)
}

// LeasePrefix spans a group's lease records.
func LeasePrefix(namespace, name, group string) []byte {
	return baseKey(namespace, name, prefixLease+group+"/")
}

// LeaseIdxKey indexes a lease by its expiry so the sweeper scans in
// deadline order.
// Layout: ns/{ns}/wq/{name}/lease_idx/{expires_ms BE8}{id 16}
func LeaseIdxKey(namespace, name string, expiresMs uint64, id [16]byte) []byte {
	k := binary.BigEndian.AppendUint64(baseKey(namespace, name, prefixLeaseIdx), expiresMs)
	return append(k, id[:]...)
}

// LeaseIdxPrefix spans the lease expiry index.
func LeaseIdxPrefix(namespace, name string) []byte {
	return baseKey(namespace, name, prefixLeaseIdx)
}

// DLQKey addresses a dead-lettered job in a group.
// Layout: ns/{ns}/wq/{name}/dlq/{group}/{id 16}
func DLQKey(namespace, name, group string, id [16]byte) []byte {
	return append(baseKey(namespace, name, prefixDLQ+group+"/"), id[:]...)
}

// DLQPrefix spans a group's dead letters.
func DLQPrefix(namespace, name, group string) []byte {
	return baseKey(namespace, name, prefixDLQ+group+"/")
}

// consumerKey addresses one worker registration.
// Layout: ns/{ns}/wq/{name}/cons/{group}/{consumer_id}
func consumerKey(namespace, name, group, consumerID string) []byte {
	return baseKey(namespace, name, prefixCons+group+"/"+consumerID)
}

// consumerIndexKey indexes a registration by its expiry deadline.
// Layout: ns/{ns}/wq/{name}/cons_idx/{group}/{expires_ms BE8}{consumer_id}
func consumerIndexKey(namespace, name, group string, expiresMs int64, consumerID string) []byte {
	k := binary.BigEndian.AppendUint64(consumerIndexPrefix(namespace, name, group), uint64(expiresMs))
	return append(k, consumerID...)
}

// consumerIndexPrefix spans a group's registration deadlines.
func consumerIndexPrefix(namespace, name, group string) []byte {
	return baseKey(namespace, name, prefixConsIdx+group+"/")
}

// completedKey addresses one finished job result.
// Layout: ns/{ns}/wq/{name}/completed/{seq BE8}
func completedKey(namespace, name string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(baseKey(namespace, name, prefixCompleted), seq)
}

// completedPrefix spans the result buffer.
func completedPrefix(namespace, name string) []byte {
	return baseKey(namespace, name, prefixCompleted)
}

// completedMetaKey addresses the result buffer summary record.
// Layout: ns/{ns}/wq/{name}/completed_meta
func completedMetaKey(namespace, name string) []byte {
	return baseKey(namespace, name, "completed_meta")
}
