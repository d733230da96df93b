// Package eventlog implements the persistent append-only log backing
// generation sessions.
//
// # Overview
//
// Each session owns one log, addressed by namespace/topic/partition and
// persisted in Pebble. Keys are lexicographically ordered for efficient
// range scans:
//   - ns/{ns}/log/{topic}/{part_be4}/m               (partition metadata: lastSeq)
//   - ns/{ns}/log/{topic}/{part_be4}/e/{seq_be8}     (entries)
//   - ns/{ns}/log/{topic}/{part_be4}/x               (reclamation deadline, ms)
//   - ns/{ns}/cursor/{topic}/{group}/{part_be4}      (durable group cursors)
//   - ns/{ns}/expidx/{deadline_be8}/{topic}/{part_be4} (deadline-ordered expiry index)
//
// Records are stored as: varint headerLen | header | payload | crc32c(header|payload).
//
// API surface (internal)
//
//	l, _ := OpenLog(db, ns, topic, part)
//	// Append a batch atomically; returns assigned seq numbers
//	seqs, _ := l.Append(ctx, []AppendRecord{{Header: h, Payload: p}})
//
//	// Read forward/reverse with an optional start token and limit
//	items, _ := l.Read(ReadOptions{Start: TokenFromSeq(seqs[0]), Limit: 100})
//
//	// Blocking wait/notify for long-poll consumers
//	woke := l.WaitForAppend(time.Second)
//	_ = woke
//
//	// Durable consumer cursor commits (idempotent, no regression)
//	_ = l.CommitCursor("relay", TokenFromSeq(seqs[len(seqs)-1]))
//
//	// Approximate retention by total bytes, batched and throttled,
//	// emitting each committed delete range through ArchiverHook
//	_, _ = l.TrimToMaxBytes(ctx, maxBytes, 1024, 0)
//
// # Expiry
//
// Finished sessions are stamped with SetExpiry. A stamped partition past its
// deadline reads as empty and LogExists reports it absent, so consumers never
// observe a stale session while it waits for reclamation. The ExpirySweeper
// walks the expiry index in deadline order and drops due logs wholesale with
// range deletes.
package eventlog
