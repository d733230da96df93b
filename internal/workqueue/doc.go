// Package workqueue implements a one-of-N job queue with lease-based delivery.
//
// Unlike the event log (fanout reads for session relays), the queue ensures
// each job is executed by exactly one worker in a group:
//
// - Lease-based ownership: jobs are leased to workers for a duration
// - Priority ordering: lower priority values dequeue first
// - Delayed delivery: jobs can be held until a specific time
// - Retry & DLQ: failed jobs retry with a delay, then move to the DLQ
// - Consumer registry: workers register and heartbeat with a TTL
// - Completed buffer: finished jobs keep a bounded, aging result record
//
// # Keyspace
//
// All keys are prefixed with ns/{namespace}/wq/{name}/:
//
//	meta/{partition}                    - lastSeq (8B) | available (4B)
//	msg/{partition}/{seq}               - Job data
//	priority_idx/{priority}{id}         - Priority index for dequeue
//	delay_idx/{ready_at_ms}{id}         - Delayed job index
//	lease/{group}/{id}                  - Active lease (expires_ms, attempts)
//	lease_idx/{expires_ms}{id}          - Lease expiry index for sweeping
//	dlq/{group}/{id}                    - Dead Letter Queue
//	cons/{group}/{consumer_id}          - Consumer registry
//	cons_idx/{group}/{expires_ms}{cid}  - Consumer expiry index
//	completed/{seq}                     - Completed job records
//	completed_meta                      - Completed buffer summary
//
// # Job Lifecycle
//
//  1. Enqueue: job written, indexed by priority or delay
//  2. Dequeue: job leased to a worker, prior attempts carried over
//  3. Processing:
//     - ExtendLease: lease renewed while the job runs
//     - Complete: job deleted, lease removed, completed record written
//     - Fail: retry scheduled with a delay, or dead-lettered
//  4. Expiry: lease lapses and the sweeper returns the job to availability
//
// # At-Least-Once Semantics
//
// Jobs are delivered at-least-once. Duplicates can occur if a worker crashes
// after processing but before Complete, or a lease expires mid-run. Workers
// should be idempotent.
package workqueue
