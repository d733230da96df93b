// Package id generates the message identifiers stamped on stream frames.
//
// An ID packs a millisecond timestamp and a per-millisecond sequence into
// 16 big-endian bytes, so IDs compare chronologically as raw bytes and as
// their hex rendering. One Generator serves the whole process; it never
// repeats or reorders an ID even when the wall clock steps backward.
//
//	g := id.NewGenerator()
//	frameID := g.Next().String()
package id
