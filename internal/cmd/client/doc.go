// Package client provides the `streamd` command-line client.
//
// The CLI talks to the HTTP gateway to open session streams from a
// terminal and to drive load against a running server. It is primarily
// intended for developers and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it is
// read from the STREAMD_HTTP environment variable and defaults to
// http://127.0.0.1:8080.
//
// Usage
//
//	# Attach to one session and print frames until it completes
//	streamd client stream --feature search --chat demo-1
//
//	# Decode frames into JSON envelopes instead of raw payloads
//	streamd client stream --feature search --decode
//
//	# One round of 20 concurrent streams over 4 features
//	streamd client bench --streams 20 --features 4
//
//	# Sustained load: keep re-requesting for two minutes
//	streamd client bench --streams 50 --features 8 --duration 2m
//
// Notes
//
//   - stream exits non-zero when the session ends with an error frame or
//     when the connection closes before a terminal frame arrives.
//   - bench probes the health route first and refuses to run against an
//     unhealthy server. Failures during the run are tallied per status in
//     the final report rather than aborting the round.
package client
