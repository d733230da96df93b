// Package log provides the structured logging facade used across streamd.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by the
// standard library slog via a custom handler that routes records through a
// formatter/outputs pipeline, so slog-aware code and this facade produce
// consistent output.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("relay"), log.Str("session", key))
//	l.Info("stream attached", log.Int("port", 8080))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config: level, json or text
// formatting, and a console, file, or null output.
//
// # Interop
//
// To integrate with libraries expecting *log.Logger, use ToStdLogger or
// RedirectStdLog; the latter routes the process-global standard logger
// through this facade.
package log
