package log

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Level is the severity of a log record.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the level name used by the formatters.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Fields is the resolved attribute set a formatter receives.
type Fields map[string]interface{}

// Entry is one log record on its way to the outputs.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
}

// Logger is the structured logging surface shared by every streamd
// component. Fatal closes the outputs and exits the process.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// With returns a derived logger carrying additional fields. The parent
	// is never mutated.
	With(fields ...Field) Logger

	// GetLevel reports the minimum level the logger emits.
	GetLevel() Level
}

// Formatter renders one entry into bytes.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output is one sink the formatted bytes fan out to.
type Output interface {
	Write(entry *Entry, formattedEntry []byte) error
	Close() error
}

// LoggerOption configures NewLogger.
type LoggerOption func(*BaseLogger)

// BaseLogger drives records through a slog handler bridge into the
// formatter and outputs.
type BaseLogger struct {
	level      Level
	formatter  Formatter
	outputs    []Output
	slogLogger *slog.Logger
}

// NewLogger builds a logger. Without options it emits JSON to the console
// at info level.
func NewLogger(options ...LoggerOption) Logger {
	logger := &BaseLogger{
		level:     InfoLevel,
		formatter: &JSONFormatter{},
	}
	for _, option := range options {
		option(logger)
	}
	if len(logger.outputs) == 0 {
		logger.outputs = append(logger.outputs, &ConsoleOutput{})
	}
	logger.slogLogger = slog.New(newSlogBridge(logger))
	return logger
}

// WithLevel sets the minimum emitted level.
func WithLevel(level Level) LoggerOption {
	return func(l *BaseLogger) { l.level = level }
}

// WithFormatter sets the entry formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(l *BaseLogger) { l.formatter = formatter }
}

// WithOutput adds an output sink.
func WithOutput(output Output) LoggerOption {
	return func(l *BaseLogger) { l.outputs = append(l.outputs, output) }
}

// emit routes one record through the slog bridge. The level gate here is
// the authoritative one; the bridge re-checks against the root logger only.
func (l *BaseLogger) emit(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	l.slogLogger.LogAttrs(context.Background(), levelToSlog(level), msg, fieldAttrs(fields)...)
	if level == FatalLevel {
		l.exit()
	}
}

func (l *BaseLogger) exit() {
	for _, out := range l.outputs {
		_ = out.Close()
	}
	os.Exit(1)
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.emit(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.emit(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, fields) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.emit(FatalLevel, msg, fields) }

// With returns a derived logger whose attached fields render on every
// record. Attribute state rides on the slog handler chain.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	nl := *l
	nl.slogLogger = l.slogLogger.With(asAnySlice(fieldAttrs(fields))...)
	return &nl
}

// GetLevel reports the minimum emitted level.
func (l *BaseLogger) GetLevel() Level { return l.level }
