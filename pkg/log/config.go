package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config declares a logger in data form, suitable for JSON config files and
// environment plumbing.
type Config struct {
	// Level is the minimum severity: debug, info, warn, error, fatal.
	Level string `json:"level"`
	// Format selects the formatter: json (default) or text.
	Format string `json:"format"`
	// Output selects the sink: console (default), file, or null.
	Output string `json:"output"`
	// FilePath is required when Output is file.
	FilePath string `json:"file_path"`
	// DisableTimestamp omits timestamps from formatted entries.
	DisableTimestamp bool `json:"disable_timestamp"`
	// DisableColors suppresses ANSI colors in text format.
	DisableColors bool `json:"disable_colors"`
}

// ParseLevel converts a level name to a Level. The empty string parses as
// info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// ApplyConfig builds a Logger from a declarative Config.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		formatter = &JSONFormatter{DisableTimestamp: cfg.DisableTimestamp}
	case "text":
		formatter = &TextFormatter{DisableTimestamp: cfg.DisableTimestamp, DisableColors: cfg.DisableColors}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var output Output
	switch strings.ToLower(cfg.Output) {
	case "", "console":
		output = NewConsoleOutput()
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file output requires file_path")
		}
		output = NewFileOutput(cfg.FilePath)
	case "null":
		output = NullOutput{}
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(output)), nil
}

// stdLogWriter adapts a Logger to io.Writer for the standard log package.
type stdLogWriter struct {
	logger Logger
	level  Level
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// ToStdLogger returns a *log.Logger whose output is forwarded to the given
// Logger at the given level.
func ToStdLogger(logger Logger, level Level) *stdlog.Logger {
	return stdlog.New(stdLogWriter{logger: logger, level: level}, "", 0)
}

// RedirectStdLog routes the process-global standard library logger through
// the given Logger at info level, so libraries logging via the log package
// join the structured stream.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdLogWriter{logger: logger, level: InfoLevel})
}
