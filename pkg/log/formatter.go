package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const defaultTimestampFormat = time.RFC3339Nano

// JSONFormatter renders entries as single-line JSON objects.
type JSONFormatter struct {
	// TimestampFormat overrides the default RFC3339Nano timestamp layout.
	TimestampFormat string
	// DisableTimestamp omits the ts key entirely.
	DisableTimestamp bool
	// PrettyPrint indents the output; intended for debugging only.
	PrettyPrint bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		if err, ok := v.(error); ok {
			data[k] = err.Error()
			continue
		}
		data[k] = v
	}
	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = defaultTimestampFormat
		}
		data["ts"] = entry.Timestamp.Format(layout)
	}
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	if entry.Caller != "" {
		data["caller"] = entry.Caller
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if f.PrettyPrint {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("marshal log entry: %w", err)
	}
	return buf.Bytes(), nil
}

// TextFormatter renders entries as human-readable lines:
//
//	2024-01-02T15:04:05Z INFO  server started component=http port=8080
type TextFormatter struct {
	// TimestampFormat overrides the default RFC3339Nano timestamp layout.
	TimestampFormat string
	// DisableTimestamp omits the leading timestamp.
	DisableTimestamp bool
	// DisableColors suppresses ANSI level coloring.
	DisableColors bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b bytes.Buffer
	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = defaultTimestampFormat
		}
		b.WriteString(entry.Timestamp.Format(layout))
		b.WriteByte(' ')
	}
	b.WriteString(f.levelText(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	// Deterministic field order keeps text output diffable.
	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := entry.Fields[k]
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *TextFormatter) levelText(level Level) string {
	text := fmt.Sprintf("%-5s", level.String())
	if f.DisableColors {
		return text
	}
	switch level {
	case DebugLevel:
		return "\x1b[36m" + text + "\x1b[0m"
	case InfoLevel:
		return "\x1b[32m" + text + "\x1b[0m"
	case WarnLevel:
		return "\x1b[33m" + text + "\x1b[0m"
	case ErrorLevel, FatalLevel:
		return "\x1b[31m" + text + "\x1b[0m"
	default:
		return text
	}
}
