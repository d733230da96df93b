package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// slogBridge adapts the slog.Handler contract onto the formatter/output
// pipeline owned by BaseLogger. Derived slog loggers share one bridge chain,
// so attribute and group state rides on copies of this struct.
type slogBridge struct {
	root   *BaseLogger
	attrs  []slog.Attr
	groups []string
}

func newSlogBridge(root *BaseLogger) *slogBridge {
	return &slogBridge{root: root}
}

// Enabled consults the root logger level. Derived loggers apply their own
// gate in emit before records ever reach the bridge.
func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return b.root.level <= levelFromSlog(level)
}

// Handle renders the record through the configured formatter and fans the
// bytes out to every output.
func (b *slogBridge) Handle(_ context.Context, r slog.Record) error {
	fields := make(Fields, r.NumAttrs()+len(b.attrs))
	for _, a := range b.attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[b.fieldKey(a.Key)] = a.Value.Any()
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	entry := &Entry{
		Level:     levelFromSlog(r.Level),
		Message:   r.Message,
		Fields:    fields,
		Timestamp: ts,
		Caller:    callSite(r.PC),
	}

	formatted, err := b.root.formatter.Format(entry)
	if err != nil {
		return err
	}
	for _, out := range b.root.outputs {
		_ = out.Write(entry, formatted)
	}
	return nil
}

// WithAttrs resolves group qualification at attach time, so Handle can use
// the stored keys as they are.
func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return b
	}
	nb := *b
	nb.attrs = make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	nb.attrs = append(nb.attrs, b.attrs...)
	for _, a := range attrs {
		a.Key = b.fieldKey(a.Key)
		nb.attrs = append(nb.attrs, a)
	}
	return &nb
}

// WithGroup qualifies later attribute keys with a dotted prefix. The slog
// contract wants an empty name treated as inline.
func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	nb := *b
	nb.groups = append(append([]string{}, b.groups...), name)
	return &nb
}

func (b *slogBridge) fieldKey(key string) string {
	if len(b.groups) == 0 {
		return key
	}
	return strings.Join(b.groups, ".") + "." + key
}

// callSite resolves the program counter recorded by slog into file:line.
func callSite(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return frame.File + ":" + strconv.Itoa(frame.Line)
}

func levelToSlog(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel, FatalLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelFromSlog(level slog.Level) Level {
	switch {
	case level < slog.LevelInfo:
		return DebugLevel
	case level < slog.LevelWarn:
		return InfoLevel
	case level < slog.LevelError:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// fieldAttrs converts the variadic Field form used by the typed API.
func fieldAttrs(fields []Field) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

// asAnySlice widens attrs for slog.Logger.With, which takes ...any.
func asAnySlice(attrs []slog.Attr) []any {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]any, len(attrs))
	for i := range attrs {
		out[i] = attrs[i]
	}
	return out
}
