package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ConsoleOutput writes formatted entries to stdout, routing warnings and
// errors to stderr. A custom Writer overrides both streams.
type ConsoleOutput struct {
	// Writer, when set, receives every entry regardless of level.
	Writer io.Writer

	mu sync.Mutex
}

// NewConsoleOutput creates a console output with default stream routing.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{} }

// Write implements Output.
func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	w := o.Writer
	if w == nil {
		if entry.Level >= WarnLevel {
			w = os.Stderr
		} else {
			w = os.Stdout
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := w.Write(formatted)
	return err
}

// Close implements Output.
func (o *ConsoleOutput) Close() error { return nil }

// FileOutput appends formatted entries to a single file, creating parent
// directories on first write.
type FileOutput struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewFileOutput creates a file output for the given path. The file is opened
// lazily on the first write.
func NewFileOutput(path string) *FileOutput { return &FileOutput{path: path} }

// Write implements Output.
func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		if dir := filepath.Dir(o.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log dir: %w", err)
			}
		}
		f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.f = f
	}
	_, err := o.f.Write(formatted)
	return err
}

// Close implements Output.
func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		return nil
	}
	err := o.f.Close()
	o.f = nil
	return err
}

// NullOutput discards everything; useful in tests.
type NullOutput struct{}

// Write implements Output.
func (NullOutput) Write(*Entry, []byte) error { return nil }

// Close implements Output.
func (NullOutput) Close() error { return nil }
