package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger provides leveled logging (info/warning/error) to stdout/stderr and,
// when a log directory is configured, to one file per level.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
	mu         sync.Mutex
}

// NewLogger creates a Logger. An empty logDir logs to the console only.
func NewLogger(logDir string) (*Logger, error) {
	if logDir == "" {
		return newLogger(os.Stdout, os.Stdout, os.Stderr), nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{}
	writers := make([]io.Writer, 0, 3)
	for _, name := range []string{"info.log", "warning.log", "error.log"} {
		file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files = append(l.files, file)
		writers = append(writers, file)
	}

	base := newLogger(
		io.MultiWriter(os.Stdout, writers[0]),
		io.MultiWriter(os.Stdout, writers[1]),
		io.MultiWriter(os.Stderr, writers[2]),
	)
	base.files = l.files
	return base, nil
}

// NewWriterLogger sends every level to w. Used by tests and tooling.
func NewWriterLogger(w io.Writer) *Logger {
	return newLogger(w, w, w)
}

func newLogger(info, warning, errw io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		infoLog:    log.New(info, "INFO    ", flags),
		warningLog: log.New(warning, "WARNING ", flags),
		errorLog:   log.New(errw, "ERROR   ", flags),
	}
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// Close releases the log files, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
