// Package logger provides a concurrency-safe console logger for the
// deploy CLI, with level filtering and byte-count formatting for
// transfer progress lines.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelSuccess
	LevelIgnored
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelSuccess:
		return "SUCCESS"
	case LevelIgnored:
		return "IGNORED"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// glyph is the teacher's emoji prefix for each severity.
func (l Level) glyph() string {
	switch l {
	case LevelInfo:
		return "ℹ️ "
	case LevelSuccess:
		return "✅"
	case LevelIgnored:
		return "🚫"
	case LevelWarn:
		return "⚠️ "
	case LevelError:
		return "❌"
	default:
		return ""
	}
}

// Logger is a minimal leveled, mutex-guarded writer. Safe for concurrent
// use by job runners and the deployer's phase callbacks.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	isTTY    bool
}

// New builds a Logger writing to w at, or above, minLevel.
func New(w io.Writer, minLevel Level) *Logger {
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{out: w, minLevel: minLevel, isTTY: isTTY}
}

// Default is a Logger writing to stderr at LevelInfo.
var Default = New(os.Stderr, LevelInfo)

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.minLevel {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	glyph := level.glyph()
	if glyph == "" {
		fmt.Fprintf(l.out, "[%s] %s\n", level, fmt.Sprintf(format, args...))
		return
	}
	fmt.Fprintf(l.out, "%s %s\n", glyph, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{})   { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})    { l.log(LevelInfo, format, args...) }
func (l *Logger) Successf(format string, args ...interface{}) { l.log(LevelSuccess, format, args...) }
func (l *Logger) Ignoredf(format string, args ...interface{}) { l.log(LevelIgnored, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})    { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.log(LevelError, format, args...) }

// Progress prints a transfer-progress line with human-readable byte
// counts. It is a no-op when the underlying writer isn't a terminal, since
// non-interactive output (logs, CI) shouldn't be spammed with progress.
func (l *Logger) Progress(label string, done, total int64) {
	if !l.isTTY {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "\r%s: %s / %s", label, humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)))
}

// ProgressDone terminates a progress line with a trailing newline.
func (l *Logger) ProgressDone() {
	if !l.isTTY {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out)
}
