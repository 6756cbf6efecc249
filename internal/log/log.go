// Package log provides structured logging for Tamis. Output goes to a
// file so Bubble Tea programs keep the terminal to themselves, and
// nothing is written until Init or InitWithTeaLog runs.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// parseLevel maps a TAMIS_LOG_LEVEL value to a Level. Unrecognized
// values fall back to debug so a typo never hides output.
func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelDebug
	}
}

// Category groups related log messages.
type Category string

const (
	CatRender     Category = "render"     // Render runs
	CatFilter     Category = "filter"     // Filter registration and dispatch
	CatScript     Category = "script"     // Scripted filter compilation and calls
	CatCache      Category = "cache"      // Cache operations
	CatConfig     Category = "config"     // Configuration loading/saving
	CatWatcher    Category = "watcher"    // File watcher events
	CatTrace      Category = "trace"      // Tracing setup and export
	CatPlayground Category = "playground" // Playground UI updates
)

// logger is the active sink. Package functions are no-ops until one of
// the Init functions installs it.
type logger struct {
	out *os.File
	min Level
}

var (
	mu     sync.Mutex
	active *logger
)

// Init opens path for appending and routes package output there.
// The returned cleanup closes the file.
func Init(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: user-chosen debug log path
	if err != nil {
		return nil, err
	}
	install(f)
	return func() { _ = f.Close() }, nil
}

// InitWithTeaLog routes output through tea.LogToFile so Bubble Tea
// programs and package logging share one file.
func InitWithTeaLog(path string, prefix string) (func(), error) {
	f, err := tea.LogToFile(path, prefix)
	if err != nil {
		return nil, err
	}
	install(f)
	return func() { _ = f.Close() }, nil
}

func install(f *os.File) {
	mu.Lock()
	defer mu.Unlock()
	active = &logger{out: f, min: parseLevel(os.Getenv("TAMIS_LOG_LEVEL"))}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value attached as a field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	write(LevelError, cat, msg, fields...)
}

// write formats one entry and appends it to the log file.
// Format: 2025-12-06T10:45:00.123 [ERROR] [render] message key=value
func write(level Level, cat Category, msg string, fields ...any) {
	mu.Lock()
	defer mu.Unlock()

	if active == nil || level < active.min {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000"))
	fmt.Fprintf(&b, " [%s] [%s] %s", level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		// Orphan key with no value
		fmt.Fprintf(&b, " %v=<missing>", fields[len(fields)-1])
	}
	b.WriteByte('\n')

	_, _ = active.out.WriteString(b.String())
}
