// Package debug is the one logging surface pymala uses for per-entity and
// per-file diagnostics that must not abort a run: malformed tags, unbalanced
// extractions, unclosed roots, suppressed rows. Open, read and encoding
// errors are not logged here; the Reader returns them and they end the
// run. Nothing in the rest of the
// module calls fmt.Println directly for diagnostics.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug can be overridden at build time:
// go build -ldflags "-X github.com/standardbeagle/pymala/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	debugOutput io.Writer
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetDebugOutput sets a custom writer for debug output. Pass nil to disable
// debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file under the
// OS temp directory and returns its path.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "pymala-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether debug output is currently requested, either
// via the build flag or the DEBUG environment variable.
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Log writes a structured, component-tagged debug line when debug output is
// enabled and configured; it is a no-op otherwise.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogScan logs a Scanner-level event (find/browse/extract failures).
func LogScan(format string, args ...interface{}) { Log("SCAN", format, args...) }

// LogReader logs a Reader-level event (chunk boundaries, entity counts).
func LogReader(format string, args ...interface{}) { Log("READER", format, args...) }

// LogPath logs a PathCompiler/PathEngine-level event.
func LogPath(format string, args ...interface{}) { Log("PATH", format, args...) }

// LogOrchestrator logs worker fan-out and congestion events.
func LogOrchestrator(format string, args ...interface{}) { Log("ORCH", format, args...) }

// Warn records a non-fatal, tolerant-parsing condition (RootNotClosed,
// UnbalancedExtract, per-entity error) with file+offset context. The run
// continues; the caller carries on with its best-effort result (an
// unclosed root still yields its entity, an unbalanced extract spans to
// the window end).
func Warn(component, path string, offset int64, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(w, "[WARN:%s] %s (offset %d): %s\n", component, path, offset, msg)
}
