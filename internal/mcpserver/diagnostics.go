// Package mcpserver exposes the analysis engine as MCP tools over stdio.
package mcpserver

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiagnosticLogger writes server diagnostics to a log file. Stdout and
// stderr must stay clean while serving MCP: the protocol frames messages
// over stdio and stray output corrupts the stream. Logging failures are
// swallowed; diagnostics must never prevent startup.
type DiagnosticLogger struct {
	mu       sync.Mutex
	file     *os.File
	logger   *log.Logger
	filePath string
}

// NewDiagnosticLogger opens a timestamped log file under the system temp
// directory. stdio=false (CLI mode) logs to stderr instead.
func NewDiagnosticLogger(stdio bool) *DiagnosticLogger {
	dl := &DiagnosticLogger{}
	if !stdio {
		dl.logger = log.New(os.Stderr, "[sca] ", log.LstdFlags)
		return dl
	}

	logDir := filepath.Join(os.TempDir(), "sca-mcp-logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			home = "."
		}
		logDir = filepath.Join(home, ".sca-mcp-logs")
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			dl.logger = log.New(io.Discard, "", 0)
			return dl
		}
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("mcp-%s.log", time.Now().Format("2006-01-02T150405")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		dl.logger = log.New(io.Discard, "", 0)
		return dl
	}
	dl.file = file
	dl.filePath = logPath
	dl.logger = log.New(file, "[sca] ", log.LstdFlags)
	return dl
}

// Printf logs a diagnostic line.
func (dl *DiagnosticLogger) Printf(format string, v ...any) {
	if dl == nil || dl.logger == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.logger.Printf(format, v...)
}

// Errorf logs an error line.
func (dl *DiagnosticLogger) Errorf(format string, v ...any) {
	if dl == nil || dl.logger == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.logger.Printf("ERROR: "+format, v...)
}

// LogPath returns the active log file path, "" when logging to stderr or
// discarded.
func (dl *DiagnosticLogger) LogPath() string {
	if dl == nil {
		return ""
	}
	return dl.filePath
}

// Close closes the log file if one is open.
func (dl *DiagnosticLogger) Close() error {
	if dl == nil {
		return nil
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file != nil {
		return dl.file.Close()
	}
	return nil
}
