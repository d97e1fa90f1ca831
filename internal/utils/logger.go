// Package utils provides utility functions and types shared by the extractor packages
//
//nolint:revive // utils is a common pattern for internal utilities
package utils

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

// AppName is the RFC 5424 APP-NAME used for every emitted line.
const AppName = "iosextract"

// Logger defines the interface for logging operations
type Logger interface {
	LogInfo(message string, meta map[string]string)
	LogWarn(message string, meta map[string]string)
	LogError(message string, meta map[string]string)
	LogDebug(message string, meta map[string]string)
}

// RFC5424Logger implements Logger with RFC 5424 compliant syslog format using crewjam/rfc5424
type RFC5424Logger struct {
	appName   string
	hostname  string
	processID string
	facility  rfc5424.Priority
	minLevel  rfc5424.Priority
	mu        sync.Mutex
	out       io.Writer
	logs      []string // in-memory copy embedded in the extraction report
}

// NewRFC5424Logger creates a new RFC 5424 compliant logger writing to out.
// A nil writer discards output but still captures lines.
func NewRFC5424Logger(appName string, out io.Writer) *RFC5424Logger {
	if out == nil {
		out = io.Discard
	}
	return &RFC5424Logger{
		appName:   appName,
		hostname:  getHostname(),
		processID: strconv.Itoa(os.Getpid()),
		facility:  rfc5424.User,
		minLevel:  rfc5424.Info,
		out:       out,
		logs:      make([]string, 0),
	}
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return hostname
}

// ParseLevel maps a textual level to its syslog severity.
func ParseLevel(level string) (rfc5424.Priority, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return rfc5424.Debug, nil
	case "", "info":
		return rfc5424.Info, nil
	case "warn", "warning":
		return rfc5424.Warning, nil
	case "error":
		return rfc5424.Error, nil
	default:
		return rfc5424.Info, fmt.Errorf("unknown log level %q", level)
	}
}

// SetLevel sets the least severe level that is still emitted.
func (l *RFC5424Logger) SetLevel(level rfc5424.Priority) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

func (l *RFC5424Logger) createMessage(severity rfc5424.Priority, message string, meta map[string]string) *rfc5424.Message {
	now := time.Now().UTC()
	msg := &rfc5424.Message{
		Priority:  l.facility | severity,
		Timestamp: now,
		Hostname:  l.hostname,
		AppName:   l.appName,
		ProcessID: l.processID,
		MessageID: fmt.Sprintf("ID%d", now.UnixNano()%100000),
		Message:   []byte(message),
	}

	// Sorted so the same record always renders identically.
	keys := make([]string, 0, len(meta))
	for key := range meta {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		msg.AddDatum("meta@1", key, meta[key])
	}

	return msg
}

func (l *RFC5424Logger) writeLog(severity rfc5424.Priority, message string, meta map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if severity > l.minLevel {
		return
	}

	msg := l.createMessage(severity, message, meta)
	var formattedLog string
	raw, err := msg.MarshalBinary()
	if err != nil {
		formattedLog = fmt.Sprintf("<%d>1 %s %s %s %s - - %s",
			int(l.facility|severity),
			msg.Timestamp.Format(time.RFC3339),
			l.hostname, l.appName, l.processID, message)
	} else {
		formattedLog = string(raw)
	}
	_, _ = fmt.Fprintln(l.out, formattedLog)
	l.logs = append(l.logs, formattedLog)
}

// LogInfo logs an informational message (severity Info)
func (l *RFC5424Logger) LogInfo(message string, meta map[string]string) {
	l.writeLog(rfc5424.Info, message, meta)
}

// LogWarn logs a warning message (severity Warning)
func (l *RFC5424Logger) LogWarn(message string, meta map[string]string) {
	l.writeLog(rfc5424.Warning, message, meta)
}

// LogError logs an error message (severity Error)
func (l *RFC5424Logger) LogError(message string, meta map[string]string) {
	l.writeLog(rfc5424.Error, message, meta)
}

// LogDebug logs a debug message (severity Debug)
func (l *RFC5424Logger) LogDebug(message string, meta map[string]string) {
	l.writeLog(rfc5424.Debug, message, meta)
}

// GetLogs returns a copy of all captured logs
func (l *RFC5424Logger) GetLogs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	logsCopy := make([]string, len(l.logs))
	copy(logsCopy, l.logs)
	return logsCopy
}

// ClearLogs clears the in-memory log buffer
func (l *RFC5424Logger) ClearLogs() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = make([]string, 0)
}

// DefaultLogger is the global logger instance
var DefaultLogger *RFC5424Logger

// InitDefaultLogger initializes the global logger instance writing to stderr.
func InitDefaultLogger() {
	DefaultLogger = NewRFC5424Logger(AppName, os.Stderr)
}

// SetDefaultLogger replaces the global logger; tests use it to capture output.
func SetDefaultLogger(logger *RFC5424Logger) {
	DefaultLogger = logger
}

// Convenience functions using the global logger

// LogInfo logs an informational message using the default logger
func LogInfo(message string, meta map[string]string) {
	if DefaultLogger != nil {
		DefaultLogger.LogInfo(message, meta)
	}
}

// LogWarn logs a warning message using the default logger
func LogWarn(message string, meta map[string]string) {
	if DefaultLogger != nil {
		DefaultLogger.LogWarn(message, meta)
	}
}

// LogError logs an error message using the default logger
func LogError(message string, meta map[string]string) {
	if DefaultLogger != nil {
		DefaultLogger.LogError(message, meta)
	}
}

// LogDebug logs a debug message using the default logger
func LogDebug(message string, meta map[string]string) {
	if DefaultLogger != nil {
		DefaultLogger.LogDebug(message, meta)
	}
}

// GetLogs returns logs from the default logger
func GetLogs() []string {
	if DefaultLogger != nil {
		return DefaultLogger.GetLogs()
	}
	return []string{}
}

// ClearLogs clears logs from the default logger
func ClearLogs() {
	if DefaultLogger != nil {
		DefaultLogger.ClearLogs()
	}
}
