// Package logger is the process-wide run log.
//
// Every line carries a timestamp and a level, and outcome lines carry a
// tag: "[OK]" for confirmed actions, "[X]" for failures, "[WARNING]" for
// non-fatal anomalies and "[INFO]" for observations.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Tags prefixed to outcome messages.
const (
	TagOK      = "[OK]"
	TagFail    = "[X]"
	TagWarning = "[WARNING]"
	TagInfo    = "[INFO]"
)

// TimestampFormat is the layout of the leading timestamp of each line.
const TimestampFormat = "2006-01-02 15:04:05,000"

var (
	base    = newBase()
	logFile *os.File
	mu      sync.Mutex
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&Formatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Formatter renders "timestamp - LEVEL - message key=value ...".
type Formatter struct{}

// Format implements logrus.Formatter.
func (f *Formatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(TimestampFormat))
	b.WriteString(" - ")
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString(" - ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// FileName returns the log file name for a run started at t.
func FileName(t time.Time) string {
	return "todo_test_" + t.Format("02-01-2006(15-04-05)") + ".log"
}

// Init initializes the global logger with the specified log file path.
// Lines are also copied to every mirror writer (typically the console).
func Init(logPath string, mirrors ...io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	logFile = f

	writers := append([]io.Writer{f}, mirrors...)
	base.SetOutput(io.MultiWriter(writers...))
	return nil
}

// SetOutput sends log lines to w without a log file.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}

// SetVerbose enables debug lines.
func SetVerbose(verbose bool) {
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}

// Close closes the log file and silences the logger.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	base.SetOutput(io.Discard)
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// With returns an entry carrying structured fields.
func With(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	base.Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	base.Debugf(format, v...)
}

// Warn logs a tagged warning.
func Warn(format string, v ...interface{}) {
	base.Warnf(TagWarning+" "+format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	base.Errorf(format, v...)
}

// OK logs a confirmed outcome.
func OK(format string, v ...interface{}) {
	base.Infof(TagOK+" "+format, v...)
}

// Fail logs a failed outcome.
func Fail(format string, v ...interface{}) {
	base.Errorf(TagFail+" "+format, v...)
}

// Note logs an observation.
func Note(format string, v ...interface{}) {
	base.Infof(TagInfo+" "+format, v...)
}

// Section logs a phase header.
func Section(title string) {
	base.Infof("--- %s ---", title)
}

// GetWriter returns the log file for components that log through their own writer.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
