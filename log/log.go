// Package log holds the process-wide loggers. Results go to stdout, so every
// logger here writes to a file in the temp dir (and to stderr in verbose mode).
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	WarningLog *log.Logger
	InfoLog    *log.Logger
	ErrorLog   *log.Logger
)

var logFileName = filepath.Join(os.TempDir(), "ticmd.log")

var (
	globalLogFile *os.File
	fileOut       io.Writer = io.Discard
	verbose       bool
)

func init() {
	// Usable before Initialize, e.g. from tests.
	WarningLog = log.New(io.Discard, "", 0)
	InfoLog = log.New(io.Discard, "", 0)
	ErrorLog = log.New(io.Discard, "", 0)
	DebugLog = log.New(io.Discard, "", 0)
}

// Initialize opens the log file. With verbose set, info and error lines are
// mirrored to stderr as well.
func Initialize(verbose bool) {
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	fileOut = io.Discard
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open log file: %s\n", err)
	} else {
		fileOut = f
		globalLogFile = f
	}

	WarningLog = log.New(fileOut, "WARNING:", log.Ldate|log.Ltime|log.Lshortfile)
	SetVerbose(verbose)

	InitDebug()
}

// SetVerbose switches mirroring of info and error lines to stderr. It may be
// called again once command-line flags have been parsed.
func SetVerbose(v bool) {
	errOut, infoOut := fileOut, fileOut
	if v {
		errOut = io.MultiWriter(fileOut, os.Stderr)
		infoOut = io.MultiWriter(fileOut, os.Stderr)
	}
	verbose = v

	InfoLog = log.New(infoOut, "INFO:", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLog = log.New(errOut, "ERROR:", log.Ldate|log.Ltime|log.Lshortfile)
}

// Verbose reports whether info and error lines also go to stderr.
func Verbose() bool {
	return verbose
}

// Close flushes the profiler and closes the log files.
func Close() {
	GetProfiler().LogStats()
	CloseDebug()
	if globalLogFile != nil {
		_ = globalLogFile.Close()
		globalLogFile = nil
	}
}

// Every is used to log at most once every timeout duration.
type Every struct {
	mu      sync.Mutex
	timeout time.Duration
	last    time.Time
	logged  bool
}

func NewEvery(timeout time.Duration) *Every {
	return &Every{timeout: timeout}
}

// ShouldLog returns true if the timeout has passed since the last log.
func (e *Every) ShouldLog() bool {
	return e.ShouldLogAt(time.Now())
}

// ShouldLogAt is ShouldLog against a caller-supplied clock reading.
func (e *Every) ShouldLogAt(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.logged && now.Sub(e.last) < e.timeout {
		return false
	}
	e.last = now
	e.logged = true
	return true
}

// FilePath returns where the log file is written.
func FilePath() string {
	return logFileName
}
