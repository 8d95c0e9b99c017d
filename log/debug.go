package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Debug mode configuration
var (
	DebugEnabled bool
	DebugLog     *log.Logger
	debugLogFile *os.File
)

var debugLogFileName = filepath.Join(os.TempDir(), "ticmd-debug.log")

// InitDebug initializes debug logging if TICMD_DEBUG=1 is set. Debug mode
// also turns on the command profiler, which times every tmux invocation.
func InitDebug() {
	if os.Getenv("TICMD_DEBUG") != "1" {
		DebugLog = log.New(io.Discard, "", 0)
		return
	}

	DebugEnabled = true

	f, err := os.OpenFile(debugLogFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		if ErrorLog != nil {
			ErrorLog.Printf("could not open debug log file: %s", err)
		}
		DebugLog = log.New(io.Discard, "", 0)
		return
	}

	DebugLog = log.New(f, "DEBUG:", log.Ldate|log.Ltime|log.Lmicroseconds)
	debugLogFile = f

	DebugLog.Println("Debug mode enabled")
	DebugLog.Printf("Debug log: %s", debugLogFileName)
}

// CloseDebug closes the debug log file.
func CloseDebug() {
	if debugLogFile != nil {
		_ = debugLogFile.Close()
		debugLogFile = nil
		fmt.Fprintln(os.Stderr, "wrote debug logs to "+debugLogFileName)
	}
}

// Debug logs a debug message if debug mode is enabled.
func Debug(format string, v ...interface{}) {
	if DebugEnabled && DebugLog != nil {
		DebugLog.Printf(format, v...)
	}
}

// CommandProfiler tracks how long external commands take, keyed by name
// (the tmux subcommand).
type CommandProfiler struct {
	mu       sync.RWMutex
	commands map[string]*CommandMetrics
}

// CommandMetrics tracks metrics for a single command name.
type CommandMetrics struct {
	Name      string
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

var profiler = &CommandProfiler{
	commands: make(map[string]*CommandMetrics),
}

// GetProfiler returns the global command profiler.
func GetProfiler() *CommandProfiler {
	return profiler
}

// StartCommand begins timing a command. The returned function must be called
// with the command's error once it completes.
func (p *CommandProfiler) StartCommand(name string) func(err error) {
	if !DebugEnabled {
		return func(error) {}
	}

	start := time.Now()
	return func(err error) {
		elapsed := time.Since(start)
		p.record(name, elapsed, err != nil)
		if err != nil {
			Debug("[CMD] %s failed after %v: %v", name, elapsed, err)
		} else {
			Debug("[CMD] %s took %v", name, elapsed)
		}
	}
}

func (p *CommandProfiler) record(name string, elapsed time.Duration, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics, ok := p.commands[name]
	if !ok {
		metrics = &CommandMetrics{
			Name:    name,
			MinTime: elapsed,
			MaxTime: elapsed,
		}
		p.commands[name] = metrics
	}

	metrics.Count++
	metrics.TotalTime += elapsed
	if failed {
		metrics.Failures++
	}
	if elapsed < metrics.MinTime {
		metrics.MinTime = elapsed
	}
	if elapsed > metrics.MaxTime {
		metrics.MaxTime = elapsed
	}
}

// Metrics returns a copy of the metrics recorded for name.
func (p *CommandProfiler) Metrics(name string) (CommandMetrics, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, ok := p.commands[name]
	if !ok {
		return CommandMetrics{}, false
	}
	return *m, true
}

// GetStats returns a summary of command statistics.
func (p *CommandProfiler) GetStats() string {
	if !DebugEnabled {
		return ""
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.commands) == 0 {
		return ""
	}

	var sorted []*CommandMetrics
	for _, m := range p.commands {
		sorted = append(sorted, m)
	}
	// Sort by total time descending
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TotalTime > sorted[j].TotalTime
	})

	var sb strings.Builder
	sb.WriteString("\n=== Command Profile ===\n")
	for _, m := range sorted {
		avg := m.TotalTime / time.Duration(m.Count)
		sb.WriteString(fmt.Sprintf("  %s: count=%d failed=%d total=%v avg=%v min=%v max=%v\n",
			m.Name, m.Count, m.Failures, m.TotalTime, avg, m.MinTime, m.MaxTime))
	}
	return sb.String()
}

// LogStats logs the current command statistics.
func (p *CommandProfiler) LogStats() {
	if stats := p.GetStats(); stats != "" && DebugLog != nil {
		DebugLog.Print(stats)
	}
}

// Reset clears all profiling data.
func (p *CommandProfiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.commands = make(map[string]*CommandMetrics)
}
