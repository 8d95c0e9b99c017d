// Package tmux drives a tmux server through its command line.
//
// Every call runs one tmux subcommand through a cmd.Executor, so tests can
// replace the real binary with a mock. tmux's stderr is mapped onto the
// sentinel errors below; callers match them with errors.Is.
package tmux

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"ticmd/cmd"
	"ticmd/log"
)

// Common errors
var (
	ErrNoServer           = errors.New("no tmux server running")
	ErrSessionExists      = errors.New("session already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrWindowNotFound     = errors.New("window not found")
	ErrPaneNotFound       = errors.New("pane not found")
	ErrInvalidSessionName = errors.New("invalid session name")
)

// fieldSep separates fields in -F format strings.
const fieldSep = "\t"

// SessionInfo describes one tmux session.
type SessionInfo struct {
	ID       string
	Name     string
	Attached bool
	Windows  int
}

// WindowInfo describes one window of a session.
type WindowInfo struct {
	ID     string
	Index  int
	Name   string
	Active bool
	Panes  int
}

// PaneInfo describes one pane of a window.
type PaneInfo struct {
	ID      string
	Index   int
	Active  bool
	Height  int
	Width   int
	TTY     string
	Command string
}

// NewWindowInfo is what tmux reports about a freshly created window.
type NewWindowInfo struct {
	ID     string
	Index  int
	PaneID string
}

// NewPaneInfo is what tmux reports about a freshly split pane.
type NewPaneInfo struct {
	ID    string
	Index int
}

// Client wraps tmux operations.
type Client struct {
	tmuxPath string
	cmdExec  cmd.Executor
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithTmuxPath sets a custom path to the tmux binary.
func WithTmuxPath(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.tmuxPath = path
		}
	}
}

// WithExecutor replaces the command executor, for tests.
func WithExecutor(e cmd.Executor) ClientOption {
	return func(c *Client) {
		c.cmdExec = e
	}
}

// NewClient creates a new tmux client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		tmuxPath: "tmux",
		cmdExec:  cmd.MakeExecutor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionTarget addresses a session by exact name.
func SessionTarget(session string) string {
	return "=" + session
}

// WindowTarget addresses a window by index within a session.
func WindowTarget(session string, window int) string {
	return fmt.Sprintf("=%s:%d", session, window)
}

// PaneTarget addresses a pane by window and pane index within a session.
func PaneTarget(session string, window, pane int) string {
	return fmt.Sprintf("=%s:%d.%d", session, window, pane)
}

// ValidateSessionName rejects names tmux cannot address: empty names and
// names containing '.' or ':', which tmux reads as target separators.
func ValidateSessionName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, ".:") {
		return fmt.Errorf("%w %q: must be non-empty and contain no '.' or ':'", ErrInvalidSessionName, name)
	}
	return nil
}

// run executes a tmux command and returns its stdout with the trailing
// newline removed.
func (c *Client) run(args ...string) (string, error) {
	done := log.GetProfiler().StartCommand(args[0])
	command := exec.Command(c.tmuxPath, args...)
	log.Debug("[TMUX] %s", cmd.ToString(command))
	out, err := c.cmdExec.Output(command)
	if err != nil {
		err = wrapError(err, args)
	}
	done(err)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// wrapError maps tmux failures onto the sentinel errors.
func wrapError(err error, args []string) error {
	var stderr string
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr = strings.TrimSpace(string(exitErr.Stderr))
	}

	switch {
	case strings.Contains(stderr, "no server running"),
		strings.Contains(stderr, "error connecting to"),
		strings.Contains(stderr, "server exited unexpectedly"):
		return ErrNoServer
	case strings.Contains(stderr, "duplicate session"):
		return fmt.Errorf("%w: %s", ErrSessionExists, stderr)
	case strings.Contains(stderr, "can't find session"),
		strings.Contains(stderr, "session not found"):
		return fmt.Errorf("%w: %s", ErrSessionNotFound, stderr)
	case strings.Contains(stderr, "can't find window"):
		return fmt.Errorf("%w: %s", ErrWindowNotFound, stderr)
	case strings.Contains(stderr, "can't find pane"):
		return fmt.Errorf("%w: %s", ErrPaneNotFound, stderr)
	}

	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

// IsAvailable checks if tmux is installed and runnable.
func (c *Client) IsAvailable() bool {
	_, err := c.run("-V")
	return err == nil
}

// =============================================================================
// Sessions
// =============================================================================

// ListSessions returns every session on the server. No server means no
// sessions, not an error.
func (c *Client) ListSessions() ([]SessionInfo, error) {
	format := strings.Join([]string{"#{session_id}", "#{session_name}", "#{session_attached}", "#{session_windows}"}, fieldSep)
	out, err := c.run("list-sessions", "-F", format)
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return []SessionInfo{}, nil
		}
		return nil, err
	}

	sessions := []SessionInfo{}
	for _, line := range splitLines(out) {
		fields := strings.Split(line, fieldSep)
		if len(fields) != 4 {
			return nil, fmt.Errorf("unexpected list-sessions output %q", line)
		}
		sessions = append(sessions, SessionInfo{
			ID:       fields[0],
			Name:     fields[1],
			Attached: atoi(fields[2]) > 0,
			Windows:  atoi(fields[3]),
		})
	}
	return sessions, nil
}

// HasSession checks if a session with exactly this name exists.
func (c *Client) HasSession(name string) (bool, error) {
	_, err := c.run("has-session", "-t", SessionTarget(name))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewSession creates a detached session and returns its id.
func (c *Client) NewSession(name, startDir string) (string, error) {
	if err := ValidateSessionName(name); err != nil {
		return "", err
	}
	args := []string{"new-session", "-d", "-s", name, "-P", "-F", "#{session_id}"}
	if startDir != "" {
		args = append(args, "-c", startDir)
	}
	return c.run(args...)
}

// KillSession terminates a session.
func (c *Client) KillSession(name string) error {
	_, err := c.run("kill-session", "-t", SessionTarget(name))
	return err
}

// =============================================================================
// Windows
// =============================================================================

// ListWindows returns the windows of a session in index order.
func (c *Client) ListWindows(session string) ([]WindowInfo, error) {
	format := strings.Join([]string{"#{window_id}", "#{window_index}", "#{window_active}", "#{window_panes}", "#{window_name}"}, fieldSep)
	out, err := c.run("list-windows", "-t", SessionTarget(session), "-F", format)
	if err != nil {
		return nil, err
	}

	windows := []WindowInfo{}
	for _, line := range splitLines(out) {
		// The name goes last so a tab inside it cannot shift the other fields.
		fields := strings.SplitN(line, fieldSep, 5)
		if len(fields) != 5 {
			return nil, fmt.Errorf("unexpected list-windows output %q", line)
		}
		windows = append(windows, WindowInfo{
			ID:     fields[0],
			Index:  atoi(fields[1]),
			Active: fields[2] == "1",
			Panes:  atoi(fields[3]),
			Name:   fields[4],
		})
	}
	return windows, nil
}

// NewWindow creates a detached window at the next free index.
func (c *Client) NewWindow(session, name string) (NewWindowInfo, error) {
	format := strings.Join([]string{"#{window_id}", "#{window_index}", "#{pane_id}"}, fieldSep)
	args := []string{"new-window", "-d", "-t", SessionTarget(session) + ":", "-P", "-F", format}
	if name != "" {
		args = append(args, "-n", name)
	}
	out, err := c.run(args...)
	if err != nil {
		return NewWindowInfo{}, err
	}

	fields := strings.Split(strings.TrimSpace(out), fieldSep)
	if len(fields) != 3 {
		return NewWindowInfo{}, fmt.Errorf("unexpected new-window output %q", out)
	}
	return NewWindowInfo{ID: fields[0], Index: atoi(fields[1]), PaneID: fields[2]}, nil
}

// KillWindow terminates a window.
func (c *Client) KillWindow(session string, window int) error {
	_, err := c.run("kill-window", "-t", WindowTarget(session, window))
	return err
}

// =============================================================================
// Panes
// =============================================================================

// ListPanes returns the panes of a window in index order.
func (c *Client) ListPanes(session string, window int) ([]PaneInfo, error) {
	format := strings.Join([]string{
		"#{pane_id}", "#{pane_index}", "#{pane_active}", "#{pane_height}",
		"#{pane_width}", "#{pane_tty}", "#{pane_current_command}",
	}, fieldSep)
	out, err := c.run("list-panes", "-t", WindowTarget(session, window), "-F", format)
	if err != nil {
		return nil, err
	}

	panes := []PaneInfo{}
	for _, line := range splitLines(out) {
		fields := strings.SplitN(line, fieldSep, 7)
		if len(fields) != 7 {
			return nil, fmt.Errorf("unexpected list-panes output %q", line)
		}
		panes = append(panes, PaneInfo{
			ID:      fields[0],
			Index:   atoi(fields[1]),
			Active:  fields[2] == "1",
			Height:  atoi(fields[3]),
			Width:   atoi(fields[4]),
			TTY:     fields[5],
			Command: fields[6],
		})
	}
	return panes, nil
}

// SplitWindow splits the active pane of a window. vertical stacks the new
// pane below (-v); otherwise it goes to the right (-h).
func (c *Client) SplitWindow(session string, window int, vertical bool) (NewPaneInfo, error) {
	orientation := "-h"
	if vertical {
		orientation = "-v"
	}
	format := strings.Join([]string{"#{pane_id}", "#{pane_index}"}, fieldSep)
	out, err := c.run("split-window", "-d", orientation, "-t", WindowTarget(session, window), "-P", "-F", format)
	if err != nil {
		return NewPaneInfo{}, err
	}

	fields := strings.Split(strings.TrimSpace(out), fieldSep)
	if len(fields) != 2 {
		return NewPaneInfo{}, fmt.Errorf("unexpected split-window output %q", out)
	}
	return NewPaneInfo{ID: fields[0], Index: atoi(fields[1])}, nil
}

// KillPane terminates a pane. target is anything tmux accepts, usually a
// PaneTarget or a pane id such as "%3".
func (c *Client) KillPane(target string) error {
	_, err := c.run("kill-pane", "-t", target)
	return err
}

// SendKeys types text into a pane literally, then presses Enter if asked.
func (c *Client) SendKeys(target, text string, enter bool) error {
	if text != "" {
		if _, err := c.run("send-keys", "-t", target, "-l", "--", text); err != nil {
			return err
		}
	}
	if enter {
		if _, err := c.run("send-keys", "-t", target, "Enter"); err != nil {
			return err
		}
	}
	return nil
}

// CapturePane returns the visible content of a pane as lines, without the
// blank rows below the last output.
func (c *Client) CapturePane(target string) ([]string, error) {
	out, err := c.run("capture-pane", "-p", "-t", target)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(out, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func splitLines(out string) []string {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
