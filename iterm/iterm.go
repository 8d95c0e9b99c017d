// Package iterm sends iTerm2 escape sequences (badges, marks, notifications
// and tab colours) to tmux panes.
//
// Sequences are written straight to a pane's tty wrapped in tmux passthrough,
// so they reach iTerm2 even though tmux owns the screen. When iTerm2 is not
// the outer terminal nothing is written and the result says so.
package iterm

import (
	"fmt"
	"os"

	"ticmd/log"
	"ticmd/session"
)

// controllingTTY is where notifications go; they are not tied to a pane.
const controllingTTY = "/dev/tty"

// WriteFunc writes raw bytes to a terminal device.
type WriteFunc func(path string, data []byte) error

// writeTTY opens the device for writing only, so it never steals input.
func writeTTY(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Connector opens a Manager. On failure the Result is what the command
// reports.
type Connector func() (*session.Manager, *session.Result)

// Terminal carries out the iTerm2 commands for one session. tmux is only
// contacted when a sequence has to reach a pane.
type Terminal struct {
	sessionName string
	connect     Connector
	info        Info
	write       WriteFunc
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithWriter replaces the tty writer.
func WithWriter(w WriteFunc) Option {
	return func(t *Terminal) {
		t.write = w
	}
}

// New creates a Terminal for the environment described by info. sessionName
// is the session asked for on the command line.
func New(sessionName string, connect Connector, info Info, opts ...Option) *Terminal {
	t := &Terminal{sessionName: sessionName, connect: connect, info: info, write: writeTTY}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetBadge shows text as the badge of a window's active pane.
func (t *Terminal) SetBadge(windowIndex int, text string) *session.Result {
	if !t.info.ITerm2 {
		return session.Success().
			With("message", fmt.Sprintf("Badge '%s' would be set for window %d (requires iTerm2)", text, windowIndex)).
			With("window_index", windowIndex).
			With("text", text)
	}

	mgr, fail := t.connect()
	if fail != nil {
		return fail
	}
	pane, fail := mgr.ActivePane(windowIndex)
	if fail != nil {
		return fail
	}
	if fail := t.sendToPane(pane.TTY, BadgeSequence(text)); fail != nil {
		return fail
	}
	return session.Success().
		With("message", fmt.Sprintf("Badge '%s' set for window %d", text, windowIndex)).
		With("window_index", windowIndex).
		With("text", text)
}

// SetMark drops an iTerm2 mark in a pane.
func (t *Terminal) SetMark(windowIndex, paneIndex int) *session.Result {
	if !t.info.ITerm2 {
		return session.Success().
			With("message", fmt.Sprintf("Mark would be set for pane %d in window %d (requires iTerm2)", paneIndex, windowIndex)).
			With("window_index", windowIndex).
			With("pane_index", paneIndex)
	}

	mgr, fail := t.connect()
	if fail != nil {
		return fail
	}
	pane, fail := mgr.ResolvePane(windowIndex, paneIndex)
	if fail != nil {
		return fail
	}
	if fail := t.sendToPane(pane.TTY, MarkSequence()); fail != nil {
		return fail
	}
	return session.Success().
		With("message", fmt.Sprintf("Mark set for pane %d in window %d", paneIndex, windowIndex)).
		With("window_index", windowIndex).
		With("pane_index", paneIndex)
}

// Notify posts a desktop notification through the controlling terminal.
func (t *Terminal) Notify(title, message string) *session.Result {
	if !t.info.ITerm2 {
		return session.Success().
			With("message", fmt.Sprintf("Notification would be sent: %s - %s (requires iTerm2)", title, message)).
			With("title", title)
	}

	seq := NotifySequence(title, message)
	if t.info.InsideTmux {
		seq = Passthrough(seq)
	}
	if err := t.write(controllingTTY, []byte(seq)); err != nil {
		return session.Failure(session.CodeTerminalFailed, "%v", err)
	}
	return session.Success().
		With("message", fmt.Sprintf("Notification sent: %s - %s", title, message)).
		With("title", title)
}

// SetTabColor colours the tab of a window's active pane.
func (t *Terminal) SetTabColor(windowIndex, red, green, blue int) *session.Result {
	for _, c := range []struct {
		name  string
		value int
	}{{"red", red}, {"green", green}, {"blue", blue}} {
		if c.value < 0 || c.value > 255 {
			return session.Failure(session.CodeInvalidArgument, "%s must be between 0 and 255, got %d", c.name, c.value)
		}
	}
	color := session.NewRecord().Set("r", red).Set("g", green).Set("b", blue)

	if !t.info.ITerm2 {
		return session.Success().
			With("message", fmt.Sprintf("Tab color would be set for window %d (requires iTerm2)", windowIndex)).
			With("window_index", windowIndex).
			With("color", color)
	}

	mgr, fail := t.connect()
	if fail != nil {
		return fail
	}
	pane, fail := mgr.ActivePane(windowIndex)
	if fail != nil {
		return fail
	}
	if fail := t.sendToPane(pane.TTY, TabColorSequence(red, green, blue)); fail != nil {
		return fail
	}
	return session.Success().
		With("message", fmt.Sprintf("Tab color set for window %d", windowIndex)).
		With("window_index", windowIndex).
		With("color", color)
}

// Detect reports the terminal environment. It works without a tmux server.
func (t *Terminal) Detect() *session.Result {
	return session.Success().
		With("iterm2", t.info.ITerm2).
		With("tmux", t.info.Tmux).
		With("shell_integration", t.info.ShellIntegration).
		With("session", t.sessionName).
		With("inside_tmux", t.info.InsideTmux).
		With("tmux_installed", t.info.TmuxInstalled).
		With("color_profile", t.info.ColorProfile).
		With("interactive", t.info.Interactive)
}

// Status lists the windows of the working session.
func (t *Terminal) Status() *session.Result {
	mgr, fail := t.connect()
	if fail != nil {
		return fail
	}
	return mgr.ListWindows("")
}

// sendToPane writes seq to a pane's tty. The pane's output goes through tmux,
// so the sequence always needs passthrough.
func (t *Terminal) sendToPane(tty, seq string) *session.Result {
	if tty == "" {
		return session.Failure(session.CodeTerminalFailed, "pane has no tty")
	}
	if err := t.write(tty, []byte(Passthrough(seq))); err != nil {
		return session.Failure(session.CodeTerminalFailed, "%v", err)
	}
	log.InfoLog.Printf("wrote %d bytes of escape sequences to %s", len(seq), tty)
	return nil
}
