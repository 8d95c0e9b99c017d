package session

import "ticmd/session/tmux"

// Multiplexer is the set of terminal multiplexer operations the Manager
// delegates to. Sessions are addressed by name, windows by index and panes by
// a target string (see tmux.PaneTarget) or pane id.
type Multiplexer interface {
	// IsAvailable reports whether the multiplexer binary can be run.
	IsAvailable() bool

	// ListSessions returns every session; no server means an empty list.
	ListSessions() ([]tmux.SessionInfo, error)

	// HasSession reports whether a session with exactly this name exists.
	HasSession(name string) (bool, error)

	// NewSession creates a detached session and returns its id.
	NewSession(name, startDir string) (string, error)

	// KillSession terminates a session.
	KillSession(name string) error

	// ListWindows returns the windows of a session in index order.
	ListWindows(session string) ([]tmux.WindowInfo, error)

	// NewWindow creates a detached window in a session.
	NewWindow(session, name string) (tmux.NewWindowInfo, error)

	// KillWindow terminates a window.
	KillWindow(session string, window int) error

	// ListPanes returns the panes of a window in index order.
	ListPanes(session string, window int) ([]tmux.PaneInfo, error)

	// SplitWindow creates a new pane by splitting a window.
	SplitWindow(session string, window int, vertical bool) (tmux.NewPaneInfo, error)

	// KillPane terminates a pane.
	KillPane(target string) error

	// SendKeys types text into a pane, optionally followed by Enter.
	SendKeys(target, text string, enter bool) error

	// CapturePane returns the visible content of a pane as lines. It has no
	// side effects on the pane.
	CapturePane(target string) ([]string, error)
}
