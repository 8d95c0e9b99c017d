package session

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"ticmd/log"
	"ticmd/session/idle"
	"ticmd/session/tmux"
	"ticmd/session/wordgen"
)

// shellSettleDelay is how long CreateWindow waits after typing the shell
// before typing the command, so the command is not swallowed by shell startup.
const shellSettleDelay = 200 * time.Millisecond

// Manager performs the tool's commands against one working session. Every
// operation returns a Result; failures become error Results with a Code and
// never a Go error.
type Manager struct {
	mux      Multiplexer
	detector *idle.Detector
	sleep    func(time.Duration)

	sessionName string
	sessionID   string
	hasSession  bool
	insideTmux  bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDetector replaces the idle detector used by WaitIdle.
func WithDetector(d *idle.Detector) ManagerOption {
	return func(m *Manager) {
		m.detector = d
	}
}

// WithSleep replaces the pause used while a new window's shell starts.
func WithSleep(sleep func(time.Duration)) ManagerOption {
	return func(m *Manager) {
		m.sleep = sleep
	}
}

// WithInsideTmux overrides the $TMUX check.
func WithInsideTmux(inside bool) ManagerOption {
	return func(m *Manager) {
		m.insideTmux = inside
	}
}

// NewManager picks the working session: the one named sessionName if it
// exists, otherwise the first session on the server. With no sessions at all
// the Manager still works for ListSessions and CreateSession; the other
// operations report NO_SESSION.
func NewManager(mux Multiplexer, sessionName string, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		mux:         mux,
		detector:    idle.NewDetector(),
		sleep:       time.Sleep,
		sessionName: sessionName,
		insideTmux:  os.Getenv("TMUX") != "",
	}
	for _, opt := range opts {
		opt(m)
	}

	sessions, err := mux.ListSessions()
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.Name == sessionName {
			m.useSession(s)
			return m, nil
		}
	}
	if len(sessions) > 0 {
		log.InfoLog.Printf("session %q not found, using %q", sessionName, sessions[0].Name)
		m.useSession(sessions[0])
	}
	return m, nil
}

func (m *Manager) useSession(s tmux.SessionInfo) {
	m.sessionName = s.Name
	m.sessionID = s.ID
	m.hasSession = true
}

// SessionName returns the working session's name (or the requested name when
// there is no working session).
func (m *Manager) SessionName() string {
	return m.sessionName
}

// HasSession reports whether a working session was found.
func (m *Manager) HasSession() bool {
	return m.hasSession
}

// InsideTmux reports whether this process runs inside tmux.
func (m *Manager) InsideTmux() bool {
	return m.insideTmux
}

func noSession() *Result {
	return Failure(CodeNoSession, "No tmux session available - please ensure at least one session exists")
}

// CreateSession creates a detached session. If the Manager had no working
// session, the new one becomes it.
func (m *Manager) CreateSession(name, startDir string) *Result {
	if err := tmux.ValidateSessionName(name); err != nil {
		return Failure(CodeInvalidArgument, "%v", err)
	}
	exists, err := m.mux.HasSession(name)
	if err != nil {
		return Failure(CodeCreateSessionFailed, "%v", err)
	}
	if exists {
		return Failure(CodeSessionExists, "Session %s already exists", name)
	}

	id, err := m.mux.NewSession(name, startDir)
	if err != nil {
		if errors.Is(err, tmux.ErrSessionExists) {
			return Failure(CodeSessionExists, "Session %s already exists", name)
		}
		return Failure(CodeCreateSessionFailed, "%v", err)
	}
	if !m.hasSession {
		m.useSession(tmux.SessionInfo{ID: id, Name: name})
	}

	result := Success().
		With("session", name).
		With("session_id", id)
	log.InfoLog.Printf("Created session: %s (%s)", name, id)
	return result
}

// KillSession terminates the named session, or the working session when name
// is empty.
func (m *Manager) KillSession(name string) *Result {
	if name == "" {
		if !m.hasSession {
			return noSession()
		}
		name = m.sessionName
	}
	exists, err := m.mux.HasSession(name)
	if err != nil {
		return Failure(CodeKillSessionFailed, "%v", err)
	}
	if !exists {
		return Failure(CodeSessionNotFound, "Session %s not found", name)
	}
	if err := m.mux.KillSession(name); err != nil {
		return Failure(CodeKillSessionFailed, "%v", err)
	}
	if m.hasSession && name == m.sessionName {
		m.hasSession = false
	}
	return Success().With("session", name)
}

// CreateWindow opens a detached window, starts shell in it, waits briefly for
// the shell to come up and then types command (if any). An empty name gets a
// generated one.
func (m *Manager) CreateWindow(name, command, shell string) *Result {
	if !m.hasSession {
		return noSession()
	}

	if name == "" {
		name = m.generateWindowName()
	}

	window, err := m.mux.NewWindow(m.sessionName, name)
	if err != nil {
		return Failure(CodeCreateWindowFailed, "%v", err)
	}
	if window.PaneID == "" {
		return Failure(CodeCreateWindowFailed, "No attached pane found in new window")
	}

	if shell != "" {
		if err := m.mux.SendKeys(window.PaneID, shell, true); err != nil {
			return Failure(CodeCreateWindowFailed, "%v", err)
		}
		m.sleep(shellSettleDelay)
	}
	if command != "" {
		if err := m.mux.SendKeys(window.PaneID, command, true); err != nil {
			return Failure(CodeCreateWindowFailed, "%v", err)
		}
	}

	result := Success().
		With("window_id", m.sessionID+":"+strconv.Itoa(window.Index)).
		With("window_index", window.Index).
		With("pane_id", window.PaneID).
		With("name", name).
		With("session", m.sessionName).
		With("inside_tmux", m.insideTmux)
	log.InfoLog.Printf("Created window: %s index %d pane %s", name, window.Index, window.PaneID)
	return result
}

// generateWindowName picks a name not used by any window of the session.
func (m *Manager) generateWindowName() string {
	used := map[string]bool{}
	if windows, err := m.mux.ListWindows(m.sessionName); err == nil {
		for _, w := range windows {
			used[w.Name] = true
		}
	}
	return wordgen.GenerateUnique(func(s string) bool { return used[s] })
}

// CreatePane splits a window and optionally types command into the new pane.
func (m *Manager) CreatePane(windowIndex int, vertical bool, command string) *Result {
	if !m.hasSession {
		return noSession()
	}

	found, err := m.findWindow(windowIndex)
	if err != nil {
		return Failure(CodeCreatePaneFailed, "%v", err)
	}
	if !found {
		return Failure(CodeWindowNotFound, "Window %d not found", windowIndex)
	}

	pane, err := m.mux.SplitWindow(m.sessionName, windowIndex, vertical)
	if err != nil {
		return Failure(CodeCreatePaneFailed, "%v", err)
	}
	if command != "" {
		if err := m.mux.SendKeys(pane.ID, command, true); err != nil {
			return Failure(CodeCreatePaneFailed, "%v", err)
		}
	}

	orientation := "horizontal"
	if vertical {
		orientation = "vertical"
	}
	result := Success().
		With("pane_id", pane.ID).
		With("window_index", windowIndex).
		With("orientation", orientation).
		With("session", m.sessionName)
	log.InfoLog.Printf("Created pane: %s in window %d", pane.ID, windowIndex)
	return result
}

// ListSessions reports every session on the server.
func (m *Manager) ListSessions() *Result {
	sessions, err := m.mux.ListSessions()
	if err != nil {
		return Failure(CodeListSessionsFailed, "%v", err)
	}

	list := make([]*Record, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, NewRecord().
			Set("id", s.ID).
			Set("name", s.Name).
			Set("attached", s.Attached).
			Set("windows", s.Windows))
	}
	return Success().With("sessions", list)
}

// ListWindows reports the windows of the named session, or of the working
// session when name is empty.
func (m *Manager) ListWindows(name string) *Result {
	if name == "" {
		if !m.hasSession {
			return noSession()
		}
		name = m.sessionName
	} else if !m.hasSession || name != m.sessionName {
		exists, err := m.mux.HasSession(name)
		if err != nil {
			return Failure(CodeListWindowsFailed, "%v", err)
		}
		if !exists {
			return Failure(CodeSessionNotFound, "Session %s not found", name)
		}
	}

	windows, err := m.mux.ListWindows(name)
	if err != nil {
		if errors.Is(err, tmux.ErrSessionNotFound) {
			return Failure(CodeSessionNotFound, "Session %s not found", name)
		}
		return Failure(CodeListWindowsFailed, "%v", err)
	}

	list := make([]*Record, 0, len(windows))
	for _, w := range windows {
		list = append(list, NewRecord().
			Set("index", w.Index).
			Set("name", w.Name).
			Set("active", w.Active).
			Set("panes", w.Panes))
	}
	return Success().
		With("session", name).
		With("windows", list)
}

// ListPanes reports the panes of a window in the working session.
func (m *Manager) ListPanes(windowIndex int) *Result {
	if !m.hasSession {
		return noSession()
	}

	found, err := m.findWindow(windowIndex)
	if err != nil {
		return Failure(CodeListPanesFailed, "%v", err)
	}
	if !found {
		return Failure(CodeWindowNotFound, "Window %d not found", windowIndex)
	}

	panes, err := m.mux.ListPanes(m.sessionName, windowIndex)
	if err != nil {
		return Failure(CodeListPanesFailed, "%v", err)
	}

	list := make([]*Record, 0, len(panes))
	for _, p := range panes {
		list = append(list, NewRecord().
			Set("id", p.ID).
			Set("index", p.Index).
			Set("active", p.Active).
			Set("height", p.Height).
			Set("width", p.Width))
	}
	return Success().
		With("window_index", windowIndex).
		With("panes", list)
}

// SendCommand types command into a pane, followed by Enter unless enter is
// false.
func (m *Manager) SendCommand(windowIndex, paneIndex int, command string, enter bool) *Result {
	pane, fail := m.resolvePane(windowIndex, paneIndex, CodeSendCommandFailed)
	if fail != nil {
		return fail
	}

	if err := m.mux.SendKeys(pane.ID, command, enter); err != nil {
		return Failure(CodeSendCommandFailed, "%v", err)
	}

	result := Success().
		With("command", command).
		With("window_index", windowIndex).
		With("pane_index", paneIndex).
		With("session", m.sessionName)
	log.InfoLog.Printf("Sent command to %d.%d: %q", windowIndex, paneIndex, command)
	return result
}

// CapturePane returns the last lines lines of a pane's visible content.
func (m *Manager) CapturePane(windowIndex, paneIndex, lines int) *Result {
	if lines <= 0 {
		return Failure(CodeInvalidArgument, "lines must be positive, got %d", lines)
	}
	pane, fail := m.resolvePane(windowIndex, paneIndex, CodeCapturePaneFailed)
	if fail != nil {
		return fail
	}

	content, err := m.mux.CapturePane(pane.ID)
	if err != nil {
		return Failure(CodeCapturePaneFailed, "%v", err)
	}
	if len(content) > lines {
		content = content[len(content)-lines:]
	}

	return Success().
		With("content", strings.Join(content, "\n")).
		With("lines", len(content)).
		With("window_index", windowIndex).
		With("pane_index", paneIndex).
		With("session", m.sessionName)
}

// WaitIdle blocks until the pane's content has been unchanged for
// opts.QuietFor (status "success") or opts.Timeout runs out (status
// "timeout"). Elapsed times are reported in seconds.
func (m *Manager) WaitIdle(ctx context.Context, windowIndex, paneIndex int, opts idle.Options) *Result {
	if err := opts.Validate(); err != nil {
		return Failure(CodeInvalidArgument, "%v", err)
	}
	pane, fail := m.resolvePane(windowIndex, paneIndex, CodeWaitIdleFailed)
	if fail != nil {
		return fail
	}

	fetch := func(context.Context) ([]string, error) {
		return m.mux.CapturePane(pane.ID)
	}
	res, err := m.detector.Wait(ctx, fetch, opts)
	if err != nil {
		return Failure(CodeWaitIdleFailed, "%v", err)
	}

	log.InfoLog.Printf("wait-idle on %d.%d: %s after %v (%d polls)", windowIndex, paneIndex, res.Kind, res.Elapsed, res.Polls)
	if res.Kind == idle.KindTimeout {
		return NewResult(StatusTimeout).
			With("elapsed", res.Elapsed.Seconds()).
			With("timeout", opts.Timeout.Seconds()).
			With("window_index", windowIndex).
			With("pane_index", paneIndex).
			With("session", m.sessionName)
	}
	return Success().
		With("elapsed", res.Elapsed.Seconds()).
		With("window_index", windowIndex).
		With("pane_index", paneIndex).
		With("session", m.sessionName)
}

// KillWindow terminates a window of the working session.
func (m *Manager) KillWindow(windowIndex int) *Result {
	if !m.hasSession {
		return noSession()
	}

	found, err := m.findWindow(windowIndex)
	if err != nil {
		return Failure(CodeKillWindowFailed, "%v", err)
	}
	if !found {
		return Failure(CodeWindowNotFound, "Window %d not found", windowIndex)
	}

	if err := m.mux.KillWindow(m.sessionName, windowIndex); err != nil {
		return Failure(CodeKillWindowFailed, "%v", err)
	}
	return Success().
		With("window_index", windowIndex).
		With("session", m.sessionName)
}

// KillPane terminates a pane of the working session.
func (m *Manager) KillPane(windowIndex, paneIndex int) *Result {
	if !m.hasSession {
		return noSession()
	}

	found, err := m.findWindow(windowIndex)
	if err != nil {
		return Failure(CodeKillPaneFailed, "%v", err)
	}
	if !found {
		return Failure(CodeWindowNotFound, "Window %d not found", windowIndex)
	}
	pane, found, err := m.findPane(windowIndex, paneIndex)
	if err != nil {
		return Failure(CodeKillPaneFailed, "%v", err)
	}
	if !found {
		return Failure(CodePaneNotFound, "Pane %d not found in window %d", paneIndex, windowIndex)
	}

	if err := m.mux.KillPane(pane.ID); err != nil {
		return Failure(CodeKillPaneFailed, "%v", err)
	}
	return Success().
		With("window_index", windowIndex).
		With("pane_index", paneIndex).
		With("session", m.sessionName)
}

// ResolvePane looks up a pane of the working session. On failure the
// returned Result is the error to report.
func (m *Manager) ResolvePane(windowIndex, paneIndex int) (tmux.PaneInfo, *Result) {
	return m.resolvePane(windowIndex, paneIndex, CodePaneNotFound)
}

// ActivePane returns the active pane of a window in the working session, or
// its first pane if tmux reports none as active.
func (m *Manager) ActivePane(windowIndex int) (tmux.PaneInfo, *Result) {
	if !m.hasSession {
		return tmux.PaneInfo{}, noSession()
	}
	found, err := m.findWindow(windowIndex)
	if err != nil {
		return tmux.PaneInfo{}, Failure(CodeListPanesFailed, "%v", err)
	}
	if !found {
		return tmux.PaneInfo{}, Failure(CodeWindowNotFound, "Window %d not found", windowIndex)
	}
	panes, err := m.mux.ListPanes(m.sessionName, windowIndex)
	if err != nil {
		return tmux.PaneInfo{}, Failure(CodeListPanesFailed, "%v", err)
	}
	if len(panes) == 0 {
		return tmux.PaneInfo{}, Failure(CodePaneNotFound, "Window %d has no panes", windowIndex)
	}
	for _, p := range panes {
		if p.Active {
			return p, nil
		}
	}
	return panes[0], nil
}

// resolvePane finds a pane by window and pane index. A missing window or pane
// is reported as PANE_NOT_FOUND; tmux failures get failCode.
func (m *Manager) resolvePane(windowIndex, paneIndex int, failCode Code) (tmux.PaneInfo, *Result) {
	if !m.hasSession {
		return tmux.PaneInfo{}, noSession()
	}

	found, err := m.findWindow(windowIndex)
	if err != nil {
		return tmux.PaneInfo{}, Failure(failCode, "%v", err)
	}
	if !found {
		return tmux.PaneInfo{}, Failure(CodePaneNotFound, "Window %d not found", windowIndex)
	}

	pane, found, err := m.findPane(windowIndex, paneIndex)
	if err != nil {
		return tmux.PaneInfo{}, Failure(failCode, "%v", err)
	}
	if !found {
		return tmux.PaneInfo{}, Failure(CodePaneNotFound, "Pane %d not found in window %d", paneIndex, windowIndex)
	}
	return pane, nil
}

func (m *Manager) findWindow(windowIndex int) (bool, error) {
	windows, err := m.mux.ListWindows(m.sessionName)
	if err != nil {
		return false, err
	}
	for _, w := range windows {
		if w.Index == windowIndex {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) findPane(windowIndex, paneIndex int) (tmux.PaneInfo, bool, error) {
	panes, err := m.mux.ListPanes(m.sessionName, windowIndex)
	if err != nil {
		if errors.Is(err, tmux.ErrWindowNotFound) {
			return tmux.PaneInfo{}, false, nil
		}
		return tmux.PaneInfo{}, false, err
	}
	for _, p := range panes {
		if p.Index == paneIndex {
			return p, true, nil
		}
	}
	return tmux.PaneInfo{}, false, nil
}
