package tmux

import (
	"errors"
	"os/exec"
	"strings"
	"testing"

	"ticmd/cmd/cmd_test"
	"ticmd/log"

	"github.com/stretchr/testify/require"
)

func init() {
	log.Initialize(false)
}

// recorder is a MockCmdExec that remembers every command it was given and
// answers from a table keyed by tmux subcommand.
type recorder struct {
	cmds    [][]string
	outputs map[string]string
	errs    map[string]error
}

func newRecorder() *recorder {
	return &recorder{outputs: map[string]string{}, errs: map[string]error{}}
}

func (r *recorder) exec() cmd_test.MockCmdExec {
	return cmd_test.MockCmdExec{
		RunFunc: func(c *exec.Cmd) error {
			r.cmds = append(r.cmds, c.Args)
			return r.errs[c.Args[1]]
		},
		OutputFunc: func(c *exec.Cmd) ([]byte, error) {
			r.cmds = append(r.cmds, c.Args)
			sub := c.Args[1]
			if err := r.errs[sub]; err != nil {
				return nil, err
			}
			return []byte(r.outputs[sub]), nil
		},
	}
}

func (r *recorder) client() *Client {
	return NewClient(WithExecutor(r.exec()))
}

func exitErr(stderr string) error {
	return &exec.ExitError{Stderr: []byte(stderr)}
}

func TestNewClient(t *testing.T) {
	c := NewClient()
	require.Equal(t, "tmux", c.tmuxPath)
	require.NotNil(t, c.cmdExec)

	c = NewClient(WithTmuxPath("/opt/bin/tmux"))
	require.Equal(t, "/opt/bin/tmux", c.tmuxPath)

	c = NewClient(WithTmuxPath(""))
	require.Equal(t, "tmux", c.tmuxPath, "empty path keeps the default")
}

func TestTargets(t *testing.T) {
	require.Equal(t, "=dev", SessionTarget("dev"))
	require.Equal(t, "=dev:2", WindowTarget("dev", 2))
	require.Equal(t, "=dev:2.1", PaneTarget("dev", 2, 1))
}

func TestValidateSessionName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"claude-dev", false},
		{"agent_1", false},
		{"with space", false},
		{"", true},
		{"   ", true},
		{"a.b", true},
		{"a:b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionName(tt.name)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSessionName)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		sentinel error
	}{
		{"no server", "no server running on /tmp/tmux-1000/default", ErrNoServer},
		{"connect", "error connecting to /tmp/tmux-1000/default (No such file or directory)", ErrNoServer},
		{"duplicate", "duplicate session: dev", ErrSessionExists},
		{"session", "can't find session: dev", ErrSessionNotFound},
		{"window", "can't find window: 9", ErrWindowNotFound},
		{"pane", "can't find pane: 4", ErrPaneNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError(exitErr(tt.stderr), []string{"list-panes"})
			require.ErrorIs(t, err, tt.sentinel)
		})
	}

	err := wrapError(exitErr("unknown command: frob"), []string{"frob"})
	require.EqualError(t, err, "tmux frob: unknown command: frob")

	base := errors.New("exec: \"tmux\": executable file not found in $PATH")
	err = wrapError(base, []string{"list-sessions"})
	require.ErrorIs(t, err, base)
	require.Contains(t, err.Error(), "tmux list-sessions")
}

func TestListSessions(t *testing.T) {
	r := newRecorder()
	r.outputs["list-sessions"] = "$0\tclaude-dev\t1\t3\n$1\tother\t0\t1\n"

	sessions, err := r.client().ListSessions()
	require.NoError(t, err)
	require.Equal(t, []SessionInfo{
		{ID: "$0", Name: "claude-dev", Attached: true, Windows: 3},
		{ID: "$1", Name: "other", Attached: false, Windows: 1},
	}, sessions)
	require.Equal(t, "-F", r.cmds[0][2])
}

func TestListSessionsNoServer(t *testing.T) {
	r := newRecorder()
	r.errs["list-sessions"] = exitErr("no server running on /tmp/tmux-1000/default")

	sessions, err := r.client().ListSessions()
	require.NoError(t, err)
	require.Empty(t, sessions)
	require.NotNil(t, sessions)
}

func TestListSessionsMalformed(t *testing.T) {
	r := newRecorder()
	r.outputs["list-sessions"] = "garbage\n"

	_, err := r.client().ListSessions()
	require.Error(t, err)
}

func TestHasSession(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		exists  bool
		wantErr bool
	}{
		{"exists", nil, true, false},
		{"missing", exitErr("can't find session: dev"), false, false},
		{"no server", exitErr("no server running on /tmp/x"), false, false},
		{"other failure", exitErr("permission denied"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			r.errs["has-session"] = tt.err
			exists, err := r.client().HasSession("dev")
			require.Equal(t, tt.exists, exists)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, []string{"tmux", "has-session", "-t", "=dev"}, r.cmds[0])
		})
	}
}

func TestNewSession(t *testing.T) {
	r := newRecorder()
	r.outputs["new-session"] = "$4\n"

	id, err := r.client().NewSession("work", "/tmp")
	require.NoError(t, err)
	require.Equal(t, "$4", id)
	require.Equal(t, []string{"tmux", "new-session", "-d", "-s", "work", "-P", "-F", "#{session_id}", "-c", "/tmp"}, r.cmds[0])

	_, err = r.client().NewSession("bad.name", "")
	require.ErrorIs(t, err, ErrInvalidSessionName)

	r.errs["new-session"] = exitErr("duplicate session: work")
	_, err = r.client().NewSession("work", "")
	require.ErrorIs(t, err, ErrSessionExists)
}

func TestListWindows(t *testing.T) {
	r := newRecorder()
	r.outputs["list-windows"] = "@0\t0\t0\t1\tbash\n@3\t1\t1\t2\tbuild\twatch\n"

	windows, err := r.client().ListWindows("dev")
	require.NoError(t, err)
	require.Equal(t, []WindowInfo{
		{ID: "@0", Index: 0, Name: "bash", Active: false, Panes: 1},
		{ID: "@3", Index: 1, Name: "build\twatch", Active: true, Panes: 2},
	}, windows)
	require.Equal(t, "=dev", r.cmds[0][3])
}

func TestNewWindow(t *testing.T) {
	r := newRecorder()
	r.outputs["new-window"] = "@7\t4\t%12\n"

	info, err := r.client().NewWindow("dev", "agent")
	require.NoError(t, err)
	require.Equal(t, NewWindowInfo{ID: "@7", Index: 4, PaneID: "%12"}, info)

	args := strings.Join(r.cmds[0], " ")
	require.Contains(t, args, "new-window -d -t =dev:")
	require.Contains(t, args, "-n agent")
}

func TestNewWindowUnexpectedOutput(t *testing.T) {
	r := newRecorder()
	r.outputs["new-window"] = "@7\n"

	_, err := r.client().NewWindow("dev", "agent")
	require.Error(t, err)
}

func TestListPanes(t *testing.T) {
	r := newRecorder()
	r.outputs["list-panes"] = "%1\t0\t1\t40\t120\t/dev/pts/3\tbash\n%2\t1\t0\t39\t120\t/dev/pts/4\tnode\n"

	panes, err := r.client().ListPanes("dev", 2)
	require.NoError(t, err)
	require.Len(t, panes, 2)
	require.Equal(t, PaneInfo{ID: "%1", Index: 0, Active: true, Height: 40, Width: 120, TTY: "/dev/pts/3", Command: "bash"}, panes[0])
	require.Equal(t, "=dev:2", r.cmds[0][3])
}

func TestListPanesWindowNotFound(t *testing.T) {
	r := newRecorder()
	r.errs["list-panes"] = exitErr("can't find window: 9")

	_, err := r.client().ListPanes("dev", 9)
	require.ErrorIs(t, err, ErrWindowNotFound)
}

func TestSplitWindow(t *testing.T) {
	r := newRecorder()
	r.outputs["split-window"] = "%9\t1\n"

	info, err := r.client().SplitWindow("dev", 1, true)
	require.NoError(t, err)
	require.Equal(t, NewPaneInfo{ID: "%9", Index: 1}, info)
	require.Contains(t, r.cmds[0], "-v")

	_, err = r.client().SplitWindow("dev", 1, false)
	require.NoError(t, err)
	require.Contains(t, r.cmds[1], "-h")
}

func TestSendKeys(t *testing.T) {
	r := newRecorder()
	err := r.client().SendKeys("=dev:1.0", "-rf echo hi", true)
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"tmux", "send-keys", "-t", "=dev:1.0", "-l", "--", "-rf echo hi"},
		{"tmux", "send-keys", "-t", "=dev:1.0", "Enter"},
	}, r.cmds)
}

func TestSendKeysNoEnter(t *testing.T) {
	r := newRecorder()
	require.NoError(t, r.client().SendKeys("=dev:1.0", "ls", false))
	require.Len(t, r.cmds, 1)
}

func TestSendKeysError(t *testing.T) {
	r := newRecorder()
	r.errs["send-keys"] = exitErr("can't find pane: 5")
	err := r.client().SendKeys("=dev:1.5", "ls", true)
	require.ErrorIs(t, err, ErrPaneNotFound)
	require.Len(t, r.cmds, 1, "enter is not sent after a failure")
}

func TestCapturePane(t *testing.T) {
	r := newRecorder()
	r.outputs["capture-pane"] = "$ make\nok\n\n   \n\n"

	lines, err := r.client().CapturePane("=dev:1.0")
	require.NoError(t, err)
	require.Equal(t, []string{"$ make", "ok"}, lines)
	require.Equal(t, []string{"tmux", "capture-pane", "-p", "-t", "=dev:1.0"}, r.cmds[0])
}

func TestCapturePaneEmpty(t *testing.T) {
	r := newRecorder()
	r.outputs["capture-pane"] = "\n\n\n"

	lines, err := r.client().CapturePane("%1")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestKillCommands(t *testing.T) {
	r := newRecorder()
	c := r.client()
	require.NoError(t, c.KillSession("dev"))
	require.NoError(t, c.KillWindow("dev", 3))
	require.NoError(t, c.KillPane("%4"))
	require.Equal(t, [][]string{
		{"tmux", "kill-session", "-t", "=dev"},
		{"tmux", "kill-window", "-t", "=dev:3"},
		{"tmux", "kill-pane", "-t", "%4"},
	}, r.cmds)
}

func TestIsAvailable(t *testing.T) {
	r := newRecorder()
	r.outputs["-V"] = "tmux 3.4\n"
	require.True(t, r.client().IsAvailable())

	r.errs["-V"] = exec.ErrNotFound
	require.False(t, r.client().IsAvailable())
}
