package iterm

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ticmd/session"
	"ticmd/session/tmux"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

// stubMux serves one session with one window holding two panes. Methods the
// tests never reach are left to the nil embedded interface.
type stubMux struct {
	session.Multiplexer
}

func (stubMux) ListSessions() ([]tmux.SessionInfo, error) {
	return []tmux.SessionInfo{{ID: "$1", Name: "work", Windows: 1}}, nil
}

func (stubMux) HasSession(name string) (bool, error) {
	return name == "work", nil
}

func (stubMux) ListWindows(string) ([]tmux.WindowInfo, error) {
	return []tmux.WindowInfo{{ID: "@1", Index: 0, Name: "main", Active: true, Panes: 2}}, nil
}

func (stubMux) ListPanes(_ string, window int) ([]tmux.PaneInfo, error) {
	if window != 0 {
		return nil, tmux.ErrWindowNotFound
	}
	return []tmux.PaneInfo{
		{ID: "%1", Index: 0, TTY: "/dev/pts/1"},
		{ID: "%2", Index: 1, Active: true, TTY: "/dev/pts/2"},
	}, nil
}

type write struct {
	path string
	data string
}

func newTestTerminal(t *testing.T, info Info) (*Terminal, *[]write) {
	t.Helper()
	connect := func() (*session.Manager, *session.Result) {
		mgr, err := session.NewManager(stubMux{}, "work", session.WithInsideTmux(info.InsideTmux))
		require.NoError(t, err)
		return mgr, nil
	}

	writes := &[]write{}
	term := New("work", connect, info, WithWriter(func(path string, data []byte) error {
		*writes = append(*writes, write{path: path, data: string(data)})
		return nil
	}))
	return term, writes
}

func toJSON(t *testing.T, r *session.Result) string {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return string(data)
}

// noTmux is a Connector for a host where tmux cannot be queried.
func noTmux(calls *int) Connector {
	return func() (*session.Manager, *session.Result) {
		*calls++
		return nil, session.Failure(session.CodeListSessionsFailed, "failed to query tmux: exec: \"tmux\": executable file not found in $PATH")
	}
}

func TestPlaceholdersWithoutITerm2(t *testing.T) {
	term, writes := newTestTerminal(t, Info{})
	calls := 0
	term.connect = noTmux(&calls)

	tests := []struct {
		name   string
		result *session.Result
		want   string
	}{
		{
			name:   "badge",
			result: term.SetBadge(1, "build"),
			want:   `{"status":"success","message":"Badge 'build' would be set for window 1 (requires iTerm2)","window_index":1,"text":"build"}`,
		},
		{
			name:   "mark",
			result: term.SetMark(1, 2),
			want:   `{"status":"success","message":"Mark would be set for pane 2 in window 1 (requires iTerm2)","window_index":1,"pane_index":2}`,
		},
		{
			name:   "notify",
			result: term.Notify("ticmd", "done"),
			want:   `{"status":"success","message":"Notification would be sent: ticmd - done (requires iTerm2)","title":"ticmd"}`,
		},
		{
			name:   "tab color",
			result: term.SetTabColor(0, 255, 128, 0),
			want:   `{"status":"success","message":"Tab color would be set for window 0 (requires iTerm2)","window_index":0,"color":{"r":255,"g":128,"b":0}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, toJSON(t, tt.result))
		})
	}
	require.Empty(t, *writes)
	require.Zero(t, calls)
}

func TestSetBadgeWritesToActivePane(t *testing.T) {
	term, writes := newTestTerminal(t, Info{ITerm2: true, InsideTmux: true})

	r := term.SetBadge(0, "tests")
	require.Equal(t, session.StatusSuccess, r.Status())
	require.Len(t, *writes, 1)
	require.Equal(t, "/dev/pts/2", (*writes)[0].path)
	require.Equal(t, Passthrough(BadgeSequence("tests")), (*writes)[0].data)

	r = term.SetBadge(4, "x")
	require.Equal(t, session.CodeWindowNotFound, r.Code())
}

func TestSetMark(t *testing.T) {
	term, writes := newTestTerminal(t, Info{ITerm2: true})

	r := term.SetMark(0, 0)
	require.Equal(t, session.StatusSuccess, r.Status())
	require.Equal(t, []write{{path: "/dev/pts/1", data: Passthrough(MarkSequence())}}, *writes)

	require.Equal(t, session.CodePaneNotFound, term.SetMark(0, 7).Code())
}

func TestNotify(t *testing.T) {
	t.Run("outside tmux", func(t *testing.T) {
		term, writes := newTestTerminal(t, Info{ITerm2: true})
		r := term.Notify("ci", "green")
		require.Equal(t, session.StatusSuccess, r.Status())
		require.Equal(t, []write{{path: controllingTTY, data: NotifySequence("ci", "green")}}, *writes)
	})

	t.Run("inside tmux", func(t *testing.T) {
		term, writes := newTestTerminal(t, Info{ITerm2: true, InsideTmux: true})
		term.Notify("ci", "green")
		require.Equal(t, Passthrough(NotifySequence("ci", "green")), (*writes)[0].data)
	})

	t.Run("write failure", func(t *testing.T) {
		term, _ := newTestTerminal(t, Info{ITerm2: true})
		term.write = func(string, []byte) error { return errors.New("no tty") }
		r := term.Notify("ci", "green")
		require.Equal(t, session.CodeTerminalFailed, r.Code())
		require.Equal(t, "no tty", r.Message())
	})
}

func TestSetTabColor(t *testing.T) {
	term, writes := newTestTerminal(t, Info{ITerm2: true})

	for _, bad := range [][3]int{{-1, 0, 0}, {0, 256, 0}, {0, 0, 300}} {
		r := term.SetTabColor(0, bad[0], bad[1], bad[2])
		require.Equal(t, session.CodeInvalidArgument, r.Code())
	}
	require.Empty(t, *writes)

	r := term.SetTabColor(0, 10, 20, 30)
	require.Equal(t, session.StatusSuccess, r.Status())
	require.Equal(t, Passthrough(TabColorSequence(10, 20, 30)), (*writes)[0].data)
}

func TestDetectResult(t *testing.T) {
	info := Info{ITerm2: true, Tmux: true, TmuxInstalled: true, InsideTmux: true, ColorProfile: "ascii"}
	term, _ := newTestTerminal(t, info)

	require.Equal(t,
		`{"status":"success","iterm2":true,"tmux":true,"shell_integration":false,"session":"work","inside_tmux":true,"tmux_installed":true,"color_profile":"ascii","interactive":false}`,
		toJSON(t, term.Detect()))
}

func TestDetectWithoutTmux(t *testing.T) {
	calls := 0
	term := New("claude-dev", noTmux(&calls), Detect(Environment{ColorProfile: termenv.Ascii}))

	require.Equal(t,
		`{"status":"success","iterm2":false,"tmux":false,"shell_integration":false,"session":"claude-dev","inside_tmux":false,"tmux_installed":false,"color_profile":"ascii","interactive":false}`,
		toJSON(t, term.Detect()))
	require.Zero(t, calls)

	require.Equal(t, session.CodeListSessionsFailed, term.Status().Code())
	require.Equal(t, session.CodeListSessionsFailed, New("claude-dev", noTmux(&calls), Info{ITerm2: true}).SetBadge(0, "x").Code())
}

func TestStatusListsWindows(t *testing.T) {
	term, _ := newTestTerminal(t, Info{})
	r := term.Status()
	require.Equal(t, session.StatusSuccess, r.Status())
	windows, ok := r.Get("windows")
	require.True(t, ok)
	require.Len(t, windows, 1)
}

func TestDetect(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	tests := []struct {
		name       string
		vars       map[string]string
		wantITerm2 bool
		wantInside bool
	}{
		{name: "inside tmux", vars: map[string]string{"TMUX": "/tmp/tmux-0/default,1,0"}, wantInside: true},
		{name: "plain", vars: map[string]string{}},
		{name: "term program", vars: map[string]string{"TERM_PROGRAM": "iTerm.app"}, wantITerm2: true},
		{name: "lc terminal", vars: map[string]string{"LC_TERMINAL": "iTerm2", "TMUX": "/tmp/tmux-0/default,1,0"}, wantITerm2: true, wantInside: true},
		{name: "other terminal", vars: map[string]string{"TERM_PROGRAM": "Apple_Terminal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Detect(Environment{Getenv: env(tt.vars), TmuxPresent: true})
			require.Equal(t, tt.wantITerm2, info.ITerm2)
			require.Equal(t, tt.wantInside, info.InsideTmux)
			require.Equal(t, tt.wantInside, info.Tmux)
			require.True(t, info.TmuxInstalled)
			require.False(t, info.ShellIntegration)
			require.NotEmpty(t, info.ColorProfile)
		})
	}
}

func TestDetectShellIntegration(t *testing.T) {
	home := t.TempDir()
	require.False(t, Detect(Environment{HomeDir: home}).ShellIntegration)

	require.NoError(t, os.WriteFile(filepath.Join(home, ".iterm2_shell_integration.zsh"), []byte("#"), 0644))
	require.True(t, Detect(Environment{HomeDir: home}).ShellIntegration)
}

func TestSequences(t *testing.T) {
	require.Equal(t, "\x1b]1337;SetBadgeFormat="+base64.StdEncoding.EncodeToString([]byte("hi"))+"\a", BadgeSequence("hi"))
	require.Equal(t, "\x1b]1337;SetMark\a", MarkSequence())
	require.Equal(t, "\x1b]9;t: m\a", NotifySequence("t", "m"))
	require.Equal(t, "\x1b]9;m\a", NotifySequence("", "m"))
	require.Equal(t, "\x1b]9;ab\a", NotifySequence("", "a\x1b\ab"))
	require.Equal(t,
		"\x1b]6;1;bg;red;brightness;1\a\x1b]6;1;bg;green;brightness;2\a\x1b]6;1;bg;blue;brightness;3\a",
		TabColorSequence(1, 2, 3))
}

func TestPassthrough(t *testing.T) {
	got := Passthrough(MarkSequence())
	require.True(t, strings.HasPrefix(got, "\x1bPtmux;\x1b\x1b]"))
	require.True(t, strings.HasSuffix(got, "\x1b\\"))
	require.Equal(t, "\x1bPtmux;\x1b\x1b]1337;SetMark\a\x1b\\", got)
}

func TestWriteTTY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tty")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	require.NoError(t, writeTTY(path, []byte("abc")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "abc", string(data))

	require.Error(t, writeTTY(filepath.Join(t.TempDir(), "missing", "tty"), []byte("x")))
}

func TestDetectColorProfile(t *testing.T) {
	tests := []struct {
		profile termenv.Profile
		want    string
	}{
		{termenv.TrueColor, "truecolor"},
		{termenv.ANSI256, "ansi256"},
		{termenv.ANSI, "ansi"},
		{termenv.Ascii, "ascii"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, Detect(Environment{ColorProfile: tt.profile}).ColorProfile)
		})
	}
}
