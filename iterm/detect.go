package iterm

import (
	"os"
	"path/filepath"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Info describes the terminal ticmd runs in. Tmux is true when $TMUX is set;
// TmuxInstalled when the tmux binary can be run.
type Info struct {
	ITerm2           bool
	Tmux             bool
	TmuxInstalled    bool
	ShellIntegration bool
	InsideTmux       bool
	ColorProfile     string
	Interactive      bool
}

// shellIntegrationFiles are installed by iTerm2's "Install Shell Integration".
var shellIntegrationFiles = []string{
	".iterm2_shell_integration.bash",
	".iterm2_shell_integration.zsh",
}

// Environment is what Detect looks at. Tests fill it in directly.
type Environment struct {
	Getenv       func(string) string
	HomeDir      string
	TmuxPresent  bool
	Interactive  bool
	ColorProfile termenv.Profile
}

// CurrentEnvironment reads the real process environment. tmuxPresent is
// whether the tmux binary can be run.
func CurrentEnvironment(tmuxPresent bool) Environment {
	home, _ := os.UserHomeDir()
	return Environment{
		Getenv:       os.Getenv,
		HomeDir:      home,
		TmuxPresent:  tmuxPresent,
		Interactive:  term.IsTerminal(int(os.Stdin.Fd())),
		ColorProfile: termenv.EnvColorProfile(),
	}
}

// Detect inspects env. A zero ColorProfile is termenv.TrueColor.
func Detect(env Environment) Info {
	getenv := env.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	insideTmux := getenv("TMUX") != ""
	info := Info{
		ITerm2:        getenv("TERM_PROGRAM") == "iTerm.app" || getenv("LC_TERMINAL") == "iTerm2",
		Tmux:          insideTmux,
		TmuxInstalled: env.TmuxPresent,
		InsideTmux:    insideTmux,
		ColorProfile:  profileName(env.ColorProfile),
		Interactive:   env.Interactive,
	}
	if env.HomeDir != "" {
		for _, name := range shellIntegrationFiles {
			if _, err := os.Stat(filepath.Join(env.HomeDir, name)); err == nil {
				info.ShellIntegration = true
				break
			}
		}
	}
	return info
}

func profileName(p termenv.Profile) string {
	switch p {
	case termenv.TrueColor:
		return "truecolor"
	case termenv.ANSI256:
		return "ansi256"
	case termenv.ANSI:
		return "ansi"
	default:
		return "ascii"
	}
}
