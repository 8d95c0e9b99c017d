// Package app wires the ticmd command line: flags, configuration, the
// session Manager and result output.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ticmd/config"
	"ticmd/iterm"
	"ticmd/log"
	"ticmd/session"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ErrFailed is returned by a command whose result was an error. The result
// itself has already been printed.
var ErrFailed = errors.New("command failed")

// App holds what every subcommand needs.
type App struct {
	cfg *config.Config

	newMultiplexer func(binPath string) session.Multiplexer
	environment    func(tmuxPresent bool) iterm.Environment
	terminalOpts   []iterm.Option
	managerOpts    []session.ManagerOption
	copyToClip     func(text string) error
	stdout         io.Writer
	width          func() int

	// Persistent flags.
	sessionName string
	verbose     bool
	output      string
}

// Option configures an App.
type Option func(*App)

// WithConfig replaces the configuration loaded from disk.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.cfg = cfg
	}
}

// WithMultiplexer makes every command use mux instead of a real tmux client.
func WithMultiplexer(mux session.Multiplexer) Option {
	return func(a *App) {
		a.newMultiplexer = func(string) session.Multiplexer { return mux }
	}
}

// WithManagerOptions passes options through to session.NewManager.
func WithManagerOptions(opts ...session.ManagerOption) Option {
	return func(a *App) {
		a.managerOpts = append(a.managerOpts, opts...)
	}
}

// WithEnvironment replaces the terminal environment seen by detect and the
// iTerm2 commands.
func WithEnvironment(env iterm.Environment) Option {
	return func(a *App) {
		a.environment = func(bool) iterm.Environment { return env }
	}
}

// WithTerminalOptions passes options through to iterm.New.
func WithTerminalOptions(opts ...iterm.Option) Option {
	return func(a *App) {
		a.terminalOpts = append(a.terminalOpts, opts...)
	}
}

// WithClipboard replaces the system clipboard used by capture-pane --copy.
func WithClipboard(copyFn func(text string) error) Option {
	return func(a *App) {
		a.copyToClip = copyFn
	}
}

// WithStdout redirects result output.
func WithStdout(w io.Writer) Option {
	return func(a *App) {
		a.stdout = w
	}
}

// New creates an App. Without WithConfig the configuration is loaded from
// the config directory.
func New(opts ...Option) *App {
	a := &App{
		newMultiplexer: func(binPath string) session.Multiplexer {
			return session.NewMultiplexer(session.DefaultMultiplexer(), binPath)
		},
		environment: iterm.CurrentEnvironment,
		copyToClip:  clipboard.WriteAll,
		stdout:      os.Stdout,
		width:       terminalWidth,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cfg == nil {
		a.cfg = config.LoadConfig()
	}
	return a
}

// terminalWidth is the width of stdout, or zero when it is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

// Execute runs the command line and returns the process exit code.
func Execute(version string, args []string) int {
	// Stderr mirroring is switched on once the flags are parsed.
	log.Initialize(false)
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := New().RootCommand(version)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrFailed) {
			fmt.Fprintln(os.Stderr, err)
			log.ErrorLog.Printf("%v", err)
		}
		return 1
	}
	return 0
}

// manager connects to tmux and resolves the working session. On failure the
// returned Result is what the command should print.
func (a *App) manager() (*session.Manager, *session.Result) {
	mux := a.newMultiplexer(a.cfg.TmuxPath)
	mgr, err := session.NewManager(mux, a.sessionName, a.managerOpts...)
	if err != nil {
		return nil, session.Failure(session.CodeListSessionsFailed, "failed to query tmux: %v", err)
	}
	return mgr, nil
}

// terminal builds the iTerm2 helper. It connects to tmux only when a command
// has to look up a pane.
func (a *App) terminal() *iterm.Terminal {
	tmuxPresent := a.newMultiplexer(a.cfg.TmuxPath).IsAvailable()
	return iterm.New(a.sessionName, a.manager, iterm.Detect(a.environment(tmuxPresent)), a.terminalOpts...)
}

// withTerminal runs fn against the iTerm2 helper and prints its result.
func (a *App) withTerminal(fn func(*iterm.Terminal) *session.Result) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return a.emit(cmd, fn(a.terminal()))
	}
}

// emit prints r and turns an error result into ErrFailed.
func (a *App) emit(cmd *cobra.Command, r *session.Result) error {
	if a.verbose {
		if data, err := r.MarshalJSON(); err == nil {
			log.InfoLog.Printf("%s result: %s", cmd.Name(), data)
		}
	}

	width := 0
	if a.output == OutputText {
		width = a.width()
	}
	if err := writeResult(a.stdout, r, a.output, width); err != nil {
		return err
	}
	if r.IsError() {
		return ErrFailed
	}
	return nil
}

// withManager runs fn against a Manager and prints its result.
func (a *App) withManager(fn func(*session.Manager) *session.Result) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		mgr, fail := a.manager()
		if fail != nil {
			return a.emit(cmd, fail)
		}
		return a.emit(cmd, fn(mgr))
	}
}

// invalid prints an INVALID_ARGUMENT result.
func (a *App) invalid(cmd *cobra.Command, format string, args ...interface{}) error {
	return a.emit(cmd, session.Failure(session.CodeInvalidArgument, format, args...))
}

// RootCommand builds the ticmd command tree.
func (a *App) RootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "ticmd",
		Short: "ticmd - drive tmux (and iTerm2) from coding agents",
		Long: "ticmd creates tmux sessions, windows and panes, sends commands, captures output\n" +
			"and waits for panes to go idle. Every command prints one JSON object.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.SetVerbose(a.verbose)
			if a.output != OutputJSON && a.output != OutputText {
				return fmt.Errorf("invalid --output %q (must be %q or %q)", a.output, OutputJSON, OutputText)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.sessionName, "session", "s", a.cfg.DefaultSession, "tmux session to work in")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log results and diagnostics to stderr")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", OutputJSON, "Output format: json or text")

	root.AddCommand(
		a.createSessionCmd(),
		a.killSessionCmd(),
		a.createWindowCmd(),
		a.createPaneCmd(),
		a.listSessionsCmd(),
		a.listWindowsCmd(),
		a.listPanesCmd(),
		a.sendCommandCmd(),
		a.capturePaneCmd(),
		a.waitIdleCmd(),
		a.killWindowCmd(),
		a.killPaneCmd(),
		a.setBadgeCmd(),
		a.setMarkCmd(),
		a.notifyCmd(),
		a.setTabColorCmd(),
		a.detectCmd(),
		a.statusCmd(),
		a.debugCmd(),
		versionCmd(version),
	)
	return root
}
