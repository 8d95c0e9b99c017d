package app

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"ticmd/config"
	"ticmd/iterm"
	"ticmd/log"
	"ticmd/session"
	"ticmd/session/idle"

	"github.com/spf13/cobra"
)

func mustRequire(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func (a *App) createSessionCmd() *cobra.Command {
	var name, startDir string
	cmd := &cobra.Command{
		Use:   "create-session",
		Short: "Create a detached tmux session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.CreateSession(name, startDir)
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Session name")
	cmd.Flags().StringVar(&startDir, "start-dir", "", "Working directory of the first window")
	mustRequire(cmd, "name")
	return cmd
}

func (a *App) killSessionCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "kill-session",
		Short: "Kill a tmux session (the working session by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.KillSession(name)
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Session name")
	return cmd
}

func (a *App) createWindowCmd() *cobra.Command {
	var name, command, shell string
	cmd := &cobra.Command{
		Use:   "create-window",
		Short: "Create a new window and start a shell in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.CreateWindow(name, command, shell)
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Window name (generated when empty)")
	cmd.Flags().StringVar(&command, "command", "", "Command to run once the shell is up")
	cmd.Flags().StringVar(&shell, "shell", a.cfg.Shell, "Shell to start in the window")
	return cmd
}

func (a *App) createPaneCmd() *cobra.Command {
	var window int
	var vertical, horizontal bool
	var command string
	cmd := &cobra.Command{
		Use:   "create-pane",
		Short: "Split a window to create a new pane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.CreatePane(window, vertical && !horizontal, command)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	cmd.Flags().BoolVar(&vertical, "vertical", true, "Stack the new pane below")
	cmd.Flags().BoolVar(&horizontal, "horizontal", false, "Put the new pane to the right")
	cmd.Flags().StringVar(&command, "command", "", "Command to run in the new pane")
	cmd.MarkFlagsMutuallyExclusive("vertical", "horizontal")
	mustRequire(cmd, "window")
	return cmd
}

func (a *App) listSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-sessions",
		Short: "List all tmux sessions",
		Args:  cobra.NoArgs,
		RunE: a.withManager(func(m *session.Manager) *session.Result {
			return m.ListSessions()
		}),
	}
}

func (a *App) listWindowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-windows [SESSION]",
		Short: "List the windows of a session (the working session by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.ListWindows(name)
			})(cmd, args)
		},
	}
}

func (a *App) listPanesCmd() *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:   "list-panes",
		Short: "List the panes of a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.ListPanes(window)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	mustRequire(cmd, "window")
	return cmd
}

func (a *App) sendCommandCmd() *cobra.Command {
	var window, pane int
	var noEnter bool
	cmd := &cobra.Command{
		Use:   "send-command COMMAND",
		Short: "Type a command into a pane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.SendCommand(window, pane, args[0], !noEnter)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	cmd.Flags().IntVar(&pane, "pane", 0, "Pane index")
	cmd.Flags().BoolVar(&noEnter, "no-enter", false, "Do not press Enter afterwards")
	mustRequire(cmd, "window", "pane")
	return cmd
}

func (a *App) capturePaneCmd() *cobra.Command {
	var window, pane, lines int
	var copyContent bool
	cmd := &cobra.Command{
		Use:   "capture-pane",
		Short: "Print the last lines of a pane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				r := m.CapturePane(window, pane, lines)
				if !copyContent || r.IsError() {
					return r
				}
				content, _ := r.Get("content")
				text, _ := content.(string)
				if err := a.copyToClip(text); err != nil {
					log.WarningLog.Printf("failed to copy pane content: %v", err)
					return r.With("copied", false)
				}
				return r.With("copied", true)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	cmd.Flags().IntVar(&pane, "pane", 0, "Pane index")
	cmd.Flags().IntVar(&lines, "lines", a.cfg.CaptureLines, "Number of trailing lines to return")
	cmd.Flags().BoolVar(&copyContent, "copy", false, "Also copy the content to the system clipboard")
	mustRequire(cmd, "window", "pane")
	return cmd
}

func (a *App) waitIdleCmd() *cobra.Command {
	var window, pane int
	var timeout, quietFor, pollInterval string
	cmd := &cobra.Command{
		Use:   "wait-idle",
		Short: "Wait until a pane's content stops changing",
		Long: "wait-idle polls a pane until its content has been unchanged for --quiet-for,\n" +
			"or until --timeout runs out. A timeout is reported with status \"timeout\".\n" +
			"Durations take Go syntax (30s, 1m) or a number of seconds (2, 0.5).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts idle.Options
			for _, d := range []struct {
				flag  string
				value string
				dst   *time.Duration
			}{
				{"timeout", timeout, &opts.Timeout},
				{"quiet-for", quietFor, &opts.QuietFor},
				{"poll-interval", pollInterval, &opts.PollInterval},
			} {
				parsed, err := config.ParseDuration(d.value)
				if err != nil {
					return a.invalid(cmd, "--%s: %v", d.flag, err)
				}
				*d.dst = parsed
			}

			return a.withManager(func(m *session.Manager) *session.Result {
				return m.WaitIdle(cmd.Context(), window, pane, opts)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	cmd.Flags().IntVar(&pane, "pane", 0, "Pane index")
	cmd.Flags().StringVar(&timeout, "timeout", time.Duration(a.cfg.WaitTimeout).String(), "Overall time budget")
	cmd.Flags().StringVar(&quietFor, "quiet-for", time.Duration(a.cfg.QuietFor).String(), "How long the content must stay unchanged")
	cmd.Flags().StringVar(&pollInterval, "poll-interval", time.Duration(a.cfg.PollInterval).String(), "How often to sample the pane")
	mustRequire(cmd, "window", "pane")
	return cmd
}

func (a *App) killWindowCmd() *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:   "kill-window",
		Short: "Kill a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.KillWindow(window)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	mustRequire(cmd, "window")
	return cmd
}

func (a *App) killPaneCmd() *cobra.Command {
	var window, pane int
	cmd := &cobra.Command{
		Use:   "kill-pane",
		Short: "Kill a pane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *session.Manager) *session.Result {
				return m.KillPane(window, pane)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	cmd.Flags().IntVar(&pane, "pane", 0, "Pane index")
	mustRequire(cmd, "window", "pane")
	return cmd
}

func (a *App) setBadgeCmd() *cobra.Command {
	var window int
	var text string
	cmd := &cobra.Command{
		Use:   "set-badge",
		Short: "Set the iTerm2 badge of a window",
		Args:  cobra.NoArgs,
		RunE: a.withTerminal(func(t *iterm.Terminal) *session.Result {
			return t.SetBadge(window, text)
		}),
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	cmd.Flags().StringVar(&text, "text", "", "Badge text")
	mustRequire(cmd, "window", "text")
	return cmd
}

func (a *App) setMarkCmd() *cobra.Command {
	var window, pane int
	cmd := &cobra.Command{
		Use:   "set-mark",
		Short: "Set an iTerm2 mark in a pane",
		Args:  cobra.NoArgs,
		RunE: a.withTerminal(func(t *iterm.Terminal) *session.Result {
			return t.SetMark(window, pane)
		}),
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	cmd.Flags().IntVar(&pane, "pane", 0, "Pane index")
	mustRequire(cmd, "window", "pane")
	return cmd
}

func (a *App) notifyCmd() *cobra.Command {
	var message, title string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Post an iTerm2 notification",
		Args:  cobra.NoArgs,
		RunE: a.withTerminal(func(t *iterm.Terminal) *session.Result {
			return t.Notify(title, message)
		}),
	}
	cmd.Flags().StringVar(&message, "message", "", "Notification text")
	cmd.Flags().StringVar(&title, "title", "ticmd", "Notification title")
	mustRequire(cmd, "message")
	return cmd
}

func (a *App) setTabColorCmd() *cobra.Command {
	var window, red, green, blue int
	cmd := &cobra.Command{
		Use:   "set-tab-color",
		Short: "Set the iTerm2 tab colour of a window",
		Args:  cobra.NoArgs,
		RunE: a.withTerminal(func(t *iterm.Terminal) *session.Result {
			return t.SetTabColor(window, red, green, blue)
		}),
	}
	cmd.Flags().IntVar(&window, "window", 0, "Window index")
	cmd.Flags().IntVar(&red, "red", 0, "Red (0-255)")
	cmd.Flags().IntVar(&green, "green", 0, "Green (0-255)")
	cmd.Flags().IntVar(&blue, "blue", 0, "Blue (0-255)")
	mustRequire(cmd, "window")
	return cmd
}

func (a *App) detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Report terminal and tmux capabilities",
		Args:  cobra.NoArgs,
		RunE: a.withTerminal(func(t *iterm.Terminal) *session.Result {
			return t.Detect()
		}),
	}
}

func (a *App) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the windows of the working session",
		Args:  cobra.NoArgs,
		RunE: a.withTerminal(func(t *iterm.Terminal) *session.Result {
			return t.Status()
		}),
	}
}

func (a *App) debugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Print debug information like config paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := config.GetConfigDir()
			if err != nil {
				return fmt.Errorf("failed to get config directory: %w", err)
			}
			configJSON, err := json.MarshalIndent(a.cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}

			fmt.Fprintf(a.stdout, "Config: %s\n%s\n", filepath.Join(configDir, config.ConfigFileName), configJSON)
			fmt.Fprintf(a.stdout, "Log: %s\n", log.FilePath())
			return nil
		},
	}
}

func versionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ticmd",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ticmd version %s\n", version)
		},
	}
}
