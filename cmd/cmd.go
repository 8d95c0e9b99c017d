package cmd

import (
	"os/exec"
	"strings"
)

// Executor runs external commands. It exists so tests can substitute a mock
// for the real process execution.
type Executor interface {
	Run(cmd *exec.Cmd) error
	Output(cmd *exec.Cmd) ([]byte, error)
}

// Exec is the default Executor backed by os/exec.
type Exec struct{}

func (e Exec) Run(cmd *exec.Cmd) error {
	return cmd.Run()
}

func (e Exec) Output(cmd *exec.Cmd) ([]byte, error) {
	return cmd.Output()
}

// MakeExecutor returns an Executor that runs commands for real.
func MakeExecutor() Executor {
	return Exec{}
}

// ToString renders a command the way it would be typed in a shell.
func ToString(cmd *exec.Cmd) string {
	if cmd == nil {
		return "<nil>"
	}
	return strings.Join(cmd.Args, " ")
}
