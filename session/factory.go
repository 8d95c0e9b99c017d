package session

import (
	"ticmd/session/tmux"
)

// MultiplexerType represents the type of terminal multiplexer to use.
type MultiplexerType string

const (
	MultiplexerTmux MultiplexerType = "tmux"
)

// DefaultMultiplexer returns the multiplexer used when none is configured.
func DefaultMultiplexer() MultiplexerType {
	return MultiplexerTmux
}

// NewMultiplexer creates a client for the given multiplexer type. binPath
// overrides the binary looked up in PATH when non-empty.
func NewMultiplexer(mtype MultiplexerType, binPath string) Multiplexer {
	switch mtype {
	case MultiplexerTmux:
		fallthrough
	default:
		return tmux.NewClient(tmux.WithTmuxPath(binPath))
	}
}

// IsMultiplexerAvailable checks if a multiplexer is available on the system.
func IsMultiplexerAvailable(mtype MultiplexerType, binPath string) bool {
	switch mtype {
	case MultiplexerTmux:
		return NewMultiplexer(mtype, binPath).IsAvailable()
	default:
		return false
	}
}
