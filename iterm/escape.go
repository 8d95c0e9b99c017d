package iterm

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	esc = "\x1b"
	bel = "\a"
	st  = esc + "\\"
)

// osc wraps a payload in an operating system command sequence.
func osc(payload string) string {
	return esc + "]" + payload + bel
}

// BadgeSequence sets the session badge. iTerm2 expects the badge format
// base64 encoded.
func BadgeSequence(text string) string {
	return osc("1337;SetBadgeFormat=" + base64.StdEncoding.EncodeToString([]byte(text)))
}

// MarkSequence drops a navigation mark at the cursor line.
func MarkSequence() string {
	return osc("1337;SetMark")
}

// NotifySequence posts a desktop notification.
func NotifySequence(title, message string) string {
	text := message
	if title != "" {
		text = title + ": " + message
	}
	// BEL and ESC would end the sequence early.
	text = strings.NewReplacer(esc, "", bel, "").Replace(text)
	return osc("9;" + text)
}

// TabColorSequence sets the tab colour, one sequence per component.
func TabColorSequence(red, green, blue int) string {
	return osc(fmt.Sprintf("6;1;bg;red;brightness;%d", red)) +
		osc(fmt.Sprintf("6;1;bg;green;brightness;%d", green)) +
		osc(fmt.Sprintf("6;1;bg;blue;brightness;%d", blue))
}

// Passthrough wraps seq so tmux forwards it to the outer terminal instead of
// interpreting it. tmux needs "allow-passthrough on" (3.3+) for this to work.
func Passthrough(seq string) string {
	return esc + "Ptmux;" + strings.ReplaceAll(seq, esc, esc+esc) + st
}
