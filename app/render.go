package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"ticmd/session"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

// Output formats accepted by --output.
const (
	OutputJSON = "json"
	OutputText = "text"
)

var (
	successColor = lipgloss.AdaptiveColor{Light: "#22C55E", Dark: "#22C55E"}
	timeoutColor = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#F59E0B"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#EF4444"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}

	keyStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle = lipgloss.NewStyle().Bold(true)
)

var statusStyles = map[session.Status]struct {
	icon  string
	style lipgloss.Style
}{
	session.StatusSuccess: {"+", lipgloss.NewStyle().Foreground(successColor).Bold(true)},
	session.StatusTimeout: {"!", lipgloss.NewStyle().Foreground(timeoutColor).Bold(true)},
	session.StatusError:   {"×", lipgloss.NewStyle().Foreground(errorColor).Bold(true)},
}

// writeResult prints r in the requested format. width limits text lines;
// zero means unlimited.
func writeResult(w io.Writer, r *session.Result, format string, width int) error {
	if format == OutputText {
		_, err := io.WriteString(w, renderText(r, width))
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// renderText lays a Result out for people: a status line, aligned key/value
// pairs, tables for lists and the captured content last.
func renderText(r *session.Result, width int) string {
	var b strings.Builder

	status := r.Status()
	st, ok := statusStyles[status]
	if !ok {
		st = statusStyles[session.StatusError]
	}
	headline := string(status)
	if msg := r.Message(); msg != "" {
		headline += ": " + msg
	}
	b.WriteString(st.style.Render(st.icon+" "+headline) + "\n")

	var scalars []string
	var tables []string
	var content string
	hasContent := false
	for _, key := range r.Keys() {
		if key == "status" || key == "message" {
			continue
		}
		v, _ := r.Get(key)
		switch value := v.(type) {
		case []*session.Record:
			tables = append(tables, key)
		case string:
			if key == "content" {
				content = value
				hasContent = true
				continue
			}
			scalars = append(scalars, key)
		default:
			scalars = append(scalars, key)
		}
	}

	keyWidth := 0
	for _, key := range scalars {
		keyWidth = max(keyWidth, runewidth.StringWidth(key))
	}
	for _, key := range scalars {
		v, _ := r.Get(key)
		label := runewidth.FillRight(key, keyWidth)
		b.WriteString(clip(keyStyle.Render(label)+"  "+formatValue(v), width) + "\n")
	}

	for _, key := range tables {
		v, _ := r.Get(key)
		b.WriteString("\n" + headerStyle.Render(key) + "\n")
		b.WriteString(renderTable(v.([]*session.Record), width))
	}

	if hasContent {
		b.WriteString("\n")
		for _, line := range strings.Split(content, "\n") {
			b.WriteString(clip(line, width) + "\n")
		}
	}
	return b.String()
}

// renderTable prints records as columns named by the first record's keys.
func renderTable(records []*session.Record, width int) string {
	if len(records) == 0 {
		return keyStyle.Render("(none)") + "\n"
	}

	columns := records[0].Keys()
	cells := make([][]string, len(records))
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = runewidth.StringWidth(c)
	}
	for row, rec := range records {
		cells[row] = make([]string, len(columns))
		for i, c := range columns {
			v, _ := rec.Get(c)
			cells[row][i] = formatValue(v)
			widths[i] = max(widths[i], runewidth.StringWidth(cells[row][i]))
		}
	}

	var b strings.Builder
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = runewidth.FillRight(strings.ToUpper(c), widths[i])
	}
	b.WriteString(clip(keyStyle.Render(strings.Join(header, "  ")), width) + "\n")
	for _, row := range cells {
		line := make([]string, len(row))
		for i, cell := range row {
			line[i] = runewidth.FillRight(cell, widths[i])
		}
		b.WriteString(clip(strings.TrimRight(strings.Join(line, "  "), " "), width) + "\n")
	}
	return b.String()
}

func formatValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case bool:
		if value {
			return "yes"
		}
		return "no"
	case float64:
		return fmt.Sprintf("%.2fs", value)
	case *session.Record:
		keys := value.Keys()
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			inner, _ := value.Get(k)
			parts = append(parts, k+"="+formatValue(inner))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(value)
	}
}

// clip truncates a line to width display cells, keeping escape sequences
// intact.
func clip(line string, width int) string {
	if width <= 0 {
		return line
	}
	return truncate.StringWithTail(line, uint(width), "…")
}
