package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/crawlview/internal/table"
)

// Renderer formats one dataset kind's records as table lines. Renderers
// are stateless; the same instance serves every row of a tab.
type Renderer interface {
	// Header returns the column header line for the given width.
	Header(width int) string
	// Line formats one record for the given width. Decode failures
	// return an error so the caller can render the row as a gap without
	// touching its neighbors.
	Line(row table.Row, width int) (string, error)
}

// ForKind returns the line renderer for a dataset kind.
func ForKind(k Kind) Renderer {
	switch k {
	case InternalLinks, ExternalLinks:
		return linkRenderer{}
	case Issues:
		return issueRenderer{}
	default:
		return urlRenderer{}
	}
}

var (
	headerText = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
	mutedText = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
)

// Status badge colors indexed by status class (code/100).
// 2xx=green, 3xx=yellow, 4xx=red, 5xx=magenta.
var statusColors = map[int]lipgloss.AdaptiveColor{
	2: {Light: "2", Dark: "10"},
	3: {Light: "3", Dark: "11"},
	4: {Light: "1", Dark: "9"},
	5: {Light: "5", Dark: "13"},
}

// StatusBadge returns a right-aligned status code styled by its class.
// Non-positive codes (request never completed) render as a muted dash.
func StatusBadge(code int) string {
	if code <= 0 {
		return mutedText.Render(" --")
	}
	label := fmt.Sprintf("%3d", code)
	color, ok := statusColors[code/100]
	if !ok {
		return mutedText.Render(label)
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

// Severity badge colors by level. Unknown severities render muted.
var severityColors = map[string]lipgloss.AdaptiveColor{
	"error":   {Light: "1", Dark: "9"},
	"warning": {Light: "3", Dark: "11"},
	"info":    {Light: "4", Dark: "12"},
}

// SeverityBadge returns a left-aligned severity label styled by level.
func SeverityBadge(severity string) string {
	label := fmt.Sprintf("%-7s", severity)
	color, ok := severityColors[severity]
	if !ok {
		return mutedText.Render(label)
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

// rawOf extracts the raw JSON bytes from an opaque engine row.
func rawOf(row table.Row) (json.RawMessage, error) {
	switch r := row.(type) {
	case json.RawMessage:
		return r, nil
	case []byte:
		return json.RawMessage(r), nil
	default:
		return nil, fmt.Errorf("record: unexpected row type %T", row)
	}
}

// DetailJSON pretty-prints a raw row for the detail view.
func DetailJSON(row table.Row) (string, error) {
	raw, err := rawOf(row)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", fmt.Errorf("record: formatting row: %w", err)
	}
	return buf.String(), nil
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

// pad left-aligns s in a field of exactly width runes, truncating first.
func pad(s string, width int) string {
	return fmt.Sprintf("%-*s", width, truncate(s, width))
}

// minLineWidth is the narrowest width the renderers lay columns out for;
// anything narrower degrades to a single truncated column.
const minLineWidth = 40

// --- URL datasets ---

type urlRenderer struct{}

// urlFixed is the width consumed by the status, size, and word columns
// plus separators.
const urlFixed = 3 + 1 + 7 + 1 + 6 + 2

func (urlRenderer) Header(width int) string {
	if width < minLineWidth {
		return headerText.Render("URL")
	}
	urlW, titleW := splitWidth(width-urlFixed, 60)
	return headerText.Render(fmt.Sprintf("%3s %7s %6s  %s %s",
		"SC", "SIZE", "WORDS", pad("URL", urlW), pad("TITLE", titleW)))
}

func (urlRenderer) Line(row table.Row, width int) (string, error) {
	raw, err := rawOf(row)
	if err != nil {
		return "", err
	}
	var rec URLRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("record: decoding url row: %w", err)
	}

	if width < minLineWidth {
		return StatusBadge(rec.StatusCode) + " " + truncate(rec.URL, width-4), nil
	}
	urlW, titleW := splitWidth(width-urlFixed, 60)
	return fmt.Sprintf("%s %7s %6d  %s %s",
		StatusBadge(rec.StatusCode),
		humanSize(rec.Size),
		rec.WordCount,
		pad(rec.URL, urlW),
		mutedText.Render(truncate(rec.Title, titleW)),
	), nil
}

// --- Link datasets ---

type linkRenderer struct{}

// linkFixed is the width consumed by the status and follow columns plus
// separators and the arrow between source and target.
const linkFixed = 3 + 1 + 2 + 2 + 3

func (linkRenderer) Header(width int) string {
	if width < minLineWidth {
		return headerText.Render("LINK")
	}
	srcW, dstW := splitWidth(width-linkFixed, 50)
	return headerText.Render(fmt.Sprintf("%3s %-2s  %s → %s",
		"SC", "NF", pad("SOURCE", srcW), pad("TARGET", dstW)))
}

func (linkRenderer) Line(row table.Row, width int) (string, error) {
	raw, err := rawOf(row)
	if err != nil {
		return "", err
	}
	var rec LinkRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("record: decoding link row: %w", err)
	}

	nf := "  "
	if rec.IsNofollow {
		nf = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"}).
			Render("nf")
	}
	if width < minLineWidth {
		return StatusBadge(rec.TargetStatus) + " " + truncate(rec.TargetURL, width-4), nil
	}
	srcW, dstW := splitWidth(width-linkFixed, 50)
	return fmt.Sprintf("%s %s  %s → %s",
		StatusBadge(rec.TargetStatus),
		nf,
		pad(rec.SourceURL, srcW),
		pad(rec.TargetURL, dstW),
	), nil
}

// --- Issue dataset ---

type issueRenderer struct{}

// issueFixed is the width consumed by the severity and category columns
// plus separators.
const issueFixed = 7 + 1 + 14 + 2

func (issueRenderer) Header(width int) string {
	if width < minLineWidth {
		return headerText.Render("ISSUE")
	}
	issueW, urlW := splitWidth(width-issueFixed, 55)
	return headerText.Render(fmt.Sprintf("%-7s %-14s  %s %s",
		"SEV", "CATEGORY", pad("ISSUE", issueW), pad("URL", urlW)))
}

func (issueRenderer) Line(row table.Row, width int) (string, error) {
	raw, err := rawOf(row)
	if err != nil {
		return "", err
	}
	var rec IssueRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("record: decoding issue row: %w", err)
	}

	if width < minLineWidth {
		return SeverityBadge(rec.Severity) + " " + truncate(rec.Issue, width-8), nil
	}
	issueW, urlW := splitWidth(width-issueFixed, 55)
	return fmt.Sprintf("%s %s  %s %s",
		SeverityBadge(rec.Severity),
		pad(rec.Category, 14),
		pad(rec.Issue, issueW),
		mutedText.Render(truncate(rec.URL, urlW)),
	), nil
}

// splitWidth divides the remaining width between two columns, giving the
// first one pct percent (minimum one cell each).
func splitWidth(remaining, pct int) (first, second int) {
	if remaining < 2 {
		return 1, 1
	}
	first = remaining * pct / 100
	if first < 1 {
		first = 1
	}
	second = remaining - first - 1 // one separator cell
	if second < 1 {
		second = 1
	}
	return first, second
}

// humanSize formats a byte count compactly ("482", "12.3k", "1.2M").
func humanSize(n int64) string {
	switch {
	case n < 0:
		return "-"
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 1000000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	}
}
