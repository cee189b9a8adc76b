package browse

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/crawlview/internal/record"
	"github.com/smileynet/crawlview/internal/table"
)

// tabState manages one dataset tab: its table engine, cursor, scroll
// position, and active filter preset. Tabs start lazily, so a dataset
// costs nothing until it is first shown.
type tabState struct {
	kind      record.Kind
	ctrl      *table.Controller
	renderer  record.Renderer
	rowHeight int
	cursor    int // absolute row index of the selection
	top       int // absolute row index of the first visible line
	preset    int // index into kind.FilterPresets()
	started   bool
	lastErr   error
}

func newTabState(kind record.Kind, src table.Source, rowHeight int, engineOpts []table.Option) *tabState {
	return &tabState{
		kind:      kind,
		ctrl:      table.New(src, engineOpts...),
		renderer:  record.ForKind(kind),
		rowHeight: rowHeight,
	}
}

// fetchCmds wraps engine fetches into commands that report their
// completions as BatchMsg values.
func fetchCmds(kind record.Kind, fetches []table.Fetch) []tea.Cmd {
	if len(fetches) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(fetches))
	for _, fetch := range fetches {
		cmds = append(cmds, func() tea.Msg {
			return BatchMsg{Kind: kind, Completion: fetch()}
		})
	}
	return cmds
}

// start brings the tab's engine out of its empty phase and issues the
// probe fetch.
func (ts *tabState) start(ctx context.Context) []tea.Cmd {
	ts.started = true
	return fetchCmds(ts.kind, ts.ctrl.Start(ctx))
}

// resize reports a new viewport extent in scroll units.
func (ts *tabState) resize(ctx context.Context, extent int) []tea.Cmd {
	return fetchCmds(ts.kind, ts.ctrl.Resize(ctx, extent))
}

// apply feeds a fetch completion to the engine and keeps the cursor
// inside the dataset once the total becomes known. Completions issued
// before a reload or filter change carry an older generation; the
// engine drops them, and their outcome must not touch the error state
// owned by the current generation either.
func (ts *tabState) apply(ctx context.Context, comp table.Completion, rows int) []tea.Cmd {
	if comp.Generation == ts.ctrl.View().Generation {
		ts.lastErr = comp.Err
	}

	cmds := fetchCmds(ts.kind, ts.ctrl.Apply(ctx, comp))

	if v := ts.ctrl.View(); v.TotalKnown && ts.cursor >= v.Total {
		ts.cursor = v.Total - 1
		if ts.cursor < 0 {
			ts.cursor = 0
		}
		cmds = append(cmds, ts.follow(ctx, rows)...)
	}
	return cmds
}

// moveCursor shifts the selection by delta rows and scrolls to keep it
// visible.
func (ts *tabState) moveCursor(ctx context.Context, delta, rows int) []tea.Cmd {
	ts.cursor += delta
	if ts.cursor < 0 {
		ts.cursor = 0
	}
	if v := ts.ctrl.View(); v.TotalKnown && ts.cursor >= v.Total {
		ts.cursor = v.Total - 1
		if ts.cursor < 0 {
			ts.cursor = 0
		}
	}
	return ts.follow(ctx, rows)
}

// jumpTop moves the selection to the first row.
func (ts *tabState) jumpTop(ctx context.Context, rows int) []tea.Cmd {
	ts.cursor = 0
	return ts.follow(ctx, rows)
}

// jumpBottom moves the selection to the last row. It is a no-op until
// the total row count is known.
func (ts *tabState) jumpBottom(ctx context.Context, rows int) []tea.Cmd {
	v := ts.ctrl.View()
	if !v.TotalKnown || v.Total == 0 {
		return nil
	}
	ts.cursor = v.Total - 1
	return ts.follow(ctx, rows)
}

// follow adjusts the visible top so the cursor stays on screen, then
// reports the new scroll offset to the engine.
func (ts *tabState) follow(ctx context.Context, rows int) []tea.Cmd {
	if rows < 1 {
		rows = 1
	}
	if ts.cursor < ts.top {
		ts.top = ts.cursor
	}
	if ts.cursor >= ts.top+rows {
		ts.top = ts.cursor - rows + 1
	}
	if ts.top < 0 {
		ts.top = 0
	}
	return fetchCmds(ts.kind, ts.ctrl.Scroll(ctx, ts.top*ts.rowHeight))
}

// cycleFilter advances to the next filter preset for this kind and
// restarts the engine with the new parameters.
func (ts *tabState) cycleFilter(ctx context.Context) []tea.Cmd {
	presets := ts.kind.FilterPresets()
	ts.preset = (ts.preset + 1) % len(presets)
	ts.cursor, ts.top = 0, 0
	ts.lastErr = nil
	return fetchCmds(ts.kind, ts.ctrl.SetFilters(ctx, presets[ts.preset].Filters()))
}

// reload discards everything cached for this tab and refetches.
func (ts *tabState) reload(ctx context.Context) []tea.Cmd {
	ts.cursor, ts.top = 0, 0
	ts.lastErr = nil
	return fetchCmds(ts.kind, ts.ctrl.Reset(ctx))
}

// filterLabel returns the active preset's label, or "" when unfiltered.
func (ts *tabState) filterLabel() string {
	presets := ts.kind.FilterPresets()
	if ts.preset <= 0 || ts.preset >= len(presets) {
		return ""
	}
	return presets[ts.preset].Label
}

// slotAt picks the slot for an absolute row index out of the view window.
func slotAt(v table.View, idx int) (table.Slot, bool) {
	if idx < v.Window.Start || idx >= v.Window.End {
		return table.Slot{}, false
	}
	return v.Slots[idx-v.Window.Start], true
}

// view renders the visible row lines, each prefixed with the cursor
// marker and suffixed with a scrollbar glyph. Rows not yet resident
// render as gaps, and rows that fail to render are isolated to a gap
// line rather than tearing down the tab.
func (ts *tabState) view(lineWidth, rows int) string {
	v := ts.ctrl.View()
	bar := ts.scrollbar(v, rows)

	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		idx := ts.top + i

		marker := "  "
		if idx == ts.cursor {
			marker = CursorMarker
		}
		line := ts.rowLine(v, idx, lineWidth)
		if w := lipgloss.Width(line); w < lineWidth {
			line += strings.Repeat(" ", lineWidth-w)
		}
		b.WriteString(marker + line + " " + bar[i])
	}
	return b.String()
}

func (ts *tabState) rowLine(v table.View, idx, width int) string {
	if idx < 0 || (v.TotalKnown && idx >= v.Total) {
		return ""
	}
	slot, ok := slotAt(v, idx)
	if !ok || !slot.Loaded {
		return gapStyle.Render("···")
	}
	line, err := ts.renderer.Line(slot.Row, width)
	if err != nil {
		return gapStyle.Render("(unrenderable row)")
	}
	return line
}

// scrollbar returns one glyph per visible line, with the thumb placed
// proportionally to the visible rows within the known total.
func (ts *tabState) scrollbar(v table.View, rows int) []string {
	bar := make([]string, rows)
	for i := range bar {
		bar[i] = scrollTrack
	}
	if !v.TotalKnown || v.Total <= rows || rows < 1 {
		return bar
	}
	length := rows * rows / v.Total
	if length < 1 {
		length = 1
	}
	start := ts.top * rows / v.Total
	if start > rows-length {
		start = rows - length
	}
	for i := start; i < start+length && i < rows; i++ {
		bar[i] = scrollThumb
	}
	return bar
}
