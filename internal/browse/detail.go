package browse

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/crawlview/internal/record"
	"github.com/smileynet/crawlview/internal/table"
)

// detailState holds the full-screen inspection view for a single row,
// showing the record's pretty-printed JSON in a scrollable viewport.
type detailState struct {
	kind  record.Kind
	index int
	vp    viewport.Model
	err   error
}

func newDetailState() detailState {
	return detailState{vp: viewport.New(0, 0)}
}

// detailChrome is the number of lines consumed by the title and hint bar.
const detailChrome = 2

func (ds *detailState) resize(width, height int) {
	ds.vp.Width = width
	ds.vp.Height = height - detailChrome
	if ds.vp.Height < 1 {
		ds.vp.Height = 1
	}
}

// set loads a row into the viewport. A row that cannot be pretty-printed
// keeps the view usable and reports the failure in place of the body.
func (ds *detailState) set(kind record.Kind, index int, row table.Row) {
	ds.kind = kind
	ds.index = index
	body, err := record.DetailJSON(row)
	ds.err = err
	ds.vp.SetContent(body)
	ds.vp.GotoTop()
}

// View renders the detail screen for the given dimensions.
func (ds detailState) View(width, height int) string {
	title := titleStyle.Render(fmt.Sprintf("%s row %s", ds.kind.Title(), groupDigits(ds.index+1)))
	hint := statusStyle.Render("[esc] back · ↑/↓ scroll")

	if ds.err != nil {
		body := errorStyle.Render(fmt.Sprintf("cannot render row: %v", ds.err))
		return lipgloss.JoinVertical(lipgloss.Left, title, body, hint)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, ds.vp.View(), hint)
}
