package browse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/crawlview/internal/record"
	"github.com/smileynet/crawlview/internal/table"
)

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// chromeRows is the number of lines consumed by the tab bar, column
// header, and status bar around the row area.
const chromeRows = 3

// Model is the root Bubble Tea model for the dataset browser.
type Model struct {
	ctx        context.Context
	mode       Mode
	tabs       []*tabState
	active     int
	width      int
	height     int
	rowHeight  int
	engineOpts []table.Option
	spinner    spinner.Model
	help       help.Model
	detail     detailState
}

// Option configures the browse model.
type Option func(*Model)

// WithViewport sets the scroll geometry: units per row and the buffered
// rows fetched beyond each visible edge.
func WithViewport(rowHeight, bufferRows int) Option {
	return func(m *Model) {
		if rowHeight > 0 {
			m.rowHeight = rowHeight
		}
		m.engineOpts = append(m.engineOpts, table.WithGeometry(table.Geometry{
			RowHeight:  rowHeight,
			BufferRows: bufferRows,
		}))
	}
}

// WithCache sets batch residency limits for each dataset engine.
func WithCache(batchSize, maxResident, evictMargin int) Option {
	return func(m *Model) {
		m.engineOpts = append(m.engineOpts,
			table.WithBatchSize(batchSize),
			table.WithMaxResidentBatches(maxResident),
			table.WithEvictMargin(evictMargin),
		)
	}
}

// WithLogger routes engine diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.engineOpts = append(m.engineOpts, table.WithLogger(l))
		}
	}
}

// WithActiveKind selects the dataset tab shown first. Tabs are laid out
// in record.Kinds() order, so the kind doubles as the tab index.
func WithActiveKind(kind record.Kind) Option {
	return func(m *Model) {
		if idx := int(kind); idx >= 0 && idx < len(record.Kinds()) {
			m.active = idx
		}
	}
}

// New creates a browser Model with one tab per dataset kind. Only the
// first tab's engine is started; the rest start when first shown.
func New(provider SourceProvider, opts ...Option) Model {
	m := Model{
		ctx:       context.Background(),
		mode:      ModeTable,
		rowHeight: 1,
		spinner:   spinner.New(),
		help:      help.New(),
		detail:    newDetailState(),
	}
	m.spinner.Spinner = spinner.Dot
	for _, opt := range opts {
		opt(&m)
	}

	kinds := record.Kinds()
	m.tabs = make([]*tabState, len(kinds))
	for i, kind := range kinds {
		m.tabs[i] = newTabState(kind, provider.SourceFor(kind), m.rowHeight, m.engineOpts)
	}
	return m
}

// Init starts the spinner and the first tab's engine.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	cmds = append(cmds, m.tabs[m.active].start(m.ctx)...)
	return tea.Batch(cmds...)
}

// Update handles incoming messages with mode-based routing.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.detail.resize(msg.Width, msg.Height)

		var cmds []tea.Cmd
		extent := m.tableRows() * m.rowHeight
		for _, tab := range m.tabs {
			if tab.started {
				cmds = append(cmds, tab.resize(m.ctx, extent)...)
			}
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case BatchMsg:
		for _, tab := range m.tabs {
			if tab.kind == msg.Kind {
				return m, tea.Batch(tab.apply(m.ctx, msg.Completion, m.tableRows())...)
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey processes key messages with global and mode-specific routing.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	if m.mode == ModeDetail {
		return m.handleDetailKey(msg)
	}
	return m.handleTableKey(msg)
}

func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tab := m.tabs[m.active]
	rows := m.tableRows()

	switch msg.String() {
	case "q":
		return m.quit()

	case "tab", "right":
		return m.switchTab(1)

	case "shift+tab", "left":
		return m.switchTab(-1)

	case "up", "k":
		return m, tea.Batch(tab.moveCursor(m.ctx, -1, rows)...)

	case "down", "j":
		return m, tea.Batch(tab.moveCursor(m.ctx, 1, rows)...)

	case "pgup", "ctrl+u":
		return m, tea.Batch(tab.moveCursor(m.ctx, -rows, rows)...)

	case "pgdown", "ctrl+d":
		return m, tea.Batch(tab.moveCursor(m.ctx, rows, rows)...)

	case "g", "home":
		return m, tea.Batch(tab.jumpTop(m.ctx, rows)...)

	case "G", "end":
		return m, tea.Batch(tab.jumpBottom(m.ctx, rows)...)

	case "f":
		return m, tea.Batch(tab.cycleFilter(m.ctx)...)

	case "r":
		return m, tea.Batch(tab.reload(m.ctx)...)

	case "enter":
		return m.openDetail()
	}

	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "enter":
		m.mode = ModeTable
		return m, nil
	}

	var cmd tea.Cmd
	m.detail.vp, cmd = m.detail.vp.Update(msg)
	return m, cmd
}

// switchTab activates the tab delta positions away, starting its engine
// on first visit.
func (m Model) switchTab(delta int) (tea.Model, tea.Cmd) {
	n := len(m.tabs)
	m.active = ((m.active+delta)%n + n) % n

	tab := m.tabs[m.active]
	if tab.started {
		return m, nil
	}
	var cmds []tea.Cmd
	cmds = append(cmds, tab.resize(m.ctx, m.tableRows()*m.rowHeight)...)
	cmds = append(cmds, tab.start(m.ctx)...)
	return m, tea.Batch(cmds...)
}

// openDetail switches to the detail view for the row under the cursor.
// Nothing happens while that row is still a gap.
func (m Model) openDetail() (tea.Model, tea.Cmd) {
	tab := m.tabs[m.active]
	slot, ok := slotAt(tab.ctrl.View(), tab.cursor)
	if !ok || !slot.Loaded {
		return m, nil
	}
	m.detail.set(tab.kind, tab.cursor, slot.Row)
	m.mode = ModeDetail
	return m, nil
}

// quit tears down every started engine and exits the program.
func (m Model) quit() (tea.Model, tea.Cmd) {
	for _, tab := range m.tabs {
		tab.ctrl.Teardown()
	}
	return m, tea.Quit
}

// tableRows returns the number of visible row lines,
// accounting for chrome and the help bar.
func (m Model) tableRows() int {
	rows := m.height - chromeRows - helpBarHeight
	if rows < 1 {
		return 1
	}
	return rows
}

// lineWidth is the width available to a row line after the cursor marker
// and scrollbar columns.
func (m Model) lineWidth() int {
	w := m.width - 4
	if w < 0 {
		return 0
	}
	return w
}

// View renders the active tab with its chrome, or the detail screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.mode == ModeDetail {
		return m.detail.View(m.width, m.height)
	}

	tab := m.tabs[m.active]
	header := "  " + tab.renderer.Header(m.lineWidth())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewTabBar(),
		header,
		tab.view(m.lineWidth(), m.tableRows()),
		m.viewStatus(tab),
		m.help.View(HelpBindings(m.mode)),
	)
}

func (m Model) viewTabBar() string {
	parts := make([]string, len(m.tabs))
	for i, tab := range m.tabs {
		title := tab.kind.Title()
		if i == m.active {
			parts[i] = activeTabStyle.Render(title)
		} else {
			parts[i] = inactiveTabStyle.Render(title)
		}
	}
	return " " + strings.Join(parts, "  ")
}

// viewStatus renders the status bar: load state, cursor position,
// unloaded depth below the window, and the active filter.
func (m Model) viewStatus(tab *tabState) string {
	var parts []string

	v := tab.ctrl.View()
	switch {
	case tab.lastErr != nil:
		parts = append(parts, errorStyle.Render("fetch failed, press r to retry"))
	case tab.ctrl.Phase() == table.PhaseInitializing || tab.ctrl.InFlight() > 0:
		parts = append(parts, m.spinner.View()+" "+statusStyle.Render("loading"))
	}

	switch {
	case v.TotalKnown && v.Total == 0:
		parts = append(parts, statusStyle.Render("no rows"))
	case v.TotalKnown:
		parts = append(parts, statusStyle.Render(
			fmt.Sprintf("row %s of %s", groupDigits(tab.cursor+1), groupDigits(v.Total))))
	default:
		parts = append(parts, statusStyle.Render(
			fmt.Sprintf("row %s of ?", groupDigits(tab.cursor+1))))
	}

	if below := v.BottomSpacerPx / tab.rowHeight; below > 0 {
		parts = append(parts, statusStyle.Render(groupDigits(below)+" below window"))
	}

	if label := tab.filterLabel(); label != "" {
		parts = append(parts, filterStyle.Render("filter: "+label))
	}

	return " " + strings.Join(parts, statusStyle.Render(" · "))
}
