// Package browse implements the crawl dataset browser TUI: one tab per
// dataset kind, each backed by its own windowed table engine. Engine
// state is only touched from the Bubble Tea update loop; page fetches
// run as commands and report back as BatchMsg values.
package browse

import (
	"github.com/smileynet/crawlview/internal/record"
	"github.com/smileynet/crawlview/internal/table"
)

// Mode represents the current browser view mode.
type Mode int

const (
	ModeTable  Mode = iota // Scrolling the active dataset tab.
	ModeDetail             // Full-screen inspection of a single row.
)

// SourceProvider supplies the paginated source backing each dataset kind.
type SourceProvider interface {
	SourceFor(kind record.Kind) table.Source
}

// BatchMsg carries a finished page fetch back into the update loop.
// Kind routes it to the tab whose engine issued the fetch.
type BatchMsg struct {
	Kind       record.Kind
	Completion table.Completion
}
