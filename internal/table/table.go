// Package table implements a windowed, incrementally loaded table engine
// for browsing very large paginated datasets with bounded memory. Rows are
// fetched in fixed-size batches keyed by offset, only the batches covering
// the visible window (plus a buffer) are kept resident, and everything
// outside the window is represented by spacer extents so scrollbar
// geometry stays correct.
//
// The engine is UI-agnostic: a driver feeds it scroll offsets and viewport
// sizes, runs the fetch closures it hands out, and routes the resulting
// completions back in. All engine state is confined to a single goroutine
// (for example the Bubble Tea update loop); only Fetch closures run
// elsewhere, and they touch nothing but the data source.
package table

// Row is one dataset record. The engine treats rows as opaque values;
// sources choose the concrete representation. The crawlview sources
// produce json.RawMessage so decoding is deferred to render time.
type Row any

// TotalUnknown marks a dataset length that has not been discovered yet.
const TotalUnknown = -1

// Window is a half-open range of row indexes [Start, End).
type Window struct {
	Start int
	End   int
}

// Len returns the number of row indexes in the window.
func (w Window) Len() int {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

// Empty reports whether the window contains no row indexes.
func (w Window) Empty() bool {
	return w.End <= w.Start
}
