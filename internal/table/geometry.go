package table

// Geometry converts scroll state into row index windows. Extents are
// denominated in scroll units: pixels for a browser-like host, terminal
// rows for a TUI (RowHeight 1).
type Geometry struct {
	RowHeight  int // extent of one row, must be positive
	BufferRows int // extra rows materialized on each side of the viewport
}

// Range computes the half-open row window covering the viewport plus the
// buffer on both sides. scrollOff is the scroll offset and viewportExtent
// the viewport size, in the same units as RowHeight. total is the dataset
// length, or TotalUnknown; an unknown total clamps the lower bound only,
// so scrolling ahead of discovery still produces a valid window.
//
// A zero or negative viewport extent yields a minimal window (the buffer
// around the scroll position), never a crash or an unbounded one.
func (g Geometry) Range(scrollOff, viewportExtent, total int) Window {
	rh := g.RowHeight
	if rh <= 0 {
		rh = 1
	}
	if scrollOff < 0 {
		scrollOff = 0
	}
	if viewportExtent < 0 {
		viewportExtent = 0
	}

	start := scrollOff/rh - g.BufferRows
	end := ceilDiv(scrollOff+viewportExtent, rh) + g.BufferRows

	if start < 0 {
		start = 0
	}
	if total != TotalUnknown {
		if start > total {
			start = total
		}
		if end > total {
			end = total
		}
	}
	if end < start {
		end = start
	}
	return Window{Start: start, End: end}
}

// ceilDiv returns ceil(a/b) for a >= 0, b > 0.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
