package table

// Slot is one renderable row position inside a view window. Loaded
// reports whether Row holds a fetched record; unloaded slots render as
// gap placeholders.
type Slot struct {
	Index  int
	Row    Row
	Loaded bool
}

// View is a snapshot of the window for rendering: one slot per row index
// in the window, plus spacer extents standing in for the unmaterialized
// rows above and below so total scroll geometry stays correct. Once the
// total is known, TopSpacerPx + len(Slots)*rowHeight + BottomSpacerPx
// equals the full content extent.
type View struct {
	Window         Window
	Slots          []Slot
	TopSpacerPx    int
	BottomSpacerPx int
	Total          int
	TotalKnown     bool
	Generation     uint64
}

// BuildView assembles the view for w from whatever is resident in the
// cache. Rows whose batch is absent, or that fall past the end of a short
// terminal batch, come out as gaps; loaded and gap slots interleave
// freely. The bottom spacer is zero while the total is unknown.
func BuildView(w Window, c *Cache, g Geometry, batchSize int) View {
	rh := g.RowHeight
	if rh <= 0 {
		rh = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	total, totalKnown := c.Total()
	v := View{
		Window:     w,
		Total:      total,
		TotalKnown: totalKnown,
		Generation: c.Generation(),
	}

	if n := w.Len(); n > 0 {
		v.Slots = make([]Slot, 0, n)
	}
	cur := Batch{}
	curOff := -1
	curOK := false
	for i := w.Start; i < w.End; i++ {
		off := (i / batchSize) * batchSize
		if off != curOff {
			cur, curOK = c.Get(off)
			curOff = off
		}
		slot := Slot{Index: i}
		if curOK {
			if j := i - off; j >= 0 && j < len(cur.Rows) {
				slot.Row = cur.Rows[j]
				slot.Loaded = true
			}
		}
		v.Slots = append(v.Slots, slot)
	}

	if w.Start > 0 {
		v.TopSpacerPx = w.Start * rh
	}
	if totalKnown && total > w.End {
		v.BottomSpacerPx = (total - w.End) * rh
	}
	return v
}

// LoadedCount returns the number of slots holding fetched rows.
func (v View) LoadedCount() int {
	n := 0
	for _, s := range v.Slots {
		if s.Loaded {
			n++
		}
	}
	return n
}
