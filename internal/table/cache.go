package table

// Batch holds the rows fetched for one batch-aligned offset. Rows may be
// shorter than the configured batch size at the end of the dataset.
type Batch struct {
	Rows []Row
}

// Cache stores fetched batches keyed by batch-aligned row offset, the
// pending set of in-flight offsets, the discovered dataset total, and the
// generation counter used to reject completions from before a reset.
// It is not safe for concurrent use; callers must confine access to a
// single goroutine (e.g., the Bubble Tea update loop).
type Cache struct {
	batches map[int]Batch
	touched map[int]uint64 // LRU tick per resident offset
	pending map[int]struct{}

	total      int
	totalKnown bool
	generation uint64
	tick       uint64
}

// NewCache creates an empty cache at generation zero.
func NewCache() *Cache {
	return &Cache{
		batches: make(map[int]Batch),
		touched: make(map[int]uint64),
		pending: make(map[int]struct{}),
		total:   TotalUnknown,
	}
}

// Get returns the batch at the given offset, marking it recently used.
func (c *Cache) Get(offset int) (Batch, bool) {
	b, ok := c.batches[offset]
	if ok {
		c.tick++
		c.touched[offset] = c.tick
	}
	return b, ok
}

// Has reports whether a batch is resident at the given offset without
// refreshing its LRU position.
func (c *Cache) Has(offset int) bool {
	_, ok := c.batches[offset]
	return ok
}

// Pending reports whether a fetch for the given offset is in flight.
func (c *Cache) Pending(offset int) bool {
	_, ok := c.pending[offset]
	return ok
}

// PendingCount returns the number of in-flight offsets.
func (c *Cache) PendingCount() int {
	return len(c.pending)
}

// MarkPending records an in-flight fetch for the given offset and returns
// the generation it was issued under.
func (c *Cache) MarkPending(offset int) uint64 {
	c.pending[offset] = struct{}{}
	return c.generation
}

// Commit stores a fetched batch. Completions carrying a generation older
// than the cache's current one are rejected wholesale, so a response that
// raced a reset can never repopulate cleared state. The reported total is
// adopted only on first discovery; it never shrinks outside
// InvalidateAll.
func (c *Cache) Commit(offset int, generation uint64, rows []Row, total int, totalKnown bool) bool {
	if generation < c.generation {
		return false
	}
	delete(c.pending, offset)
	c.tick++
	c.batches[offset] = Batch{Rows: rows}
	c.touched[offset] = c.tick
	if !c.totalKnown && totalKnown && total >= 0 {
		c.total = total
		c.totalKnown = true
	}
	return true
}

// Fail clears the pending mark for a failed fetch so the offset becomes
// eligible for retry on the next coverage pass. Failures from older
// generations are ignored: the pending mark they would clear belongs to a
// newer fetch.
func (c *Cache) Fail(offset int, generation uint64) {
	if generation < c.generation {
		return
	}
	delete(c.pending, offset)
}

// Total returns the discovered dataset length, or TotalUnknown and false
// before the first commit that carries one.
func (c *Cache) Total() (int, bool) {
	if !c.totalKnown {
		return TotalUnknown, false
	}
	return c.total, true
}

// Generation returns the current generation counter.
func (c *Cache) Generation() uint64 {
	return c.generation
}

// Len returns the number of resident batches.
func (c *Cache) Len() int {
	return len(c.batches)
}

// InvalidateAll drops all batches, pending marks, and the discovered
// total, and increments the generation so completions issued before the
// call land stale.
func (c *Cache) InvalidateAll() {
	c.batches = make(map[int]Batch)
	c.touched = make(map[int]uint64)
	c.pending = make(map[int]struct{})
	c.total = TotalUnknown
	c.totalKnown = false
	c.generation++
}

// EvictOutside evicts least-recently-used batches lying entirely outside
// the window widened by margin batches on each side, until at most
// maxResident batches remain. Batches overlapping the protected range are
// never evicted, even when they alone exceed the limit. Returns the
// number of batches evicted.
func (c *Cache) EvictOutside(w Window, batchSize, marginBatches, maxResident int) int {
	if batchSize <= 0 || maxResident < 0 {
		return 0
	}
	lo := w.Start - marginBatches*batchSize
	hi := w.End + marginBatches*batchSize

	evicted := 0
	for len(c.batches) > maxResident {
		victim := 0
		victimTick := uint64(0)
		found := false
		for off := range c.batches {
			if off < hi && off+batchSize > lo {
				continue // overlaps protected range
			}
			if t := c.touched[off]; !found || t < victimTick {
				victim, victimTick, found = off, t, true
			}
		}
		if !found {
			break
		}
		delete(c.batches, victim)
		delete(c.touched, victim)
		evicted++
	}
	return evicted
}
