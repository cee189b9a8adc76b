package table

import "context"

// PageRequest describes one page fetch against a Source.
type PageRequest struct {
	Offset  int
	Limit   int
	Filters map[string]string
}

// PageResult is a successfully fetched page. TotalKnown reports whether
// Total carries the dataset length; sources that only count rows on the
// first page leave it false elsewhere.
type PageResult struct {
	Rows       []Row
	Total      int
	TotalKnown bool
}

// Source fetches pages of rows. Defined here (the consumer) per Go
// convention: accept interfaces, return structs. Implementations must
// tolerate concurrent FetchPage calls; the engine keeps several pages in
// flight at once.
type Source interface {
	FetchPage(ctx context.Context, req PageRequest) (PageResult, error)
}

// Completion is the terminal outcome of one Fetch. Err is set on failure;
// the offset and generation echo the request so the cache can route and
// vet the result.
type Completion struct {
	Offset     int
	Limit      int
	Generation uint64
	Rows       []Row
	Total      int
	TotalKnown bool
	Err        error
}

// Fetch performs one page fetch when invoked. Fetches are built to run on
// their own goroutines; a Bubble Tea driver wraps one directly in a
// tea.Cmd.
type Fetch func() Completion

// Loader issues batch-aligned fetches for the uncovered parts of a
// window, suppressing duplicates through the cache's pending set.
type Loader struct {
	source    Source
	batchSize int
	filters   map[string]string
}

// NewLoader creates a Loader fetching batchSize rows per request.
func NewLoader(source Source, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Loader{source: source, batchSize: batchSize}
}

// BatchSize returns the configured rows-per-request.
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// SetFilters replaces the filter set attached to subsequent fetches. The
// map is copied; fetches already built keep the snapshot they were issued
// with.
func (l *Loader) SetFilters(filters map[string]string) {
	if len(filters) == 0 {
		l.filters = nil
		return
	}
	next := make(map[string]string, len(filters))
	for k, v := range filters {
		next[k] = v
	}
	l.filters = next
}

// EnsureCoverage walks the batch-aligned offsets covering w, from
// floor(Start/batchSize)*batchSize through floor(End/batchSize)*batchSize
// inclusive, and issues a fetch for every offset that is neither resident
// nor pending. Offsets at or past a known total are skipped. Each issued
// offset is marked pending under the cache's current generation before
// the fetch is returned, so overlapping coverage calls request a given
// offset at most once per generation.
func (l *Loader) EnsureCoverage(ctx context.Context, w Window, c *Cache) []Fetch {
	start := w.Start
	if start < 0 {
		start = 0
	}
	end := w.End
	if end < start {
		end = start
	}

	first := (start / l.batchSize) * l.batchSize
	last := (end / l.batchSize) * l.batchSize
	total, totalKnown := c.Total()

	var fetches []Fetch
	for off := first; off <= last; off += l.batchSize {
		if totalKnown && off >= total {
			break
		}
		if c.Has(off) || c.Pending(off) {
			continue
		}
		gen := c.MarkPending(off)
		fetches = append(fetches, l.fetch(ctx, off, gen))
	}
	return fetches
}

// fetch builds the closure performing one page request.
func (l *Loader) fetch(ctx context.Context, offset int, generation uint64) Fetch {
	req := PageRequest{Offset: offset, Limit: l.batchSize, Filters: l.filters}
	return func() Completion {
		res, err := l.source.FetchPage(ctx, req)
		if err != nil {
			return Completion{Offset: offset, Limit: req.Limit, Generation: generation, Err: err}
		}
		return Completion{
			Offset:     offset,
			Limit:      req.Limit,
			Generation: generation,
			Rows:       res.Rows,
			Total:      res.Total,
			TotalKnown: res.TotalKnown,
		}
	}
}
