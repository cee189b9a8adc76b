package table

import (
	"context"
	"io"
	"log/slog"
)

// Engine defaults, overridable per Controller via options.
const (
	DefaultBatchSize          = 100
	DefaultBufferRows         = 20
	DefaultMaxResidentBatches = 64
	DefaultEvictMargin        = 2
)

// Phase is the controller lifecycle state.
type Phase int

const (
	PhaseEmpty        Phase = iota // No data loaded, nothing in flight.
	PhaseInitializing              // Batch-0 probe in flight, total not yet discovered.
	PhaseReady                     // Serving scroll events and completions.
	PhaseResetting                 // Invalidation in progress, about to re-probe.
	PhaseClosed                    // Torn down; all input ignored.
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseResetting:
		return "resetting"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Controller drives the fetch/reconcile cycle for one dataset. It owns
// the cache, the loader, and the current scroll metrics, hands out fetch
// closures for the driver to run, and rebuilds the view after every
// state change so committed rows become visible without further input.
//
// All methods must be called from a single goroutine (e.g., the Bubble
// Tea update loop). Only the returned Fetch closures may run elsewhere.
type Controller struct {
	geom        Geometry
	batchSize   int
	maxResident int
	evictMargin int
	filters     map[string]string
	logger      *slog.Logger

	cache  *Cache
	loader *Loader

	phase          Phase
	window         Window
	scrollOff      int
	viewportExtent int
	view           View
}

// Option configures a Controller.
type Option func(*Controller)

// WithGeometry sets the row height and buffer used for window math.
func WithGeometry(g Geometry) Option {
	return func(c *Controller) { c.geom = g }
}

// WithBatchSize sets the rows fetched per request.
func WithBatchSize(n int) Option {
	return func(c *Controller) { c.batchSize = n }
}

// WithMaxResidentBatches caps how many batches stay cached; batches
// beyond the cap are evicted LRU-first once they leave the window margin.
func WithMaxResidentBatches(n int) Option {
	return func(c *Controller) { c.maxResident = n }
}

// WithEvictMargin sets how many batches on each side of the window are
// protected from eviction.
func WithEvictMargin(n int) Option {
	return func(c *Controller) { c.evictMargin = n }
}

// WithFilters sets the initial filter set attached to fetches.
func WithFilters(filters map[string]string) Option {
	return func(c *Controller) { c.filters = filters }
}

// WithLogger sets the logger for fetch failures and dropped completions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a Controller over the given source. The controller starts
// in PhaseEmpty; call Start to issue the probe that discovers the
// dataset length.
func New(source Source, opts ...Option) *Controller {
	c := &Controller{
		geom:        Geometry{RowHeight: 1, BufferRows: DefaultBufferRows},
		batchSize:   DefaultBatchSize,
		maxResident: DefaultMaxResidentBatches,
		evictMargin: DefaultEvictMargin,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:       NewCache(),
		phase:       PhaseEmpty,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	c.loader = NewLoader(source, c.batchSize)
	c.loader.SetFilters(c.filters)
	c.view = View{Total: TotalUnknown}
	return c
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// View returns the most recent view snapshot.
func (c *Controller) View() View {
	return c.view
}

// Window returns the current row window.
func (c *Controller) Window() Window {
	return c.window
}

// InFlight returns the number of fetches currently pending.
func (c *Controller) InFlight() int {
	if c.phase == PhaseClosed {
		return 0
	}
	return c.cache.PendingCount()
}

// ResidentBatches returns the number of batches held in the cache.
func (c *Controller) ResidentBatches() int {
	if c.phase == PhaseClosed {
		return 0
	}
	return c.cache.Len()
}

// Start issues the batch-0 probe that discovers the dataset length,
// moving the controller from Empty to Initializing. Start on a non-empty
// controller is a no-op.
func (c *Controller) Start(ctx context.Context) []Fetch {
	if c.phase != PhaseEmpty {
		return nil
	}
	c.phase = PhaseInitializing
	return c.loader.EnsureCoverage(ctx, Window{}, c.cache)
}

// Resize records a new viewport extent. In Ready the window is
// recomputed immediately; in earlier phases only the metric is recorded,
// and the initial window picks it up once the probe lands.
func (c *Controller) Resize(ctx context.Context, viewportExtent int) []Fetch {
	if c.phase == PhaseClosed {
		return nil
	}
	if viewportExtent < 0 {
		viewportExtent = 0
	}
	c.viewportExtent = viewportExtent
	if c.phase != PhaseReady {
		return nil
	}
	return c.refresh(ctx)
}

// Scroll records a new scroll offset. In Ready it recomputes the window,
// issues fetches for newly exposed batches, rebuilds the view (loaded
// rows interleaved with gaps for batches still in flight), and evicts
// batches that fell outside the widened window. Scrolls arriving before
// the first batch lands only update the stored metrics.
func (c *Controller) Scroll(ctx context.Context, scrollOff int) []Fetch {
	if c.phase == PhaseClosed {
		return nil
	}
	if scrollOff < 0 {
		scrollOff = 0
	}
	c.scrollOff = scrollOff
	if c.phase != PhaseReady {
		return nil
	}
	return c.refresh(ctx)
}

// Apply routes a fetch completion into the cache.
//
// Failures are logged and leave the batch absent so the next coverage
// pass over an overlapping window retries it; no fetches are issued from
// the failure itself, which keeps a failing offset from hot-looping.
// Stale completions (generation older than current) are dropped whole.
// A successful commit always rebuilds the view, so newly landed rows
// become visible with no further scrolling, and may return follow-up
// fetches: the remainder of the initial window, or batches uncovered
// because the total was just discovered. The first commit out of
// Initializing computes the initial window from the live scroll metrics
// rather than assuming the origin.
func (c *Controller) Apply(ctx context.Context, comp Completion) []Fetch {
	if c.phase == PhaseClosed || c.phase == PhaseEmpty {
		return nil
	}
	if comp.Err != nil {
		c.logger.Warn("batch fetch failed",
			"offset", comp.Offset, "generation", comp.Generation, "error", comp.Err)
		c.cache.Fail(comp.Offset, comp.Generation)
		return nil
	}
	if !c.cache.Commit(comp.Offset, comp.Generation, comp.Rows, comp.Total, comp.TotalKnown) {
		c.logger.Debug("stale completion dropped",
			"offset", comp.Offset, "generation", comp.Generation, "current", c.cache.Generation())
		return nil
	}
	if c.phase == PhaseInitializing {
		c.phase = PhaseReady
	}
	return c.refresh(ctx)
}

// Reset discards all cached state and starts over: the generation is
// bumped so in-flight completions land stale, scroll returns to the
// origin, and a fresh batch-0 probe is issued. The controller passes
// through Resetting and comes out Initializing, exactly as on first
// start.
func (c *Controller) Reset(ctx context.Context) []Fetch {
	if c.phase == PhaseClosed || c.phase == PhaseEmpty {
		return nil
	}
	c.phase = PhaseResetting
	c.cache.InvalidateAll()
	c.scrollOff = 0
	c.window = Window{}
	c.view = View{Total: TotalUnknown, Generation: c.cache.Generation()}
	c.phase = PhaseInitializing
	return c.loader.EnsureCoverage(ctx, Window{}, c.cache)
}

// SetFilters replaces the active filter set and resets. The caller passes
// the full filter map explicitly; there is no implicit toggle state to
// consult. Setting filters on an Empty controller only records them for
// Start.
func (c *Controller) SetFilters(ctx context.Context, filters map[string]string) []Fetch {
	if c.phase == PhaseClosed {
		return nil
	}
	c.loader.SetFilters(filters)
	if c.phase == PhaseEmpty {
		return nil
	}
	return c.Reset(ctx)
}

// Teardown releases all cached state and closes the controller. It is
// idempotent. In-flight fetches may still complete afterwards; their
// results are ignored.
func (c *Controller) Teardown() {
	if c.phase == PhaseClosed {
		return
	}
	c.cache.InvalidateAll()
	c.view = View{Total: TotalUnknown}
	c.window = Window{}
	c.phase = PhaseClosed
}

// refresh recomputes the window from the current scroll metrics, ensures
// fetch coverage for it, rebuilds the view, and evicts batches outside
// the window margin.
func (c *Controller) refresh(ctx context.Context) []Fetch {
	total, _ := c.cache.Total()
	c.window = c.geom.Range(c.scrollOff, c.viewportExtent, total)
	fetches := c.loader.EnsureCoverage(ctx, c.window, c.cache)
	c.view = BuildView(c.window, c.cache, c.geom, c.batchSize)
	c.cache.EvictOutside(c.window, c.batchSize, c.evictMargin, c.maxResident)
	return fetches
}
