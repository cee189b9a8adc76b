package table

import (
	"context"
	"errors"
	"testing"
)

func TestLoader_EnsureCoverageBatchAligned(t *testing.T) {
	src := newFakeSource(1000)
	l := NewLoader(src, 100)
	c := NewCache()

	fetches := l.EnsureCoverage(context.Background(), Window{150, 260}, c)

	if len(fetches) != 2 {
		t.Fatalf("got %d fetches, want 2", len(fetches))
	}
	for _, f := range fetches {
		comp := f()
		if comp.Err != nil {
			t.Fatalf("fetch failed: %v", comp.Err)
		}
	}
	offs := src.requestOffsets()
	if len(offs) != 2 || offs[0] != 100 || offs[1] != 200 {
		t.Errorf("request offsets = %v, want [100 200]", offs)
	}
	if req, _ := src.lastRequest(); req.Limit != 100 {
		t.Errorf("request limit = %d, want 100", req.Limit)
	}
}

func TestLoader_EnsureCoverageDedup(t *testing.T) {
	src := newFakeSource(1000)
	l := NewLoader(src, 100)
	c := NewCache()
	ctx := context.Background()

	first := l.EnsureCoverage(ctx, Window{0, 150}, c)
	if len(first) != 2 {
		t.Fatalf("first pass issued %d fetches, want 2", len(first))
	}

	// Overlapping window while both offsets are still pending: nothing new.
	second := l.EnsureCoverage(ctx, Window{50, 180}, c)
	if len(second) != 0 {
		t.Fatalf("second pass issued %d fetches, want 0 (all pending)", len(second))
	}

	// Commit one batch; a further pass still issues nothing for it.
	comp := first[0]()
	c.Commit(comp.Offset, comp.Generation, comp.Rows, comp.Total, comp.TotalKnown)
	third := l.EnsureCoverage(ctx, Window{0, 150}, c)
	if len(third) != 0 {
		t.Fatalf("third pass issued %d fetches, want 0 (cached or pending)", len(third))
	}
}

func TestLoader_SkipsOffsetsPastKnownTotal(t *testing.T) {
	src := newFakeSource(150)
	l := NewLoader(src, 100)
	c := NewCache()
	c.Commit(0, c.Generation(), rowsN(100), 150, true)

	fetches := l.EnsureCoverage(context.Background(), Window{0, 400}, c)

	if len(fetches) != 1 {
		t.Fatalf("got %d fetches, want 1 (only offset 100 exists)", len(fetches))
	}
	comp := fetches[0]()
	if comp.Offset != 100 {
		t.Errorf("fetched offset %d, want 100", comp.Offset)
	}
}

func TestLoader_EmptyWindowProbesOriginOnly(t *testing.T) {
	src := newFakeSource(1000)
	l := NewLoader(src, 100)
	c := NewCache()

	// The zero window is the initialization probe: exactly one fetch at
	// offset 0, which discovers the total.
	fetches := l.EnsureCoverage(context.Background(), Window{}, c)

	if len(fetches) != 1 {
		t.Fatalf("got %d fetches, want 1", len(fetches))
	}
	comp := fetches[0]()
	if comp.Offset != 0 {
		t.Errorf("probe offset = %d, want 0", comp.Offset)
	}
	if !comp.TotalKnown || comp.Total != 1000 {
		t.Errorf("probe total = %d known=%v, want 1000 known=true", comp.Total, comp.TotalKnown)
	}
}

func TestLoader_WindowEndOnBatchBoundary(t *testing.T) {
	src := newFakeSource(1000)
	l := NewLoader(src, 100)
	c := NewCache()

	// Coverage runs through the batch containing End inclusive, so an
	// aligned End pulls in one trailing batch.
	fetches := l.EnsureCoverage(context.Background(), Window{150, 200}, c)

	if len(fetches) != 2 {
		t.Fatalf("got %d fetches, want 2", len(fetches))
	}
	offs := []int{fetches[0]().Offset, fetches[1]().Offset}
	if offs[0] != 100 || offs[1] != 200 {
		t.Errorf("fetched offsets = %v, want [100 200]", offs)
	}
}

func TestLoader_FetchFailure(t *testing.T) {
	src := newFakeSource(1000)
	wantErr := errors.New("connection refused")
	src.failOffset(100, wantErr)
	l := NewLoader(src, 100)
	c := NewCache()

	fetches := l.EnsureCoverage(context.Background(), Window{100, 150}, c)
	if len(fetches) != 1 {
		t.Fatalf("got %d fetches, want 1", len(fetches))
	}

	comp := fetches[0]()
	if !errors.Is(comp.Err, wantErr) {
		t.Errorf("completion error = %v, want %v", comp.Err, wantErr)
	}
	if comp.Offset != 100 {
		t.Errorf("completion offset = %d, want 100", comp.Offset)
	}
	if comp.Generation != c.Generation() {
		t.Errorf("completion generation = %d, want %d", comp.Generation, c.Generation())
	}

	// The failure clears pending, so the next overlapping pass retries.
	c.Fail(comp.Offset, comp.Generation)
	src.fixOffset(100)
	retry := l.EnsureCoverage(context.Background(), Window{100, 150}, c)
	if len(retry) != 1 {
		t.Fatalf("retry pass issued %d fetches, want 1", len(retry))
	}
	if comp := retry[0](); comp.Err != nil {
		t.Errorf("retry failed: %v", comp.Err)
	}
}

func TestLoader_FiltersSnapshotPerFetch(t *testing.T) {
	src := newFakeSource(1000)
	l := NewLoader(src, 100)
	c := NewCache()
	l.SetFilters(map[string]string{"severity": "critical"})

	fetches := l.EnsureCoverage(context.Background(), Window{0, 50}, c)
	l.SetFilters(map[string]string{"severity": "warning"})

	// The fetch built before the filter change carries the old snapshot.
	fetches[0]()
	req, ok := src.lastRequest()
	if !ok {
		t.Fatal("no request recorded")
	}
	if got := req.Filters["severity"]; got != "critical" {
		t.Errorf("request filter severity = %q, want %q", got, "critical")
	}
}
