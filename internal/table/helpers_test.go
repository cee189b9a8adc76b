package table

import (
	"context"
	"fmt"
	"sync"
)

// fakeSource serves synthetic string rows ("row-42") and records every
// request it sees. The total is reported on offset-0 requests only, the
// way the real sources count.
type fakeSource struct {
	mu       sync.Mutex
	total    int
	failing  map[int]error
	requests []PageRequest
}

func newFakeSource(total int) *fakeSource {
	return &fakeSource{total: total, failing: make(map[int]error)}
}

func (s *fakeSource) FetchPage(_ context.Context, req PageRequest) (PageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err, ok := s.failing[req.Offset]; ok {
		return PageResult{}, err
	}
	var rows []Row
	for i := req.Offset; i < req.Offset+req.Limit && i < s.total; i++ {
		rows = append(rows, fmt.Sprintf("row-%d", i))
	}
	return PageResult{Rows: rows, Total: s.total, TotalKnown: req.Offset == 0}, nil
}

// failOffset makes requests for the given offset fail with err.
func (s *fakeSource) failOffset(offset int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[offset] = err
}

// fixOffset clears a previously injected failure.
func (s *fakeSource) fixOffset(offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failing, offset)
}

// requestOffsets returns the offsets of all requests seen, in order.
func (s *fakeSource) requestOffsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	offs := make([]int, len(s.requests))
	for i, r := range s.requests {
		offs[i] = r.Offset
	}
	return offs
}

// requestCount returns how many requests the source has seen.
func (s *fakeSource) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// lastRequest returns the most recent request, or false if none.
func (s *fakeSource) lastRequest() (PageRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return PageRequest{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// settle runs fetches and applies their completions until none remain,
// mimicking the driver's event loop.
func settle(ctx context.Context, c *Controller, fetches []Fetch) {
	for len(fetches) > 0 {
		var next []Fetch
		for _, f := range fetches {
			next = append(next, c.Apply(ctx, f())...)
		}
		fetches = next
	}
}
