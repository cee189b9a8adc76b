package browse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/crawlview/internal/record"
	"github.com/smileynet/crawlview/internal/table"
)

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j
		} else {
			out = append(out, s[i])
			i++
		}
	}
	return string(out)
}

// containsPlainText checks if s contains sub after stripping ANSI escapes.
func containsPlainText(s, sub string) bool {
	return strings.Contains(stripANSI(s), sub)
}

// execBatch executes a tea.Cmd, handling both single commands and batch
// commands. It returns all resulting messages. Spinner ticks are skipped
// to avoid infinite recursion.
func execBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			if c != nil {
				result := c()
				// Skip spinner ticks to avoid recursion.
				if _, isTick := result.(spinner.TickMsg); !isTick {
					msgs = append(msgs, result)
				}
			}
		}
		return msgs
	}
	if _, isTick := msg.(spinner.TickMsg); isTick {
		return nil
	}
	return []tea.Msg{msg}
}

// settle drives the model until no commands remain, feeding every
// produced message back through Update.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := execBatch(t, cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		if _, isQuit := msg.(tea.QuitMsg); isQuit {
			continue
		}
		model, next := m.Update(msg)
		m = model.(Model)
		queue = append(queue, execBatch(t, next)...)
	}
	return m
}

// stubSource serves synthetic pages for one dataset kind. The total is
// reported only on the first page, like the real backends.
type stubSource struct {
	mu       sync.Mutex
	total    int
	fail     bool
	requests []table.PageRequest
}

func (s *stubSource) FetchPage(ctx context.Context, req table.PageRequest) (table.PageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	if s.fail {
		return table.PageResult{}, errors.New("stub fetch failure")
	}

	var res table.PageResult
	if req.Offset == 0 {
		res.Total = s.total
		res.TotalKnown = true
	}
	for i := 0; i < req.Limit && req.Offset+i < s.total; i++ {
		idx := req.Offset + i
		raw := fmt.Sprintf(`{"url": "https://example.com/page-%d", "status_code": 200}`, idx)
		res.Rows = append(res.Rows, table.Row(json.RawMessage(raw)))
	}
	return res, nil
}

func (s *stubSource) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *stubSource) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubSource) lastRequest() table.PageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return table.PageRequest{}
	}
	return s.requests[len(s.requests)-1]
}

// stubProvider hands out one stubSource per dataset kind.
type stubProvider struct {
	sources map[record.Kind]*stubSource
}

func newStubProvider(total int) *stubProvider {
	p := &stubProvider{sources: map[record.Kind]*stubSource{}}
	for _, kind := range record.Kinds() {
		p.sources[kind] = &stubSource{total: total}
	}
	return p
}

func (p *stubProvider) SourceFor(kind record.Kind) table.Source {
	return p.sources[kind]
}

// loadedModel builds a model over a stub provider, runs Init, and
// applies an 80x24 window so the first tab is ready with data.
func loadedModel(t *testing.T, provider *stubProvider) Model {
	t.Helper()
	m := New(provider)
	m = settle(t, m, m.Init())
	model, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return settle(t, model.(Model), cmd)
}
