package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smileynet/crawlview/internal/record"
	"github.com/smileynet/crawlview/internal/table"
)

// DefaultTimeout bounds a single page request against the crawl API.
const DefaultTimeout = 15 * time.Second

// HTTP fetches dataset pages from a running crawl API server.
//
// Requests take the form
//
//	GET {base}/api/crawl-data?dataset={kind}&offset=N&limit=N
//
// plus an optional session id and any active filter parameters. The
// response is a JSON envelope
//
//	{"success": true, "total": 52344, "urls": [...]}
//
// where the record array is named per dataset kind. Rows are kept as raw
// JSON and decoded lazily at render time.
type HTTP struct {
	baseURL string
	kind    record.Kind
	session string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithSession scopes requests to a crawl session id.
func WithSession(id string) HTTPOption {
	return func(h *HTTP) {
		h.session = id
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		if d > 0 {
			h.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client, for tests or custom
// transports. It overrides any earlier WithTimeout.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithLogger sets the logger for request failures. The default discards.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTP returns an HTTP source for one dataset kind.
func NewHTTP(baseURL string, kind record.Kind, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		kind:    kind,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchPage implements table.Source.
func (h *HTTP) FetchPage(ctx context.Context, req table.PageRequest) (table.PageResult, error) {
	pageURL := h.pageURL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return table.PageResult{}, &ProtocolError{Message: fmt.Sprintf("building request for %s: %v", pageURL, err)}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.logger.Warn("crawl api unreachable", "url", pageURL, "error", err)
		return table.PageResult{}, &TransportError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return table.PageResult{}, &ProtocolError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
		}
	}

	return decodeEnvelope(resp.Body, h.kind.RecordsField())
}

// pageURL builds the crawl-data query for one page request.
func (h *HTTP) pageURL(req table.PageRequest) string {
	q := url.Values{}
	q.Set("dataset", h.kind.Param())
	q.Set("offset", strconv.Itoa(req.Offset))
	q.Set("limit", strconv.Itoa(req.Limit))
	if h.session != "" {
		q.Set("session", h.session)
	}
	for key, value := range req.Filters {
		q.Set(key, value)
	}
	return h.baseURL + "/api/crawl-data?" + q.Encode()
}

// decodeEnvelope unpacks the crawl API response wrapper. The record
// array field is kind-dependent, so the envelope is read as raw fields
// and the array picked out by name.
func decodeEnvelope(r io.Reader, recordsField string) (table.PageResult, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return table.PageResult{}, &ProtocolError{Message: fmt.Sprintf("decoding envelope: %v", err)}
	}

	var success bool
	if data, ok := fields["success"]; !ok || json.Unmarshal(data, &success) != nil || !success {
		msg := "server reported failure"
		if data, ok := fields["error"]; ok {
			var s string
			if json.Unmarshal(data, &s) == nil && s != "" {
				msg = s
			}
		}
		return table.PageResult{}, &ProtocolError{Message: msg}
	}

	var res table.PageResult
	if data, ok := fields["total"]; ok {
		var total int
		if err := json.Unmarshal(data, &total); err != nil {
			return table.PageResult{}, &ProtocolError{Message: fmt.Sprintf("invalid total: %v", err)}
		}
		if total >= 0 {
			res.Total = total
			res.TotalKnown = true
		}
	}

	data, ok := fields[recordsField]
	if !ok {
		return table.PageResult{}, &ProtocolError{Message: fmt.Sprintf("envelope missing %q field", recordsField)}
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return table.PageResult{}, &ProtocolError{Message: fmt.Sprintf("invalid %q field: %v", recordsField, err)}
	}

	rows := make([]table.Row, len(records))
	for i, rec := range records {
		rows[i] = rec
	}
	res.Rows = rows
	return res, nil
}
