package record

import (
	"bytes"
	"fmt"
)

// Flag is a boolean that also accepts 0/1 JSON numbers, which is how
// SQLite-backed crawl APIs serialize their boolean columns. It marshals
// back to 0/1 so rows round-trip in the wire shape.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		return fmt.Errorf("record: invalid flag value %s", data)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// URLRecord is one crawled page, the row shape of the overview and URL
// datasets. Field names mirror the crawled_urls columns and the API
// payload.
type URLRecord struct {
	URL             string  `json:"url"`
	StatusCode      int     `json:"status_code"`
	ContentType     string  `json:"content_type"`
	Size            int64   `json:"size"`
	IsInternal      Flag    `json:"is_internal"`
	Depth           int     `json:"depth"`
	Title           string  `json:"title"`
	MetaDescription string  `json:"meta_description"`
	H1              string  `json:"h1"`
	WordCount       int     `json:"word_count"`
	InternalLinks   int     `json:"internal_links"`
	ExternalLinks   int     `json:"external_links"`
	ResponseTime    float64 `json:"response_time"`
	CrawledAt       string  `json:"crawled_at"`
}

// LinkRecord is one edge of the crawl link graph, the row shape of the
// link datasets.
type LinkRecord struct {
	SourceURL    string `json:"source_url"`
	TargetURL    string `json:"target_url"`
	AnchorText   string `json:"anchor_text"`
	IsInternal   Flag   `json:"is_internal"`
	IsNofollow   Flag   `json:"is_nofollow"`
	TargetStatus int    `json:"target_status"`
	Placement    string `json:"placement"`
	Scope        string `json:"scope"`
}

// IssueRecord is one detected crawl issue. Severity is one of "error",
// "warning", or "info".
type IssueRecord struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Issue    string `json:"issue"`
	Details  string `json:"details"`
	Severity string `json:"severity"`
}
