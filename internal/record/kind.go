// Package record defines the crawl dataset kinds, their typed records,
// and the per-kind line renderers used by the table views. The engine
// itself treats rows as opaque JSON; everything kind-specific lives here.
package record

import (
	"fmt"
	"strings"
)

// Kind identifies one dataset family served by a crawl source. Each kind
// carries its own wire name, records field, and rendering strategy, so
// adding a dataset means adding a Kind rather than branching in the view.
type Kind int

const (
	Overview Kind = iota
	InternalURLs
	ExternalURLs
	InternalLinks
	ExternalLinks
	Issues
)

// Kinds returns all dataset kinds in display order.
func Kinds() []Kind {
	return []Kind{Overview, InternalURLs, ExternalURLs, InternalLinks, ExternalLinks, Issues}
}

// String returns the wire name of the kind (also used for CLI flags).
func (k Kind) String() string {
	switch k {
	case Overview:
		return "overview"
	case InternalURLs:
		return "internal_urls"
	case ExternalURLs:
		return "external_urls"
	case InternalLinks:
		return "internal_links"
	case ExternalLinks:
		return "external_links"
	case Issues:
		return "issues"
	default:
		return "unknown"
	}
}

// Title returns the human-readable tab title.
func (k Kind) Title() string {
	switch k {
	case Overview:
		return "Overview"
	case InternalURLs:
		return "Internal URLs"
	case ExternalURLs:
		return "External URLs"
	case InternalLinks:
		return "Internal Links"
	case ExternalLinks:
		return "External Links"
	case Issues:
		return "Issues"
	default:
		return "Unknown"
	}
}

// Param returns the dataset identifier sent to the HTTP API.
func (k Kind) Param() string {
	return k.String()
}

// RecordsField returns the name of the envelope field carrying the
// record array for this kind. The crawl API names the array after the
// record family, not uniformly.
func (k Kind) RecordsField() string {
	switch k {
	case InternalLinks, ExternalLinks:
		return "links"
	case Issues:
		return "issues"
	default:
		return "urls"
	}
}

// ParseKind resolves a wire or flag name ("internal_urls",
// "internal-urls") to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, k := range Kinds() {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("record: unknown dataset kind %q", s)
}

// FilterPreset is one selectable filter for a dataset kind. Key and
// Value form the engine filter entry; an empty Key means unfiltered.
type FilterPreset struct {
	Label string
	Key   string
	Value string
}

// Filters returns the engine filter map for the preset, nil when the
// preset is the unfiltered one.
func (p FilterPreset) Filters() map[string]string {
	if p.Key == "" {
		return nil
	}
	return map[string]string{p.Key: p.Value}
}

// FilterPresets returns the selectable filters for the kind, starting
// with the unfiltered preset. URL kinds filter by status class, link
// kinds by follow state, issues by severity.
func (k Kind) FilterPresets() []FilterPreset {
	switch k {
	case Overview, InternalURLs, ExternalURLs:
		return []FilterPreset{
			{Label: "all"},
			{Label: "2xx", Key: "status_class", Value: "success"},
			{Label: "3xx", Key: "status_class", Value: "redirect"},
			{Label: "4xx", Key: "status_class", Value: "client_error"},
			{Label: "5xx", Key: "status_class", Value: "server_error"},
		}
	case InternalLinks, ExternalLinks:
		return []FilterPreset{
			{Label: "all"},
			{Label: "follow", Key: "nofollow", Value: "0"},
			{Label: "nofollow", Key: "nofollow", Value: "1"},
		}
	case Issues:
		return []FilterPreset{
			{Label: "all"},
			{Label: "errors", Key: "severity", Value: "error"},
			{Label: "warnings", Key: "severity", Value: "warning"},
			{Label: "info", Key: "severity", Value: "info"},
		}
	default:
		return []FilterPreset{{Label: "all"}}
	}
}
