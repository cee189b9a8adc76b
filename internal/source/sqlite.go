package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/smileynet/crawlview/internal/record"
	"github.com/smileynet/crawlview/internal/table"
)

// DB is a handle on a crawl database file. It is opened read-only so the
// crawler can keep writing while its results are browsed, and it is
// shared by the per-kind sources created from it.
type DB struct {
	db   *sql.DB
	path string
}

// OpenDB opens the crawl database at path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("source: opening %s: %w", path, err)
	}
	return &DB{db: db, path: path}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// LatestCrawlID returns the id of the most recent crawl in the file.
func (d *DB) LatestCrawlID(ctx context.Context) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, "SELECT id FROM crawls ORDER BY id DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("source: no crawls in %s", d.path)
	}
	if err != nil {
		return 0, &TransportError{URL: d.path, Err: err}
	}
	return id, nil
}

// Source returns a paginated view over one dataset kind of one crawl.
func (d *DB) Source(kind record.Kind, crawlID int64) *SQLite {
	return &SQLite{db: d.db, path: d.path, kind: kind, crawlID: crawlID}
}

// SQLite serves dataset pages straight from a crawl database. Rows are
// ordered by insertion id, which is stable across requests, and the
// row count is computed only for the first page since counting a large
// crawl is far more expensive than slicing it.
type SQLite struct {
	db      *sql.DB
	path    string
	kind    record.Kind
	crawlID int64
}

const (
	urlColumns   = "url, status_code, content_type, size, is_internal, depth, title, meta_description, h1, word_count, internal_links, external_links, response_time, crawled_at"
	linkColumns  = "source_url, target_url, anchor_text, is_internal, is_nofollow, target_status, placement, scope"
	issueColumns = "url, type, category, issue, details, severity"
)

// FetchPage implements table.Source.
func (s *SQLite) FetchPage(ctx context.Context, req table.PageRequest) (table.PageResult, error) {
	where, args := s.predicate(req.Filters)

	var res table.PageResult
	if req.Offset == 0 {
		countQuery := "SELECT COUNT(*) FROM " + s.tableName() + where
		if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&res.Total); err != nil {
			return table.PageResult{}, &TransportError{URL: s.path, Err: err}
		}
		res.TotalKnown = true
	}

	query := "SELECT " + s.columns() + " FROM " + s.tableName() + where + " ORDER BY id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, req.Limit, req.Offset)...)
	if err != nil {
		return table.PageResult{}, &TransportError{URL: s.path, Err: err}
	}
	defer rows.Close()

	switch s.kind {
	case record.InternalLinks, record.ExternalLinks:
		res.Rows, err = scanLinkRows(rows)
	case record.Issues:
		res.Rows, err = scanIssueRows(rows)
	default:
		res.Rows, err = scanURLRows(rows)
	}
	if err != nil {
		return table.PageResult{}, &ProtocolError{Message: fmt.Sprintf("reading %s rows: %v", s.kind, err)}
	}
	return res, nil
}

func (s *SQLite) tableName() string {
	switch s.kind {
	case record.InternalLinks, record.ExternalLinks:
		return "crawl_links"
	case record.Issues:
		return "crawl_issues"
	default:
		return "crawled_urls"
	}
}

func (s *SQLite) columns() string {
	switch s.kind {
	case record.InternalLinks, record.ExternalLinks:
		return linkColumns
	case record.Issues:
		return issueColumns
	default:
		return urlColumns
	}
}

// predicate assembles the WHERE clause for the kind plus any active
// filters. Filter keys that do not apply to the kind are ignored rather
// than turned into broken SQL.
func (s *SQLite) predicate(filters map[string]string) (string, []any) {
	where := " WHERE crawl_id = ?"
	args := []any{s.crawlID}

	switch s.kind {
	case record.InternalURLs, record.InternalLinks:
		where += " AND is_internal = 1"
	case record.ExternalURLs, record.ExternalLinks:
		where += " AND is_internal = 0"
	}

	switch s.kind {
	case record.Overview, record.InternalURLs, record.ExternalURLs:
		if lo, hi, ok := statusRange(filters["status_class"]); ok {
			where += " AND status_code BETWEEN ? AND ?"
			args = append(args, lo, hi)
		}
	case record.InternalLinks, record.ExternalLinks:
		if v, err := strconv.Atoi(filters["nofollow"]); err == nil {
			where += " AND is_nofollow = ?"
			args = append(args, v)
		}
	case record.Issues:
		if v := filters["severity"]; v != "" {
			where += " AND severity = ?"
			args = append(args, v)
		}
	}
	return where, args
}

// statusRange maps a status class filter to its code range.
func statusRange(class string) (lo, hi int, ok bool) {
	switch class {
	case "success":
		return 200, 299, true
	case "redirect":
		return 300, 399, true
	case "client_error":
		return 400, 499, true
	case "server_error":
		return 500, 599, true
	default:
		return 0, 0, false
	}
}

// Rows come back re-marshalled as raw JSON so both backends hand the
// engine the same shape and the renderers decode them identically.

func scanURLRows(rows *sql.Rows) ([]table.Row, error) {
	var out []table.Row
	for rows.Next() {
		var (
			u, contentType, title, meta, h1, crawledAt sql.NullString
			status, size, depth, words                 sql.NullInt64
			internal, intLinks, extLinks               sql.NullInt64
			respTime                                   sql.NullFloat64
		)
		if err := rows.Scan(&u, &status, &contentType, &size, &internal, &depth,
			&title, &meta, &h1, &words, &intLinks, &extLinks, &respTime, &crawledAt); err != nil {
			return nil, err
		}
		rec := record.URLRecord{
			URL:             u.String,
			StatusCode:      int(status.Int64),
			ContentType:     contentType.String,
			Size:            size.Int64,
			IsInternal:      record.Flag(internal.Int64 != 0),
			Depth:           int(depth.Int64),
			Title:           title.String,
			MetaDescription: meta.String,
			H1:              h1.String,
			WordCount:       int(words.Int64),
			InternalLinks:   int(intLinks.Int64),
			ExternalLinks:   int(extLinks.Int64),
			ResponseTime:    respTime.Float64,
			CrawledAt:       crawledAt.String,
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

func scanLinkRows(rows *sql.Rows) ([]table.Row, error) {
	var out []table.Row
	for rows.Next() {
		var (
			src, target, anchor, placement, scope sql.NullString
			internal, nofollow, status            sql.NullInt64
		)
		if err := rows.Scan(&src, &target, &anchor, &internal, &nofollow, &status, &placement, &scope); err != nil {
			return nil, err
		}
		rec := record.LinkRecord{
			SourceURL:    src.String,
			TargetURL:    target.String,
			AnchorText:   anchor.String,
			IsInternal:   record.Flag(internal.Int64 != 0),
			IsNofollow:   record.Flag(nofollow.Int64 != 0),
			TargetStatus: int(status.Int64),
			Placement:    placement.String,
			Scope:        scope.String,
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

func scanIssueRows(rows *sql.Rows) ([]table.Row, error) {
	var out []table.Row
	for rows.Next() {
		var u, typ, category, issue, details, severity sql.NullString
		if err := rows.Scan(&u, &typ, &category, &issue, &details, &severity); err != nil {
			return nil, err
		}
		rec := record.IssueRecord{
			URL:      u.String,
			Type:     typ.String,
			Category: category.String,
			Issue:    issue.String,
			Details:  details.String,
			Severity: severity.String,
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}
