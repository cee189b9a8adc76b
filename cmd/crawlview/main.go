package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/smileynet/crawlview/internal/browse"
	"github.com/smileynet/crawlview/internal/config"
	"github.com/smileynet/crawlview/internal/record"
	"github.com/smileynet/crawlview/internal/source"
	"github.com/smileynet/crawlview/internal/table"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for crawlview.
type CLI struct {
	Version kong.VersionFlag `help:"Show version." short:"V"`
	Browse  BrowseCmd        `cmd:"" help:"Browse crawl datasets interactively."`
	Peek    PeekCmd          `cmd:"" help:"Print one page of a dataset as plain text."`
}

// BrowseCmd opens the interactive dataset browser TUI.
type BrowseCmd struct {
	Endpoint string `help:"Base URL of a running crawl server." placeholder:"URL" xor:"backend"`
	DB       string `help:"Path to a crawl database file." type:"path" xor:"backend"`
	Session  string `help:"Crawl server session ID."`
	CrawlID  int64  `help:"Database crawl to browse; 0 selects the most recent."`
	Kind     string `help:"Dataset tab to open first." default:"overview"`
	Config   string `help:"Extra config file, layered with the highest priority." type:"path"`
	LogFile  string `help:"Append debug logs to this file." type:"path"`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the browser TUI.
func (b *BrowseCmd) Run() error {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !isTTY {
		// run owns the gate; fail before any backend is opened.
		return b.run(isTTY, nil)
	}

	cfg, err := loadConfig(b.Config)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	applySourceFlags(cfg, b.Endpoint, b.DB, b.Session, b.CrawlID)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("browse: %w", err)
	}

	kind, err := record.ParseKind(b.Kind)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}

	logger, closeLog, err := openLogger(b.LogFile)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	defer closeLog()

	provider, closeSrc, err := buildProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	defer closeSrc()

	m := browse.New(provider,
		browse.WithViewport(cfg.Viewport.RowHeight, cfg.Viewport.BufferRows),
		browse.WithCache(cfg.Cache.BatchSize, cfg.Cache.MaxResidentBatches, cfg.Cache.EvictMarginBatches),
		browse.WithLogger(logger),
		browse.WithActiveKind(kind),
	)

	prog := tea.NewProgram(m, tea.WithAltScreen())
	return b.run(isTTY, prog)
}

// run executes the tea program, enabling testable wiring.
func (b *BrowseCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return fmt.Errorf("browse: requires a terminal (TTY)")
	}
	_, err := prog.Run()
	return err
}

// PeekCmd prints one page of a dataset without the TUI, for piping.
type PeekCmd struct {
	Endpoint string            `help:"Base URL of a running crawl server." placeholder:"URL" xor:"backend"`
	DB       string            `help:"Path to a crawl database file." type:"path" xor:"backend"`
	Session  string            `help:"Crawl server session ID."`
	CrawlID  int64             `help:"Database crawl to read; 0 selects the most recent."`
	Kind     string            `help:"Dataset to print." default:"overview"`
	Offset   int               `help:"First row to print." default:"0"`
	Limit    int               `help:"Number of rows to print." default:"20"`
	Filter   map[string]string `help:"Filter parameters as key=value pairs."`
	Width    int               `help:"Line width in columns." default:"120"`
	Config   string            `help:"Extra config file, layered with the highest priority." type:"path"`
}

// Run builds real dependencies and prints the requested page.
func (p *PeekCmd) Run() error {
	cfg, err := loadConfig(p.Config)
	if err != nil {
		return fmt.Errorf("peek: %w", err)
	}
	applySourceFlags(cfg, p.Endpoint, p.DB, p.Session, p.CrawlID)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("peek: %w", err)
	}

	kind, err := record.ParseKind(p.Kind)
	if err != nil {
		return fmt.Errorf("peek: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	provider, closeSrc, err := buildProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("peek: %w", err)
	}
	defer closeSrc()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return p.run(ctx, os.Stdout, provider.SourceFor(kind), record.ForKind(kind))
}

// run fetches and prints a single page, enabling testable wiring.
func (p *PeekCmd) run(ctx context.Context, w io.Writer, src table.Source, r record.Renderer) error {
	var filters map[string]string
	if len(p.Filter) > 0 {
		filters = p.Filter
	}

	res, err := src.FetchPage(ctx, table.PageRequest{
		Offset:  p.Offset,
		Limit:   p.Limit,
		Filters: filters,
	})
	if err != nil {
		return fmt.Errorf("peek: %w", err)
	}

	_, _ = fmt.Fprintln(w, r.Header(p.Width))
	for _, row := range res.Rows {
		line, err := r.Line(row, p.Width)
		if err != nil {
			line = "(unrenderable row)"
		}
		_, _ = fmt.Fprintln(w, line)
	}
	if res.TotalKnown {
		_, _ = fmt.Fprintf(w, "%d of %d rows (offset %d)\n", len(res.Rows), res.Total, p.Offset)
	}
	return nil
}

// loadConfig loads layered config from user and project paths with env
// overrides. An extra path, when given, is layered on top.
func loadConfig(extra string) (*config.Config, error) {
	paths := []string{
		os.ExpandEnv("$HOME/.config/crawlview/config.yaml"),
		".crawlview.yaml",
	}
	if extra != "" {
		paths = append(paths, extra)
	}
	cfg, err := config.LoadLayered(paths...)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySourceFlags overlays command-line source selection onto the config.
// Selecting a backend on the command line displaces a configured one, so a
// config file pointing at a database does not block --endpoint.
func applySourceFlags(cfg *config.Config, endpoint, db, session string, crawlID int64) {
	if endpoint != "" {
		cfg.Source.Endpoint = endpoint
		cfg.Source.Database = ""
	}
	if db != "" {
		cfg.Source.Database = db
		cfg.Source.Endpoint = ""
	}
	if session != "" {
		cfg.Source.Session = session
	}
	if crawlID != 0 {
		cfg.Source.CrawlID = crawlID
	}
}

// openLogger wires debug logging to a file. Without a file the logger
// discards everything, since the TUI owns the terminal.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = f.Close() }, nil
}

// --- Source provider adapters ---

// httpProvider builds one HTTP source per dataset kind against a crawl
// server endpoint.
type httpProvider struct {
	cfg    config.Source
	logger *slog.Logger
}

func (p *httpProvider) SourceFor(kind record.Kind) table.Source {
	opts := []source.HTTPOption{
		source.WithTimeout(p.cfg.Timeout),
		source.WithLogger(p.logger),
	}
	if p.cfg.Session != "" {
		opts = append(opts, source.WithSession(p.cfg.Session))
	}
	return source.NewHTTP(p.cfg.Endpoint, kind, opts...)
}

// dbProvider builds per-kind sources over one shared database handle.
type dbProvider struct {
	db      *source.DB
	crawlID int64
}

func (p *dbProvider) SourceFor(kind record.Kind) table.Source {
	return p.db.Source(kind, p.crawlID)
}

// buildProvider selects the HTTP or SQLite backend from the resolved
// config. The returned func releases whatever the provider holds open.
func buildProvider(cfg *config.Config, logger *slog.Logger) (browse.SourceProvider, func(), error) {
	switch {
	case cfg.Source.Endpoint != "" && cfg.Source.Database != "":
		return nil, nil, fmt.Errorf("configure either an endpoint or a database, not both")
	case cfg.Source.Endpoint != "":
		return &httpProvider{cfg: cfg.Source, logger: logger}, func() {}, nil
	case cfg.Source.Database != "":
		db, err := source.OpenDB(cfg.Source.Database)
		if err != nil {
			return nil, nil, err
		}
		crawlID := cfg.Source.CrawlID
		if crawlID == 0 {
			crawlID, err = db.LatestCrawlID(context.Background())
			if err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return &dbProvider{db: db, crawlID: crawlID}, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("no data source configured (set --endpoint or --db)")
	}
}

// Exit codes.
const (
	exitSuccess = 0
	exitSource  = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code. Source failures
// (unreachable server, malformed response, broken database) are runtime
// errors; everything else is a setup problem.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var te *source.TransportError
	var pe *source.ProtocolError
	if errors.As(err, &te) || errors.As(err, &pe) {
		return exitSource
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli, kong.Vars{"version": version + " " + commit + " " + date})
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
