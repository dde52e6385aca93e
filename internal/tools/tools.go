package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"credence/internal/codec"
	"credence/internal/numeval"
)

// #region names

const (
	ToolSearch  = "search"
	ToolFetch   = "fetch"
	ToolNumeric = "numeric"
	ToolTable   = "table"
)

// #endregion names

// #region errors

// ErrUnknownTool is returned for a tool name the registry does not know.
var ErrUnknownTool = errors.New("unknown tool")

// BlockedError marks a tool run that was refused rather than failed,
// e.g. when fetched content carries prompt-injection markers. Blocked
// runs must not be retried with the same input.
type BlockedError struct {
	Tool   string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("tool %s blocked: %s", e.Tool, e.Reason)
}

// IsBlocked reports whether err is (or wraps) a BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// #endregion errors

// #region outcome

// Outcome is the normalized result of one tool run. Evidence feeds
// recomposition; Value is set for numeric-producing tools; URL records
// the source for citation.
type Outcome struct {
	Tool     string
	Evidence string
	Value    *float64
	URL      string
	Summary  string
}

// Args carries per-tool parameters; only the fields relevant to the
// named tool are read.
type Args struct {
	Query string
	URL   string
	Expr  string
	SQL   string
}

// #endregion outcome

// #region external-interfaces

// Searcher runs a web search. *codec.Client satisfies it.
type Searcher interface {
	WebSearch(ctx context.Context, query string, maxResults int) ([]codec.SearchResult, error)
}

// Fetcher retrieves a document body by URL. *codec.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// #endregion external-interfaces

// #region registry

// Registry dispatches named tools. A nil searcher or fetcher disables
// the corresponding tool with a soft failure.
type Registry struct {
	searcher   Searcher
	fetcher    Fetcher
	tables     *TableStore
	maxResults int
	fetchLimit int
}

// NewRegistry creates a tool registry. tables may be nil when no table
// database is configured.
func NewRegistry(searcher Searcher, fetcher Fetcher, tables *TableStore) *Registry {
	return &Registry{
		searcher:   searcher,
		fetcher:    fetcher,
		tables:     tables,
		maxResults: 3,
		fetchLimit: 4000,
	}
}

// Known reports whether the registry dispatches the named tool.
func (r *Registry) Known(name string) bool {
	switch name {
	case ToolSearch, ToolFetch, ToolNumeric, ToolTable:
		return true
	}
	return false
}

// Run executes the named tool. Failures are ordinary errors the caller
// treats as soft; BlockedError marks refusals.
func (r *Registry) Run(ctx context.Context, name string, args Args) (*Outcome, error) {
	switch name {
	case ToolSearch:
		return r.runSearch(ctx, args)
	case ToolFetch:
		return r.runFetch(ctx, args)
	case ToolNumeric:
		return r.runNumeric(args)
	case ToolTable:
		return r.runTable(ctx, args)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// #endregion registry

// #region search

func (r *Registry) runSearch(ctx context.Context, args Args) (*Outcome, error) {
	if r.searcher == nil {
		return nil, fmt.Errorf("search: no searcher configured")
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	results, err := r.searcher.WebSearch(ctx, args.Query, r.maxResults)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("search: no results for %q", args.Query)
	}

	var b strings.Builder
	for i, res := range results {
		fmt.Fprintf(&b, "%d. %s", i+1, res.Title)
		if res.Snippet != "" {
			fmt.Fprintf(&b, " — %s", res.Snippet)
		}
		b.WriteString("\n")
	}
	log.Printf("[TOOL] search %q returned %d results", args.Query, len(results))
	return &Outcome{
		Tool:     ToolSearch,
		Evidence: strings.TrimSpace(b.String()),
		URL:      results[0].URL,
		Summary:  fmt.Sprintf("%d search results", len(results)),
	}, nil
}

// #endregion search

// #region fetch

func (r *Registry) runFetch(ctx context.Context, args Args) (*Outcome, error) {
	if r.fetcher == nil {
		return nil, fmt.Errorf("fetch: no fetcher configured")
	}
	if strings.TrimSpace(args.URL) == "" {
		return nil, fmt.Errorf("fetch: empty url")
	}
	body, err := r.fetcher.Fetch(ctx, args.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", args.URL, err)
	}
	if marker := injectionMarker(body); marker != "" {
		log.Printf("[TOOL] fetch %s blocked: injection marker %q", args.URL, marker)
		return nil, &BlockedError{Tool: ToolFetch, Reason: fmt.Sprintf("injection marker %q", marker)}
	}

	body = strings.TrimSpace(body)
	if len(body) > r.fetchLimit {
		body = body[:r.fetchLimit]
	}
	return &Outcome{
		Tool:     ToolFetch,
		Evidence: body,
		URL:      args.URL,
		Summary:  fmt.Sprintf("fetched %d bytes", len(body)),
	}, nil
}

// injectionMarkers are scanned case-insensitively in fetched content.
var injectionMarkers = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard your instructions",
	"you are now",
	"system prompt:",
}

func injectionMarker(body string) string {
	lower := strings.ToLower(body)
	for _, m := range injectionMarkers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

// #endregion fetch

// #region numeric

func (r *Registry) runNumeric(args Args) (*Outcome, error) {
	if strings.TrimSpace(args.Expr) == "" {
		return nil, fmt.Errorf("numeric: empty expression")
	}
	val, err := numeval.Evaluate(args.Expr)
	if err != nil {
		return nil, fmt.Errorf("numeric %q: %w", args.Expr, err)
	}
	return &Outcome{
		Tool:    ToolNumeric,
		Value:   &val,
		Summary: fmt.Sprintf("%s = %v", args.Expr, val),
	}, nil
}

// #endregion numeric

// #region table

func (r *Registry) runTable(ctx context.Context, args Args) (*Outcome, error) {
	if r.tables == nil {
		return nil, fmt.Errorf("table: no table store configured")
	}
	return r.tables.Query(ctx, args.SQL)
}

// #endregion table
