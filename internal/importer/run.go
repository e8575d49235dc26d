package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/partstock-io/partstock/internal/category"
)

// Options configures one import run. Headers is required; nil Rules means
// every row gets the default fallback category.
type Options struct {
	Headers *HeaderMap
	Rules   *category.RuleSet

	// DryRun computes and reports outcomes without persisting anything.
	DryRun bool

	// Encoding names the input charset ("" defaults to UTF-8).
	Encoding string
}

// Importer orchestrates import runs against one storage collaborator.
// Rows are processed strictly sequentially: later rows must observe
// entities created by earlier rows in the same run.
type Importer struct {
	lookup KeyedLookup
	log    *slog.Logger
}

// New creates an Importer. The logger may be nil, in which case the
// default slog logger is used.
func New(lookup KeyedLookup, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{lookup: lookup, log: log}
}

// Run streams CSV rows from input and drives each through mapping,
// categorization and dedup/upsert, tallying outcomes into a Summary.
//
// Row-level failures (short rows, missing identity, merge conflicts,
// storage errors) become Error outcomes and the run continues; the only
// run-level failures are an unreadable or header-less stream and caller
// cancellation. On cancellation the summary reflects exactly the rows
// processed so far - committed progress is not rolled back - and is
// returned alongside ctx.Err().
func (imp *Importer) Run(ctx context.Context, input io.Reader, opts Options) (*Summary, error) {
	if opts.Headers == nil {
		return nil, errors.New("header map is required")
	}
	rules := opts.Rules
	if rules == nil {
		var err error
		if rules, err = category.New(nil, category.DefaultFallback); err != nil {
			return nil, err
		}
	}

	wrapped, err := wrapReader(input, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(wrapped)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("empty input: missing header row")
		}
		return nil, fmt.Errorf("reading header row: %w", err)
	}

	summary := &Summary{DryRun: opts.DryRun, header: header}
	resolver := NewResolver(imp.lookup, opts.DryRun)

	line := 1 // header
	for {
		// Cancellation is checked once per row; a cancelled run keeps
		// the progress it has already committed.
		if err := ctx.Err(); err != nil {
			imp.log.Warn("import cancelled", "line", line, "rows", summary.Rows)
			return summary, err
		}

		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// Malformed row shape; count it and keep going.
				summary.tally(line, row, Outcome{
					Status: StatusError,
					Reason: fmt.Sprintf("malformed row: %v", perr.Err),
				})
				continue
			}
			// A mid-stream read failure is not attributable to one row;
			// surface it with whatever was already tallied.
			return summary, fmt.Errorf("reading input at line %d: %w", line, err)
		}

		if emptyRow(row) {
			continue
		}

		rec := opts.Headers.MapRow(header, row)
		rec.Line = line
		rec.Category = rules.Categorize(categoryText(rec))

		outcome := resolver.Resolve(ctx, rec)
		summary.tally(line, row, outcome)
	}

	imp.log.Info("import complete",
		"rows", summary.Rows,
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"dry_run", summary.DryRun,
	)
	return summary, nil
}

// categoryText is the text the rule list matches against: description
// plus the identity fields, so rules can key off either.
func categoryText(rec *Record) string {
	return strings.TrimSpace(rec.Description + " " + rec.Manufacturer + " " + rec.PartNumber)
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
