package importer

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ErrorRow is one rejected input row, retained in input order for the
// operator-facing audit export.
type ErrorRow struct {
	// Line is the 1-based CSV line number (the header is line 1).
	Line   int    `json:"row_number"`
	Reason string `json:"reason"`

	// Data is the original row, kept so the audit export reproduces the
	// input column layout.
	Data []string `json:"-"`
}

// Summary is the aggregate result of one import run. It is created by the
// orchestrator, mutated only while the run is in flight, and immutable
// once returned.
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`

	// Rows counts data rows processed, excluding the header and fully
	// empty lines.
	Rows int `json:"rows"`

	DryRun bool `json:"dry_run"`

	ErrorRows []ErrorRow `json:"error_rows"`

	// header is the input header row, retained for WriteErrorCSV.
	header []string
}

// tally records one row's outcome.
func (s *Summary) tally(line int, data []string, o Outcome) {
	s.Rows++
	switch o.Status {
	case StatusCreated:
		s.Created++
	case StatusUpdated:
		s.Updated++
	case StatusSkipped:
		s.Skipped++
	case StatusError:
		s.Errors++
		s.ErrorRows = append(s.ErrorRows, ErrorRow{Line: line, Reason: o.Reason, Data: data})
	}
}

// WriteErrorCSV writes the error rows as a delimited file for operator
// review: a Reason column followed by the original input columns.
func (s *Summary) WriteErrorCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(append([]string{"Reason"}, s.header...)); err != nil {
		return fmt.Errorf("write error csv header: %w", err)
	}
	for _, row := range s.ErrorRows {
		if err := cw.Write(append([]string{row.Reason}, row.Data...)); err != nil {
			return fmt.Errorf("write error csv row %d: %w", row.Line, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
