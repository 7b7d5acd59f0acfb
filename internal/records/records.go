// =============================================================================
// COVID Scenes - Record Parser
// =============================================================================
//
// This module turns the raw rows of an input table into typed Records.
//
// PARSING PROCESS:
//   1. Locate the required columns (state, date, cases, deaths) in the header
//   2. For every row, parse the date against the configured layouts
//   3. Parse the case and death counts as non-negative integers
//   4. Validate the typed record (state present, counts >= 0)
//   5. Apply the malformed-row policy to any row that failed 2-4
//
// MALFORMED ROWS:
//   The policy decides what happens to a row that failed parsing:
//     zero-fill  bad counts become 0; rows with a bad date or no state are
//                skipped (there is no sensible default for either)
//     skip       the row is dropped
//     reject     the first malformed row fails the whole dataset
//   Every coerced or dropped row is listed in the Report.
//
// =============================================================================

package records

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/covid-scenes/internal/csvparser"
	"github.com/ginjaninja78/covid-scenes/internal/types"
	"github.com/ginjaninja78/covid-scenes/internal/validation"
)

// ErrEmptyDataset is returned alongside an empty, non-nil record slice when
// parsing produced no records. Callers may treat it as a notice.
var ErrEmptyDataset = errors.New("dataset contains no records")

// DefaultDateFormats are tried when Options.DateFormats is empty.
var DefaultDateFormats = []string{"2006-01-02", "1/2/2006"}

// =============================================================================
// POLICY
// =============================================================================

// Policy selects how malformed rows are handled.
type Policy string

const (
	PolicyZeroFill Policy = "zero-fill"
	PolicySkip     Policy = "skip"
	PolicyReject   Policy = "reject"
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyZeroFill, PolicySkip, PolicyReject:
		return p, nil
	case "":
		return PolicyZeroFill, nil
	default:
		return "", fmt.Errorf("unknown malformed_policy %q (want zero-fill, skip or reject)", s)
	}
}

// Options controls record parsing.
type Options struct {
	// DateFormats are Go layouts tried in order.
	DateFormats []string

	// Policy handles malformed rows. Empty means zero-fill.
	Policy Policy
}

// =============================================================================
// ERRORS AND REPORT
// =============================================================================

// MalformedRecordError describes one field of one row that failed parsing.
type MalformedRecordError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at row %d: field %q value %q: %s", e.Row, e.Field, e.Value, e.Reason)
}

// Action records what the policy did with a malformed row.
type Action string

const (
	ActionSkipped    Action = "skipped"
	ActionZeroFilled Action = "zero-filled"
	ActionRejected   Action = "rejected"
)

// Issue is one entry of the Report.
type Issue struct {
	Err    *MalformedRecordError
	Action Action
}

// Report summarizes a parse.
type Report struct {
	// Rows is the number of data rows read.
	Rows int

	// Accepted is the number of records produced.
	Accepted int

	// Issues lists every malformed field, in row order.
	Issues []Issue
}

// Skipped returns the number of distinct rows that were dropped.
func (r Report) Skipped() int {
	return r.countRows(ActionSkipped)
}

// ZeroFilled returns the number of distinct rows whose counts were coerced.
func (r Report) ZeroFilled() int {
	return r.countRows(ActionZeroFilled)
}

func (r Report) countRows(action Action) int {
	seen := make(map[int]bool)
	for _, issue := range r.Issues {
		if issue.Action == action {
			seen[issue.Err.Row] = true
		}
	}
	return len(seen)
}

// =============================================================================
// PARSER
// =============================================================================

// Parse converts the rows of table into Records, in input order.
//
// PARAMETERS:
//   - table: The raw table. Header lookup is case-insensitive and extra
//     columns are ignored.
//   - opts: Date layouts and the malformed-row policy.
//
// RETURNS:
//   - The parsed records; never nil when err is nil or ErrEmptyDataset.
//   - A Report of every malformed row and what was done with it.
//   - A *validation.MissingColumnsError when a required column is absent,
//     a *MalformedRecordError under the reject policy, or ErrEmptyDataset.
func Parse(table *csvparser.Table, opts Options) ([]types.Record, Report, error) {
	var report Report

	validator := validation.NewValidator()
	columns, err := validator.ValidateHeaders(table.Headers)
	if err != nil {
		return nil, report, fmt.Errorf("failed to read header: %w", err)
	}

	policy := opts.Policy
	if policy == "" {
		policy = PolicyZeroFill
	}
	layouts := opts.DateFormats
	if len(layouts) == 0 {
		layouts = DefaultDateFormats
	}

	result := make([]types.Record, 0, len(table.Rows))

	for _, row := range table.Rows {
		report.Rows++

		record, problems := parseRow(row, columns, layouts, validator)
		if len(problems) == 0 {
			result = append(result, record)
			continue
		}

		switch {
		case policy == PolicyReject:
			report.Issues = append(report.Issues, Issue{Err: problems[0], Action: ActionRejected})
			return nil, report, problems[0]

		case policy == PolicyZeroFill && onlyCounts(problems):
			if hasField(problems, validation.ColumnCases) {
				record.Cases = 0
			}
			if hasField(problems, validation.ColumnDeaths) {
				record.Deaths = 0
			}
			for _, p := range problems {
				report.Issues = append(report.Issues, Issue{Err: p, Action: ActionZeroFilled})
			}
			result = append(result, record)

		default:
			for _, p := range problems {
				report.Issues = append(report.Issues, Issue{Err: p, Action: ActionSkipped})
			}
		}
	}

	report.Accepted = len(result)
	if len(result) == 0 {
		return result, report, ErrEmptyDataset
	}

	return result, report, nil
}

// parseRow types one row and returns every problem found.
func parseRow(row csvparser.Row, columns map[string]int, layouts []string, v *validation.Validator) (types.Record, []*MalformedRecordError) {
	var problems []*MalformedRecordError

	record := types.Record{
		State: row.Field(columns[validation.ColumnState]),
	}

	rawDate := row.Field(columns[validation.ColumnDate])
	date, err := parseDate(rawDate, layouts)
	if err != nil {
		problems = append(problems, &MalformedRecordError{
			Row: row.Number, Field: validation.ColumnDate, Value: rawDate, Reason: err.Error(),
		})
	} else {
		record.Date = date
	}

	for _, field := range []string{validation.ColumnCases, validation.ColumnDeaths} {
		raw := row.Field(columns[field])
		n, err := parseCount(raw)
		if err != nil {
			problems = append(problems, &MalformedRecordError{
				Row: row.Number, Field: field, Value: raw, Reason: err.Error(),
			})
			continue
		}
		if field == validation.ColumnCases {
			record.Cases = n
		} else {
			record.Deaths = n
		}
	}

	for _, ve := range v.ValidateRecord(record, row.Number) {
		// A date that failed to parse is already reported.
		if ve.Field == validation.ColumnDate && hasField(problems, validation.ColumnDate) {
			continue
		}
		problems = append(problems, &MalformedRecordError{
			Row: row.Number, Field: ve.Field, Value: ve.Value, Reason: ve.Message,
		})
	}

	return record, problems
}

// parseDate tries each layout and normalizes the result to midnight UTC.
func parseDate(raw string, layouts []string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("value is required")
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("does not match any of %s", strings.Join(layouts, ", "))
}

// parseCount parses a count. Integral decimals such as "12.0" are accepted.
// Negative values parse and are left for validation to reject.
func parseCount(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("value is required")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errors.New("not a whole number")
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, errors.New("out of range")
	}
	return int64(f), nil
}

func onlyCounts(problems []*MalformedRecordError) bool {
	for _, p := range problems {
		if p.Field != validation.ColumnCases && p.Field != validation.ColumnDeaths {
			return false
		}
	}
	return true
}

func hasField(problems []*MalformedRecordError, field string) bool {
	for _, p := range problems {
		if p.Field == field {
			return true
		}
	}
	return false
}
