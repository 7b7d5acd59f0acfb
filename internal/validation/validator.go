// =============================================================================
// COVID Scenes - Validation Engine
// =============================================================================
//
// This module validates the input table and the typed records produced from
// it. Two levels are checked:
//   1. Table-level: the header row must contain every required column.
//   2. Record-level: each typed Record must satisfy its struct tags
//      (state present, counts non-negative).
//
// ERROR HANDLING:
//   - Record errors are collected, not returned on the first failure.
//   - Each error carries the source row number, field and offending value.
//   - The record parser decides what a failed record means (skip, zero-fill
//     or reject); this package only reports.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ginjaninja78/covid-scenes/internal/types"
)

// =============================================================================
// REQUIRED COLUMNS
// =============================================================================

// Column names every input table must provide. Lookups are case-insensitive.
const (
	ColumnState  = "state"
	ColumnDate   = "date"
	ColumnCases  = "cases"
	ColumnDeaths = "deaths"
)

// RequiredColumns lists the columns in the order they are reported.
var RequiredColumns = []string{ColumnState, ColumnDate, ColumnCases, ColumnDeaths}

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation error.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Value is the actual value that failed validation.
	Value string

	// Rule is the validation rule that was violated (e.g. "required", "gte").
	Rule string

	// Message is a human-readable error message.
	Message string

	// RowNumber is the 1-indexed row of the source table (header is row 1).
	RowNumber int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d, field '%s': %s (value: '%s')",
		e.RowNumber,
		e.Field,
		e.Message,
		e.Value,
	)
}

// MissingColumnsError is returned when the header lacks required columns.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required column(s): %s", strings.Join(e.Missing, ", "))
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks headers and records.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateHeaders checks that every required column is present and returns
// the index of each one, keyed by its lower-case name.
//
// PARAMETERS:
//   - headers: The header row of the input table.
//
// RETURNS:
//   - A map from required column name to its position in the row.
//   - A *MissingColumnsError if any required column is absent.
func (v *Validator) ValidateHeaders(headers []string) (map[string]int, error) {
	index := make(map[string]int, len(headers))
	for i, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	var missing []string
	for _, column := range RequiredColumns {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	return index, nil
}

// ValidateRecord validates a typed record and returns every violated rule.
//
// PARAMETERS:
//   - record: The record to validate.
//   - rowNumber: The source row number, used in error messages.
//
// RETURNS:
//   - A slice of ValidationError pointers; empty when the record is valid.
func (v *Validator) ValidateRecord(record types.Record, rowNumber int) []*ValidationError {
	err := v.validate.Struct(record)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []*ValidationError{{
			Field:     "record",
			Rule:      "struct",
			Message:   err.Error(),
			RowNumber: rowNumber,
		}}
	}

	result := make([]*ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		result = append(result, &ValidationError{
			Field:     strings.ToLower(fe.Field()),
			Value:     fmt.Sprintf("%v", fe.Value()),
			Rule:      fe.Tag(),
			Message:   describeRule(fe),
			RowNumber: rowNumber,
		})
	}

	return result
}

// describeRule turns a validator tag into a readable message.
func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "gte":
		return fmt.Sprintf("value must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed '%s' rule", fe.Tag())
	}
}
