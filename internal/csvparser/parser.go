// =============================================================================
// COVID Scenes - Delimited Table Parser
// =============================================================================
//
// This module reads the input table from any io.Reader. It only splits the
// text into a header and raw data rows; typing the values (dates, counts) is
// the job of the records package.
//
// FEATURES:
//   - Configurable delimiter (comma, pipe, tab, semicolon)
//   - Optional comment character
//   - Ragged rows are kept; missing trailing cells read as ""
//   - Blank rows are skipped; row numbers are source line numbers
//   - Streaming reader for large inputs, with Parse built on top of it
//
// ROW NUMBERING:
//   Row numbers are the 1-indexed source line on which a row starts, so with
//   the header on line 1 the first data row is row 2. They are carried
//   through to every malformed-row report.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHeader is returned when the input contains no header row.
var ErrNoHeader = errors.New("input has no header row")

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how delimited text is split.
type Settings struct {
	// Delimiter is the field separator. "tab", "\\t", "pipe" and
	// "semicolon" are accepted as names. Default: ",".
	Delimiter string

	// Comment, when set, marks lines to ignore.
	Comment string
}

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// Row is one raw data row with its position in the source.
type Row struct {
	// Number is the 1-indexed source row (header is row 1).
	Number int

	// Fields holds the trimmed cell values.
	Fields []string
}

// Table represents a parsed input table.
type Table struct {
	// Headers contains the cleaned column headers.
	Headers []string

	// Rows contains the non-blank data rows.
	Rows []Row

	// Source names where the table came from, for logs and reports.
	Source string
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnCount returns the number of header columns.
func (t *Table) ColumnCount() int {
	return len(t.Headers)
}

// Field returns the value of column col in row, or "" when the row is short.
func (r Row) Field(col int) string {
	if col < 0 || col >= len(r.Fields) {
		return ""
	}
	return r.Fields[col]
}

// FromRows builds a Table from already-split rows, treating the first row
// as the header. It is used for sources that are not delimited text, such
// as workbooks.
func FromRows(rows [][]string, source string) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	table := &Table{
		Headers: cleanHeaders(rows[0]),
		Rows:    make([]Row, 0, len(rows)-1),
		Source:  source,
	}

	for i, raw := range rows[1:] {
		if isRowEmpty(raw) {
			continue
		}
		table.Rows = append(table.Rows, Row{Number: i + 2, Fields: trimFields(raw)})
	}

	return table, nil
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads delimited text and returns the parsed table.
//
// PARAMETERS:
//   - r: The input stream. It is read to EOF but not closed.
//   - source: A name for the input, recorded on the table.
//   - settings: The delimiter settings.
//
// RETURNS:
//   - A pointer to the Table containing the header and data rows.
//   - ErrNoHeader for empty input, or a wrapped read error.
func Parse(r io.Reader, source string, settings Settings) (*Table, error) {
	parser, err := NewStreamingParser(r, settings)
	if err != nil {
		return nil, err
	}

	table := &Table{
		Headers: parser.Headers(),
		Source:  source,
	}

	for parser.Next() {
		table.Rows = append(table.Rows, parser.Row())
	}
	if err := parser.Err(); err != nil {
		return nil, err
	}

	return table, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	reader.Comma = delimiterRune(settings.Delimiter)

	if settings.Comment != "" {
		reader.Comment = []rune(settings.Comment)[0]
	}

	// Rows may be ragged; short rows read missing cells as "".
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false
}

// delimiterRune maps a delimiter setting to the separator rune.
func delimiterRune(delimiter string) rune {
	switch delimiter {
	case "\\t", "\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case ";", "semicolon":
		return ';'
	case "":
		return ','
	default:
		return []rune(delimiter)[0]
	}
}

// cleanHeaders trims headers and names empty ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

func trimFields(row []string) []string {
	fields := make([]string, len(row))
	for i, cell := range row {
		fields[i] = strings.TrimSpace(cell)
	}
	return fields
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// STREAMING PARSER
// =============================================================================

// StreamingParser reads one data row at a time.
//
// USAGE:
//
//	parser, err := NewStreamingParser(r, settings)
//	if err != nil {
//	    return err
//	}
//	for parser.Next() {
//	    row := parser.Row()
//	    // Process the row...
//	}
//	if err := parser.Err(); err != nil {
//	    return err
//	}
type StreamingParser struct {
	reader     *csv.Reader
	headers    []string
	currentRow Row
	rowNumber  int
	err        error
}

// NewStreamingParser creates a streaming parser and reads the header row.
//
// PARAMETERS:
//   - r: The input stream.
//   - settings: The delimiter settings.
//
// RETURNS:
//   - A pointer to the StreamingParser positioned before the first data row.
//   - ErrNoHeader if the input is empty, or a wrapped read error.
func NewStreamingParser(r io.Reader, settings Settings) (*StreamingParser, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	configureReader(reader, settings)

	parser := &StreamingParser{reader: reader}

	if err := parser.readHeaders(); err != nil {
		return nil, err
	}

	return parser, nil
}

// readHeaders reads the first non-blank row as the header.
func (p *StreamingParser) readHeaders() error {
	for {
		row, err := p.reader.Read()
		if err == io.EOF {
			return ErrNoHeader
		}
		if err != nil {
			return fmt.Errorf("failed to read header row: %w", err)
		}
		p.rowNumber, _ = p.reader.FieldPos(0)

		if isRowEmpty(row) {
			continue
		}

		p.headers = cleanHeaders(row)
		return nil
	}
}

// Next advances to the next non-blank row. Returns false at the end of the
// input or on a read error.
func (p *StreamingParser) Next() bool {
	if p.err != nil {
		return false
	}

	for {
		row, err := p.reader.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			p.err = fmt.Errorf("failed to read row %d: %w", p.rowNumber+1, err)
			return false
		}
		p.rowNumber, _ = p.reader.FieldPos(0)

		if isRowEmpty(row) {
			continue
		}

		p.currentRow = Row{Number: p.rowNumber, Fields: trimFields(row)}
		return true
	}
}

// Row returns the current row.
func (p *StreamingParser) Row() Row {
	return p.currentRow
}

// Headers returns the parsed headers.
func (p *StreamingParser) Headers() []string {
	return p.headers
}

// RowNumber returns the current row number (1-indexed).
func (p *StreamingParser) RowNumber() int {
	return p.rowNumber
}

// Err returns any error that occurred during parsing.
func (p *StreamingParser) Err() error {
	return p.err
}
