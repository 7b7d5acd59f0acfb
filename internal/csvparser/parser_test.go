package csvparser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := "date, state ,cases,deaths\n" +
		"2020-01-01,NY,10,1\n" +
		"\n" +
		",,,\n" +
		"2020-01-02,NY,5\n"

	tbl, err := Parse(strings.NewReader(input), "inline", Settings{})
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "state", "cases", "deaths"}, tbl.Headers)
	assert.Equal(t, "inline", tbl.Source)
	require.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, 4, tbl.ColumnCount())

	assert.Equal(t, 2, tbl.Rows[0].Number)
	assert.Equal(t, 5, tbl.Rows[1].Number)
	assert.Equal(t, "5", tbl.Rows[1].Field(2))
	assert.Equal(t, "", tbl.Rows[1].Field(3))
}

func TestParse_Delimiters(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		input     string
	}{
		{"tab by name", "tab", "state\tdate\nNY\t2020-01-01\n"},
		{"escaped tab", "\\t", "state\tdate\nNY\t2020-01-01\n"},
		{"pipe", "pipe", "state|date\nNY|2020-01-01\n"},
		{"semicolon", ";", "state;date\nNY;2020-01-01\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Parse(strings.NewReader(tt.input), "", Settings{Delimiter: tt.delimiter})
			require.NoError(t, err)
			assert.Equal(t, []string{"state", "date"}, tbl.Headers)
			require.Len(t, tbl.Rows, 1)
			assert.Equal(t, []string{"NY", "2020-01-01"}, tbl.Rows[0].Fields)
		})
	}
}

func TestParse_CommentsAndEmptyHeaders(t *testing.T) {
	input := "\ufeffstate,,cases\n# note\nNY,x,3\n"

	tbl, err := Parse(strings.NewReader(input), "", Settings{Comment: "#"})
	require.NoError(t, err)
	assert.Equal(t, []string{"state", "Column_2", "cases"}, tbl.Headers)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, 3, tbl.Rows[0].Number)
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader("\n\n"), "", Settings{})
	assert.True(t, errors.Is(err, ErrNoHeader))
}

func TestFromRows(t *testing.T) {
	tbl, err := FromRows([][]string{
		{"state", "date"},
		{"NY", "2020-01-01"},
		{"", ""},
		{" CA ", "2020-01-02"},
	}, "book.xlsx")
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, 4, tbl.Rows[1].Number)
	assert.Equal(t, "CA", tbl.Rows[1].Field(0))

	_, err = FromRows(nil, "")
	assert.ErrorIs(t, err, ErrNoHeader)
}
