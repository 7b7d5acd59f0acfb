package xlsxio

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/covid-scenes/internal/types"
)

func TestWriteAggregatesReadBack(t *testing.T) {
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	export := Export{
		Records: []types.Record{
			{State: "NY", Date: day, Cases: 10, Deaths: 1},
			{State: "CA", Date: day, Cases: 3},
		},
		Ranked: []types.StateTotal{
			{State: "NY", Totals: types.Totals{Cases: 10, Deaths: 1}},
			{State: "CA", Totals: types.Totals{Cases: 3}},
		},
		ByDate: []types.DateTotal{{Date: day, TotalCases: 13, TotalDeaths: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAggregates(&buf, export))

	rows, err := ReadRows(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"state", "date", "cases", "deaths"},
		{"NY", "2020-01-01", "10", "1"},
		{"CA", "2020-01-01", "3", "0"},
	}, rows)

	rows, err = ReadRows(bytes.NewReader(buf.Bytes()), SheetByState)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "NY", "10", "1"}, rows[1])

	rows, err = ReadRows(bytes.NewReader(buf.Bytes()), SheetByDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-01", "13", "1"}, rows[1])
}

func TestReadRows_Errors(t *testing.T) {
	_, err := ReadRows(bytes.NewReader([]byte("not a workbook")), "")
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteAggregates(&buf, Export{}))
	_, err = ReadRows(bytes.NewReader(buf.Bytes()), "Missing")
	assert.Error(t, err)
}
