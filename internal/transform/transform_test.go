package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/covid-scenes/internal/csvparser"
)

func table(t *testing.T, rows ...[]string) *csvparser.Table {
	t.Helper()
	tbl, err := csvparser.FromRows(rows, "test")
	require.NoError(t, err)
	return tbl
}

func TestApply_AliasesAndRules(t *testing.T) {
	tr, err := New(Rules{
		ColumnAliases: map[string]string{"Province_State": "state", "confirmed": "cases"},
		Fields: []FieldRule{
			{Field: "state", Actions: []Action{
				{Type: ActionNormalizeWhitespace},
				{Type: ActionLookup, LookupTable: map[string]string{"New York": "NY"}},
			}},
			{Field: "cases", Actions: []Action{
				{Type: ActionReplace, Find: ","},
				{Type: ActionIfEmptyUseDefault, Value: "0"},
			}},
		},
	})
	require.NoError(t, err)

	tbl := table(t,
		[]string{"PROVINCE_STATE", "date", "Confirmed", "deaths"},
		[]string{"New   York", "2020-01-01", "1,234", "1"},
		[]string{"Texas", "2020-01-01", "", "0"},
	)
	tr.Apply(tbl)

	assert.Equal(t, []string{"state", "date", "cases", "deaths"}, tbl.Headers)
	assert.Equal(t, []string{"NY", "2020-01-01", "1234", "1"}, tbl.Rows[0].Fields)
	assert.Equal(t, []string{"Texas", "2020-01-01", "0", "0"}, tbl.Rows[1].Fields)
}

func TestApply_Actions(t *testing.T) {
	tests := []struct {
		action Action
		in     string
		want   string
	}{
		{Action{Type: ActionTrim}, "  NY ", "NY"},
		{Action{Type: ActionUppercase}, "ny", "NY"},
		{Action{Type: ActionLowercase}, "NY", "ny"},
		{Action{Type: ActionTitleCase}, "NEW YORK", "New York"},
		{Action{Type: ActionRegexReplace, Find: `\s*\(.*\)$`}, "Georgia (US)", "Georgia"},
		{Action{Type: ActionLookupWithDefault, Value: "Other", LookupTable: map[string]string{"CA": "California"}}, "Guam", "Other"},
		{Action{Type: ActionLookupWithDefault, Value: "Other", LookupTable: map[string]string{"CA": "California"}}, "CA", "California"},
	}

	for _, tt := range tests {
		t.Run(tt.action.Type+"/"+tt.in, func(t *testing.T) {
			tr, err := New(Rules{Fields: []FieldRule{{Field: "state", Actions: []Action{tt.action}}}})
			require.NoError(t, err)

			tbl := table(t, []string{"state"}, []string{tt.in})
			tr.Apply(tbl)
			assert.Equal(t, tt.want, tbl.Rows[0].Fields[0])
		})
	}
}

func TestApply_IgnoresMissingColumnsAndShortRows(t *testing.T) {
	tr, err := New(Rules{Fields: []FieldRule{
		{Field: "county", Actions: []Action{{Type: ActionUppercase}}},
		{Field: "deaths", Actions: []Action{{Type: ActionUppercase}}},
	}})
	require.NoError(t, err)

	tbl := table(t, []string{"state", "deaths"}, []string{"ny"})
	tr.Apply(tbl)
	assert.Equal(t, []string{"ny"}, tbl.Rows[0].Fields)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Rules{Fields: []FieldRule{{Field: "state", Actions: []Action{{Type: "explode"}}}}})
	assert.ErrorContains(t, err, `unknown transformation "explode"`)

	_, err = New(Rules{Fields: []FieldRule{{Field: "state", Actions: []Action{{Type: ActionRegexReplace, Find: "("}}}}})
	assert.ErrorContains(t, err, "invalid pattern")

	_, err = New(Rules{Fields: []FieldRule{{Actions: []Action{{Type: ActionTrim}}}}})
	assert.Error(t, err)

	assert.True(t, Rules{}.Empty())
}

func TestFingerprint(t *testing.T) {
	rules := func(to string) Rules {
		return Rules{
			ColumnAliases: map[string]string{"confirmed": "cases", "Province_State": "state"},
			Fields:        []FieldRule{{Field: "state", Actions: []Action{{Type: ActionLookup, LookupTable: map[string]string{"New York": to}}}}},
		}
	}

	a, err := New(rules("NY"))
	require.NoError(t, err)
	b, err := New(rules("NY"))
	require.NoError(t, err)
	c, err := New(rules("N.Y."))
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
