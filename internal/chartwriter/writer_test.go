package chartwriter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/types"
	"github.com/ginjaninja78/covid-scenes/pkg/utils"
)

func heatmap() types.View {
	return types.View{
		Index:     0,
		Kind:      types.KindHeatmap,
		Title:     "Total Cases by State",
		Highlight: "NY",
		Bars: []types.Point{
			{Label: "NY", Value: 15},
			{Label: "CA", Value: 3},
		},
	}
}

func TestWrite_AllKinds(t *testing.T) {
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	views := []types.View{
		heatmap(),
		{
			Index:       1,
			Kind:        types.KindTimeSeries,
			Title:       "Daily Cases and Deaths",
			SeriesNames: []string{"Cases", "Deaths"},
			Series: []types.DatePoint{
				{Date: day, Values: []float64{13, 1}},
				{Date: day.AddDate(0, 0, 1), Values: []float64{5, 0}},
			},
		},
		{
			Index:       2,
			Kind:        types.KindComparison,
			Title:       "Cases vs Deaths by State",
			SeriesNames: []string{"Cases", "Deaths"},
			Bars: []types.Point{
				{Label: "NY", Value: 15, Secondary: 1},
				{Label: "CA", Value: 3},
			},
		},
	}

	w := New(Options{})
	for _, view := range views {
		t.Run(string(view.Kind), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, w.Write(&buf, view))
			assert.True(t, strings.Contains(buf.String(), "<svg"), "svg output")
		})
	}
}

func TestWrite_SingleDate(t *testing.T) {
	view := types.View{
		Kind:        types.KindTimeSeries,
		SeriesNames: []string{"Cases", "Deaths"},
		Series: []types.DatePoint{
			{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Values: []float64{0, 0}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, New(Options{}).Write(&buf, view))
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := New(Options{}).Write(&buf, types.View{Kind: types.KindHeatmap})
	assert.ErrorIs(t, err, ErrNothingToDraw)

	err = New(Options{}).Write(&buf, types.View{Kind: "pie"})
	assert.Error(t, err)
}

func TestWrite_PNG(t *testing.T) {
	w := New(Options{Format: "png"})
	assert.Equal(t, "image/png", w.ContentType())
	assert.Equal(t, ".png", w.Extension())

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, heatmap()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestBarsAccessor(t *testing.T) {
	points := []types.Point{{Label: "A", Value: 4, Secondary: 1}, {Label: "B", Value: 2, Secondary: 3}}
	name := func(p types.Point) string { return p.Label }

	primary := bars(points, value, solid(hexColor("#000000")), name)
	second := bars(points, secondary, solid(hexColor("#ffffff")), name)

	assert.Equal(t, 4.0, primary[0].Value)
	assert.Equal(t, 3.0, second[1].Value)
	assert.Equal(t, "B", second[1].Label)
}

func TestShadedRamp(t *testing.T) {
	base := hexColor("#b2182b")
	style := shaded(base)

	top := style(10, 10).FillColor
	low := style(1, 10).FillColor
	assert.Equal(t, base.R, top.R)
	assert.Greater(t, int(low.G), int(top.G), "smaller values are paler")
}

func TestFileRenderer(t *testing.T) {
	fm := utils.NewFileManager(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, fm.EnsureDirectories())

	r := NewFileRenderer(New(Options{}), fm, "{index}_{scene}_{state}.svg", zap.NewNop())
	require.NoError(t, r.Render(heatmap()))

	written := r.Written()
	require.Len(t, written, 1)
	assert.Equal(t, filepath.Join(fm.OutputDir, "0_heatmap_all.svg"), written[0].OutputFile)

	data, err := os.ReadFile(written[0].OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}
