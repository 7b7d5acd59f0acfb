package scene

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/covid-scenes/internal/types"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func example() []types.Record {
	return []types.Record{
		{State: "NY", Date: d("2020-01-01"), Cases: 10, Deaths: 1},
		{State: "NY", Date: d("2020-01-02"), Cases: 5, Deaths: 0},
		{State: "CA", Date: d("2020-01-01"), Cases: 3, Deaths: 0},
	}
}

// recorder captures every rendered view.
type recorder struct {
	views []types.View
	err   error
}

func (r *recorder) Render(view types.View) error {
	r.views = append(r.views, view)
	return r.err
}

func TestNew_InitialState(t *testing.T) {
	s := New(example())
	assert.Equal(t, State{Index: 0}, s.State())
	assert.Equal(t, []string{"CA", "NY"}, s.States())
}

func TestPrevAtZeroSaturates(t *testing.T) {
	rec := &recorder{}
	s := New(example(), WithRenderer(rec))

	require.NoError(t, s.Prev())
	assert.Equal(t, 0, s.State().Index)
	assert.Empty(t, rec.views, "no redraw without a state change")
}

func TestNextSaturatesAtLast(t *testing.T) {
	s := New(example())
	for i := 0; i < Count+2; i++ {
		require.NoError(t, s.Next())
	}
	assert.Equal(t, Count-1, s.State().Index)
}

func TestNextThenPrevReturnsToZero(t *testing.T) {
	for _, nav := range []Navigation{Saturate, Wrap} {
		for k := 0; k <= 2*Count; k++ {
			s := New(example(), WithNavigation(nav))
			for i := 0; i < k; i++ {
				require.NoError(t, s.Next())
			}
			for i := 0; i < k; i++ {
				require.NoError(t, s.Prev())
			}
			assert.Equal(t, 0, s.State().Index, "nav=%s k=%d", nav, k)
		}
	}
}

func TestWrapNavigation(t *testing.T) {
	s := New(example(), WithNavigation(Wrap))

	require.NoError(t, s.Prev())
	assert.Equal(t, Count-1, s.State().Index)

	require.NoError(t, s.Next())
	assert.Equal(t, 0, s.State().Index)
}

func TestTransitionsRender(t *testing.T) {
	rec := &recorder{}
	s := New(example(), WithRenderer(rec))

	require.NoError(t, s.Next())
	require.NoError(t, s.Next())
	require.Len(t, rec.views, 2)
	assert.Equal(t, types.KindTimeSeries, rec.views[0].Kind)
	assert.Equal(t, types.KindComparison, rec.views[1].Kind)
}

func TestSelectState(t *testing.T) {
	rec := &recorder{}
	s := New(example(), WithRenderer(rec))

	t.Run("rejected outside comparison", func(t *testing.T) {
		err := s.SelectState("NY")
		assert.ErrorIs(t, err, ErrSceneNotFilterable)
		assert.Equal(t, State{}, s.State())
		assert.Empty(t, rec.views)
	})

	require.NoError(t, s.Goto(IndexComparison))

	t.Run("filters comparison", func(t *testing.T) {
		require.NoError(t, s.SelectState("NY"))
		assert.Equal(t, "NY", s.State().SelectedState)

		last := rec.views[len(rec.views)-1]
		assert.Equal(t, "NY", last.SelectedState)
		require.Len(t, last.Bars, 1)
		assert.Equal(t, types.Point{Label: "NY", Value: 15, Secondary: 1}, last.Bars[0])
	})

	t.Run("unknown state leaves filter", func(t *testing.T) {
		err := s.SelectState("ZZ")
		assert.ErrorIs(t, err, ErrUnknownState)
		assert.Equal(t, "NY", s.State().SelectedState)
	})

	t.Run("empty clears", func(t *testing.T) {
		require.NoError(t, s.SelectState(""))
		assert.Equal(t, "", s.State().SelectedState)
		assert.Len(t, s.Current().Bars, 2)
	})
}

func TestRenderErrorKeepsTransition(t *testing.T) {
	boom := errors.New("disk full")
	s := New(example(), WithRenderer(&recorder{err: boom}))

	err := s.Next()
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Index)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.State().Index)

	// The selector keeps working after a failed render.
	assert.Error(t, s.Next())
	assert.Equal(t, 2, s.State().Index)
}

func TestGotoOutOfRange(t *testing.T) {
	s := New(example())
	assert.ErrorIs(t, s.Goto(Count), ErrSceneOutOfRange)
	assert.ErrorIs(t, s.Goto(-1), ErrSceneOutOfRange)
	assert.Equal(t, 0, s.State().Index)
}

func TestReload(t *testing.T) {
	rec := &recorder{}
	s := New(example(), WithRenderer(rec))
	require.NoError(t, s.Goto(IndexComparison))
	require.NoError(t, s.SelectState("CA"))

	require.NoError(t, s.Reload([]types.Record{
		{State: "NY", Date: d("2020-02-01"), Cases: 1},
	}))
	assert.Equal(t, State{Index: IndexComparison}, s.State())
	assert.Equal(t, []string{"NY"}, s.States())
	assert.Equal(t, IndexComparison, rec.views[len(rec.views)-1].Index)
}

func TestEmptyDatasetViews(t *testing.T) {
	s := New(nil)
	for i := 0; i < Count; i++ {
		view := s.View(i)
		assert.Equal(t, i, view.Index)
		assert.Empty(t, view.Bars)
		assert.Empty(t, view.Series)
		assert.Empty(t, view.Highlight)
	}
}

func TestParseNavigation(t *testing.T) {
	n, err := ParseNavigation("WRAP")
	require.NoError(t, err)
	assert.Equal(t, Wrap, n)

	n, err = ParseNavigation("")
	require.NoError(t, err)
	assert.Equal(t, Saturate, n)

	_, err = ParseNavigation("bounce")
	assert.Error(t, err)
}
