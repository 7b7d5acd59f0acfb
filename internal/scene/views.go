package scene

import (
	"fmt"

	"github.com/ginjaninja78/covid-scenes/internal/aggregate"
	"github.com/ginjaninja78/covid-scenes/internal/types"
)

// Series names used by the time-series and comparison scenes.
const (
	SeriesCases  = "Cases"
	SeriesDeaths = "Deaths"
)

// HeatmapView shows per-state case totals, largest first, with the peak
// state highlighted.
func HeatmapView(byState types.ByState) types.View {
	view := types.View{
		Index:       IndexHeatmap,
		Kind:        types.KindHeatmap,
		Title:       "Total Cases by State",
		SeriesNames: []string{SeriesCases},
		Bars:        make([]types.Point, 0, len(byState)),
	}

	for _, st := range aggregate.Ranked(byState) {
		view.Bars = append(view.Bars, types.Point{Label: st.State, Value: float64(st.Cases)})
	}

	if peak, ok := aggregate.Peak(byState); ok {
		view.Highlight = peak.State
		view.Description = fmt.Sprintf("Highest cases in %s (%d)", peak.State, peak.Cases)
	}
	return view
}

// TimeSeriesView shows daily case and death totals across all states.
func TimeSeriesView(byDate []types.DateTotal) types.View {
	view := types.View{
		Index:       IndexTimeSeries,
		Kind:        types.KindTimeSeries,
		Title:       "Daily Cases and Deaths",
		SeriesNames: []string{SeriesCases, SeriesDeaths},
		Series:      make([]types.DatePoint, 0, len(byDate)),
	}

	for _, dt := range byDate {
		view.Series = append(view.Series, types.DatePoint{
			Date:   dt.Date,
			Values: []float64{float64(dt.TotalCases), float64(dt.TotalDeaths)},
		})
	}

	if n := len(byDate); n > 0 {
		view.Description = fmt.Sprintf("%s to %s",
			byDate[0].Date.Format(types.DateLayout), byDate[n-1].Date.Format(types.DateLayout))
	}
	return view
}

// ComparisonView shows cases against deaths per state. A non-empty state
// limits the view to that state.
func ComparisonView(records []types.Record, state string) types.View {
	byState := aggregate.ByState(aggregate.FilterByState(records, state))

	view := types.View{
		Index:         IndexComparison,
		Kind:          types.KindComparison,
		Title:         "Cases vs Deaths by State",
		SelectedState: state,
		SeriesNames:   []string{SeriesCases, SeriesDeaths},
		Bars:          make([]types.Point, 0, len(byState)),
	}
	if state != "" {
		view.Title = fmt.Sprintf("Cases vs Deaths in %s", state)
	}

	for _, st := range aggregate.Ranked(byState) {
		view.Bars = append(view.Bars, types.Point{
			Label:     st.State,
			Value:     float64(st.Cases),
			Secondary: float64(st.Deaths),
		})
	}
	return view
}
