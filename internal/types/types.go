// =============================================================================
// COVID Scenes - Shared Types
// =============================================================================
//
// This package contains the data types shared by the parser, the aggregator,
// the scene selector and every renderer. Keeping them here avoids import
// cycles between those packages:
//   - records     produces []Record
//   - aggregate   derives ByState / []DateTotal from []Record
//   - scene       builds a View from the aggregations
//   - chartwriter, server, tui consume View
//
// =============================================================================

package types

import "time"

// DateLayout is the canonical layout used when a date is printed or
// serialized (JSON, sheet cells, file names).
const DateLayout = "2006-01-02"

// =============================================================================
// RECORD
// =============================================================================

// Record is a single parsed observation of case and death counts for one
// state on one date. Records are produced once by the parser and never
// mutated afterwards.
type Record struct {
	// State is the state name exactly as it appears in the source.
	State string `json:"state" validate:"required"`

	// Date is the observation date, normalized to midnight UTC.
	Date time.Time `json:"date" validate:"required"`

	// Cases is the reported case count.
	Cases int64 `json:"cases" validate:"gte=0"`

	// Deaths is the reported death count.
	Deaths int64 `json:"deaths" validate:"gte=0"`
}

// =============================================================================
// AGGREGATIONS
// =============================================================================

// Totals holds summed case and death counts.
type Totals struct {
	Cases  int64 `json:"cases"`
	Deaths int64 `json:"deaths"`
}

// ByState maps a state name to its summed totals across all dates.
// Only states present in the input appear as keys.
type ByState map[string]Totals

// StateTotal is one entry of a ranked ByState listing.
type StateTotal struct {
	State string `json:"state"`
	Totals
}

// DateTotal holds the totals summed across all states for one date.
type DateTotal struct {
	Date        time.Time `json:"date"`
	TotalCases  int64     `json:"totalCases"`
	TotalDeaths int64     `json:"totalDeaths"`
}

// =============================================================================
// RENDERER INPUT
// =============================================================================

// Point is a labelled value for bar and heatmap scenes. Secondary carries
// the second measure for comparison scenes and is zero otherwise.
type Point struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Secondary float64 `json:"secondary,omitempty"`
}

// DatePoint is one tuple of a time-series scene. Values are ordered the
// same way as View.SeriesNames.
type DatePoint struct {
	Date   time.Time `json:"date"`
	Values []float64 `json:"values"`
}

// SceneKind identifies how a View is meant to be drawn.
type SceneKind string

const (
	KindHeatmap    SceneKind = "heatmap"
	KindTimeSeries SceneKind = "timeseries"
	KindComparison SceneKind = "comparison"
)

// View is everything a renderer needs to draw one scene. Exactly one of
// Bars or Series is populated, depending on Kind.
type View struct {
	Index         int         `json:"index"`
	Kind          SceneKind   `json:"kind"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	SelectedState string      `json:"selectedState,omitempty"`
	Bars          []Point     `json:"bars,omitempty"`
	SeriesNames   []string    `json:"seriesNames,omitempty"`
	Series        []DatePoint `json:"series,omitempty"`

	// Highlight names the bar that should be annotated, if any.
	Highlight string `json:"highlight,omitempty"`
}
