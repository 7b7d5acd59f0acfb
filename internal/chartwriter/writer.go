// =============================================================================
// COVID Scenes - Chart Writer
// =============================================================================
//
// This module draws a scene View as an SVG or PNG chart with go-chart.
//
// DRAWING:
//   Bar-like scenes go through one parameterized call, bars(points, value,
//   style), which takes a field accessor and a style function:
//     heatmap     one pass over Value, each bar shaded by its share of the max
//     comparison  two passes (Value in the cases color, Secondary in the
//                 deaths color), interleaved per state
//   Time-series scenes go through lines(series, names, colors), one line per
//   series name with the same accessor pattern.
//
// =============================================================================

package chartwriter

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ginjaninja78/covid-scenes/internal/types"
)

// ErrNothingToDraw is returned for a View without data.
var ErrNothingToDraw = errors.New("scene has no data to draw")

// =============================================================================
// OPTIONS
// =============================================================================

// Options contains chart settings.
type Options struct {
	Width       int
	Height      int
	CasesColor  string
	DeathsColor string
	HeatColor   string

	// Format is "svg" or "png". Default: "svg".
	Format string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Width:       800,
		Height:      500,
		CasesColor:  "#1f77b4",
		DeathsColor: "#ff7f0e",
		HeatColor:   "#b2182b",
		Format:      "svg",
	}
}

// =============================================================================
// WRITER
// =============================================================================

// Writer draws Views.
type Writer struct {
	opts   Options
	cases  drawing.Color
	deaths drawing.Color
	heat   drawing.Color
}

// New creates a Writer. Unset options take their defaults.
func New(opts Options) *Writer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.CasesColor == "" {
		opts.CasesColor = def.CasesColor
	}
	if opts.DeathsColor == "" {
		opts.DeathsColor = def.DeathsColor
	}
	if opts.HeatColor == "" {
		opts.HeatColor = def.HeatColor
	}
	if opts.Format == "" {
		opts.Format = def.Format
	}

	return &Writer{
		opts:   opts,
		cases:  hexColor(opts.CasesColor),
		deaths: hexColor(opts.DeathsColor),
		heat:   hexColor(opts.HeatColor),
	}
}

// Extension returns the file extension for the configured format.
func (w *Writer) Extension() string {
	return "." + w.opts.Format
}

// ContentType returns the MIME type for the configured format.
func (w *Writer) ContentType() string {
	if w.opts.Format == "png" {
		return "image/png"
	}
	return "image/svg+xml"
}

func (w *Writer) provider() chart.RendererProvider {
	if w.opts.Format == "png" {
		return chart.PNG
	}
	return chart.SVG
}

// Write draws view to out.
//
// RETURNS:
//   - ErrNothingToDraw for a View without bars or series.
//   - A wrapped go-chart error if drawing fails.
func (w *Writer) Write(out io.Writer, view types.View) error {
	var err error

	switch view.Kind {
	case types.KindHeatmap:
		err = w.writeHeatmap(out, view)
	case types.KindComparison:
		err = w.writeComparison(out, view)
	case types.KindTimeSeries:
		err = w.writeTimeSeries(out, view)
	default:
		return fmt.Errorf("unknown scene kind %q", view.Kind)
	}

	if err != nil && !errors.Is(err, ErrNothingToDraw) {
		return fmt.Errorf("failed to draw %s chart: %w", view.Kind, err)
	}
	return err
}

// =============================================================================
// BAR SCENES
// =============================================================================

// accessor selects the measure drawn from a point.
type accessor func(p types.Point) float64

// styler styles a bar from its value and the largest value drawn.
type styler func(value, max float64) chart.Style

func value(p types.Point) float64     { return p.Value }
func secondary(p types.Point) float64 { return p.Secondary }

// bars turns points into go-chart bars using one accessor and one style.
func bars(points []types.Point, get accessor, style styler, label func(p types.Point) string) []chart.Value {
	max := 0.0
	for _, p := range points {
		if v := get(p); v > max {
			max = v
		}
	}

	out := make([]chart.Value, 0, len(points))
	for _, p := range points {
		v := get(p)
		out = append(out, chart.Value{Label: label(p), Value: v, Style: style(v, max)})
	}
	return out
}

// solid styles every bar in one color.
func solid(c drawing.Color) styler {
	return func(_, _ float64) chart.Style {
		return chart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1}
	}
}

// shaded styles a bar on a ramp from a pale tint to c by value/max.
func shaded(c drawing.Color) styler {
	return func(v, max float64) chart.Style {
		t := 1.0
		if max > 0 {
			t = v / max
		}
		fill := lerp(drawing.Color{R: 0xf7, G: 0xf7, B: 0xf7, A: 0xff}, c, 0.15+0.85*t)
		return chart.Style{FillColor: fill, StrokeColor: c, StrokeWidth: 1}
	}
}

func (w *Writer) writeHeatmap(out io.Writer, view types.View) error {
	if len(view.Bars) == 0 {
		return ErrNothingToDraw
	}

	label := func(p types.Point) string {
		if p.Label == view.Highlight {
			return "* " + p.Label
		}
		return p.Label
	}

	return w.renderBars(out, view, bars(view.Bars, value, shaded(w.heat), label))
}

func (w *Writer) writeComparison(out io.Writer, view types.View) error {
	if len(view.Bars) == 0 {
		return ErrNothingToDraw
	}

	casesBars := bars(view.Bars, value, solid(w.cases), func(p types.Point) string { return p.Label })
	deathsBars := bars(view.Bars, secondary, solid(w.deaths), func(types.Point) string { return "" })

	merged := make([]chart.Value, 0, 2*len(view.Bars))
	for i := range casesBars {
		merged = append(merged, casesBars[i], deathsBars[i])
	}

	return w.renderBars(out, view, merged)
}

func (w *Writer) renderBars(out io.Writer, view types.View, values []chart.Value) error {
	const (
		minBarWidth = 4
		barSpacing  = 4
		margin      = 120
	)

	width := w.opts.Width
	barWidth := (width-margin)/len(values) - barSpacing
	if barWidth < minBarWidth {
		barWidth = minBarWidth
		width = margin + len(values)*(barWidth+barSpacing)
	}

	max := 1.0
	for _, v := range values {
		if v.Value > max {
			max = v.Value
		}
	}

	bc := chart.BarChart{
		Title:      title(view),
		Width:      width,
		Height:     w.opts.Height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: max * 1.05},
			ValueFormatter: countFormatter,
		},
		Bars: values,
	}

	return bc.Render(w.provider(), out)
}

// =============================================================================
// TIME-SERIES SCENES
// =============================================================================

func (w *Writer) writeTimeSeries(out io.Writer, view types.View) error {
	if len(view.Series) == 0 {
		return ErrNothingToDraw
	}

	colors := []drawing.Color{w.cases, w.deaths}
	series := lines(view.Series, view.SeriesNames, colors)

	first := view.Series[0].Date
	last := view.Series[len(view.Series)-1].Date
	if !last.After(first) {
		last = first.Add(24 * time.Hour)
	}

	max := 1.0
	for _, dp := range view.Series {
		for _, v := range dp.Values {
			if v > max {
				max = v
			}
		}
	}

	ch := chart.Chart{
		Title:      title(view),
		Width:      w.opts.Width,
		Height:     w.opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(first),
				Max: chart.TimeToFloat64(last),
			},
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: max * 1.05},
			ValueFormatter: countFormatter,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return ch.Render(w.provider(), out)
}

// lines builds one time series per name; names[i] reads Values[i].
func lines(points []types.DatePoint, names []string, colors []drawing.Color) []chart.Series {
	out := make([]chart.Series, 0, len(names))

	for i, name := range names {
		xs := make([]time.Time, 0, len(points))
		ys := make([]float64, 0, len(points))
		for _, dp := range points {
			if i >= len(dp.Values) {
				continue
			}
			xs = append(xs, dp.Date)
			ys = append(ys, dp.Values[i])
		}

		// A single point is padded to a flat segment so it stays visible.
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(24*time.Hour))
			ys = append(ys, ys[0])
		}

		c := chart.ColorAlternateGray
		if i < len(colors) {
			c = colors[i]
		}

		out = append(out, chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: c, StrokeWidth: 2},
		})
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func title(view types.View) string {
	if view.Description == "" {
		return view.Title
	}
	return view.Title + " - " + view.Description
}

func countFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return humanCount(f)
	}
	return fmt.Sprintf("%v", v)
}

// humanCount prints a count with K/M suffixes.
func humanCount(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func hexColor(s string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}

func lerp(from, to drawing.Color, t float64) drawing.Color {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t)
	}
	return drawing.Color{R: mix(from.R, to.R), G: mix(from.G, to.G), B: mix(from.B, to.B), A: 0xff}
}
