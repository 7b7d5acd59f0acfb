package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ginjaninja78/covid-scenes/internal/types"
)

const (
	barRune  = "█"
	minBar   = 10
	maxLabel = 24
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// drawBars draws one row per point, or two for comparison scenes, scaled to
// the largest value. At most rows lines are drawn.
func drawBars(view types.View, colors Colors, width, rows int) string {
	if len(view.Bars) == 0 {
		return descStyle.Render("nothing to draw")
	}

	labelWidth := 0
	peak := 0.0
	for _, p := range view.Bars {
		labelWidth = max(labelWidth, lipgloss.Width(p.Label))
		peak = math.Max(peak, math.Max(p.Value, p.Secondary))
	}
	labelWidth = min(labelWidth, maxLabel)
	barWidth := max(width-labelWidth-16, minBar)

	perPoint := 1
	if view.Kind == types.KindComparison {
		perPoint = 2
	}
	shown := len(view.Bars)
	if rows > 0 && shown*perPoint > rows {
		shown = max(rows/perPoint-1, 1)
	}

	var b strings.Builder
	for _, p := range view.Bars[:shown] {
		mark := "  "
		if p.Label == view.Highlight {
			mark = " " + highlightMark
		}
		label := labelStyle.Width(labelWidth).Render(truncate(p.Label, labelWidth)) + mark

		switch view.Kind {
		case types.KindComparison:
			b.WriteString(barLine(label, p.Value, peak, barWidth, barStyle(colors.Cases)))
			b.WriteString(barLine(strings.Repeat(" ", labelWidth+2), p.Secondary, peak, barWidth, barStyle(colors.Deaths)))
		default:
			b.WriteString(barLine(label, p.Value, peak, barWidth, barStyle(colors.Heat)))
		}
	}
	if hidden := len(view.Bars) - shown; hidden > 0 {
		b.WriteString(descStyle.Render(fmt.Sprintf("… and %d more", hidden)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func barLine(label string, v, peak float64, width int, style lipgloss.Style) string {
	n := 0
	if peak > 0 {
		n = int(math.Round(v / peak * float64(width)))
	}
	return fmt.Sprintf("%s %s %s\n", label, style.Render(strings.Repeat(barRune, n)), valueStyle.Render(humanCount(v)))
}

// drawSeries draws each series as a sparkline of at most width columns.
func drawSeries(view types.View, colors Colors, width int) string {
	if len(view.Series) == 0 {
		return descStyle.Render("nothing to draw")
	}

	palette := []string{colors.Cases, colors.Deaths}
	first := view.Series[0].Date.Format(types.DateLayout)
	last := view.Series[len(view.Series)-1].Date.Format(types.DateLayout)

	var b strings.Builder
	for i, name := range view.SeriesNames {
		values := make([]float64, len(view.Series))
		for j, pt := range view.Series {
			if i < len(pt.Values) {
				values[j] = pt.Values[i]
			}
		}
		color := palette[i%len(palette)]
		fmt.Fprintf(&b, "%s %s %s\n",
			labelStyle.Width(8).Render(name),
			barStyle(color).Render(sparkline(values, max(width-24, minBar))),
			valueStyle.Render(humanCount(values[len(values)-1])))
	}
	fmt.Fprintf(&b, "%s %s", strings.Repeat(" ", 8), descStyle.Render(first+" → "+last))
	return b.String()
}

// sparkline buckets values into at most width columns, keeping each
// bucket's maximum.
func sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}
	buckets := min(len(values), width)
	peaks := make([]float64, buckets)
	peak := 0.0
	for i, v := range values {
		k := i * buckets / len(values)
		peaks[k] = math.Max(peaks[k], v)
		peak = math.Max(peak, v)
	}

	out := make([]rune, buckets)
	for i, v := range peaks {
		level := 0
		if peak > 0 {
			level = int(v / peak * float64(len(sparkRunes)-1))
		}
		out[i] = sparkRunes[level]
	}
	return string(out)
}

func humanCount(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
