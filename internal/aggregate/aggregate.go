// Package aggregate derives the per-state and per-date views that the scenes
// draw. Every function is pure: inputs are never mutated and the same input
// always yields the same output, whatever its order.
package aggregate

import (
	"sort"
	"time"

	"github.com/ginjaninja78/covid-scenes/internal/types"
)

// ByState sums cases and deaths per state. Only states present in records
// appear as keys. Empty input yields an empty, non-nil map.
func ByState(records []types.Record) types.ByState {
	out := make(types.ByState)
	for _, r := range records {
		t := out[r.State]
		t.Cases += r.Cases
		t.Deaths += r.Deaths
		out[r.State] = t
	}
	return out
}

// ByDate sums cases and deaths across states for each date, sorted strictly
// ascending. Empty input yields an empty, non-nil slice.
func ByDate(records []types.Record) []types.DateTotal {
	index := make(map[time.Time]int)
	out := make([]types.DateTotal, 0)

	for _, r := range records {
		key := r.Date.UTC()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, types.DateTotal{Date: key})
		}
		out[i].TotalCases += r.Cases
		out[i].TotalDeaths += r.Deaths
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].Date.Before(out[b].Date)
	})
	return out
}

// FilterByState returns the records whose State equals state, in input
// order. An empty state returns a copy of the full sequence.
func FilterByState(records []types.Record, state string) []types.Record {
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if state == "" || r.State == state {
			out = append(out, r)
		}
	}
	return out
}

// Ranked lists the state totals by cases descending, then by state name.
func Ranked(byState types.ByState) []types.StateTotal {
	out := make([]types.StateTotal, 0, len(byState))
	for state, totals := range byState {
		out = append(out, types.StateTotal{State: state, Totals: totals})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Cases != out[b].Cases {
			return out[a].Cases > out[b].Cases
		}
		return out[a].State < out[b].State
	})
	return out
}

// Peak returns the state with the most cases. ok is false for an empty map.
func Peak(byState types.ByState) (types.StateTotal, bool) {
	ranked := Ranked(byState)
	if len(ranked) == 0 {
		return types.StateTotal{}, false
	}
	return ranked[0], true
}

// Totals is a whole-dataset summary.
type Totals struct {
	Records int       `json:"records"`
	States  int       `json:"states"`
	Dates   int       `json:"dates"`
	First   time.Time `json:"first,omitempty"`
	Last    time.Time `json:"last,omitempty"`
	types.Totals
}

// Summary counts records, distinct states and dates, the covered date range
// and the overall case and death totals.
func Summary(records []types.Record) Totals {
	s := Totals{Records: len(records)}
	states := make(map[string]struct{})
	dates := make(map[time.Time]struct{})

	for _, r := range records {
		states[r.State] = struct{}{}
		dates[r.Date.UTC()] = struct{}{}
		s.Cases += r.Cases
		s.Deaths += r.Deaths

		if s.First.IsZero() || r.Date.Before(s.First) {
			s.First = r.Date.UTC()
		}
		if r.Date.After(s.Last) {
			s.Last = r.Date.UTC()
		}
	}

	s.States = len(states)
	s.Dates = len(dates)
	return s
}
