// =============================================================================
// COVID Scenes - Scene Selector
// =============================================================================
//
// The Selector owns the only mutable state of a session: the current scene
// index and the optional state filter. It holds the parsed dataset and its
// aggregations, builds the View for the active scene and hands it to a
// Renderer after every transition that changes the state.
//
// SCENES:
//   0  Heatmap      per-state case totals, peak state highlighted
//   1  Time series  daily case and death totals across all states
//   2  Comparison   per-state cases against deaths, filterable by state
//
// CONCURRENCY:
//   A Selector is not safe for concurrent use. Hosts that receive events
//   concurrently must serialize calls.
//
// =============================================================================

package scene

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/aggregate"
	"github.com/ginjaninja78/covid-scenes/internal/types"
)

// Scene indexes.
const (
	IndexHeatmap = iota
	IndexTimeSeries
	IndexComparison

	// Count is the number of scenes.
	Count
)

var (
	// ErrSceneNotFilterable is returned by SelectState outside the
	// comparison scene.
	ErrSceneNotFilterable = errors.New("state filter is only available on the comparison scene")

	// ErrUnknownState is returned by SelectState for a state absent from
	// the dataset.
	ErrUnknownState = errors.New("state not present in dataset")

	// ErrSceneOutOfRange is returned by Goto for an invalid index.
	ErrSceneOutOfRange = errors.New("scene index out of range")
)

// =============================================================================
// NAVIGATION POLICY
// =============================================================================

// Navigation decides what Next and Prev do at the ends of the scene list.
type Navigation string

const (
	// Saturate stops at the first and last scene.
	Saturate Navigation = "saturate"

	// Wrap moves from the last scene to the first and back.
	Wrap Navigation = "wrap"
)

// ParseNavigation converts a configuration value into a Navigation.
func ParseNavigation(s string) (Navigation, error) {
	switch n := Navigation(strings.ToLower(strings.TrimSpace(s))); n {
	case Saturate, Wrap:
		return n, nil
	case "":
		return Saturate, nil
	default:
		return "", fmt.Errorf("unknown navigation %q (want saturate or wrap)", s)
	}
}

// =============================================================================
// STATE, RENDERER AND ERRORS
// =============================================================================

// State is the navigation state of a session.
type State struct {
	Index         int    `json:"index"`
	SelectedState string `json:"selectedState,omitempty"`
}

// Renderer draws one scene.
type Renderer interface {
	Render(view types.View) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(view types.View) error

// Render calls f(view).
func (f RendererFunc) Render(view types.View) error {
	return f(view)
}

// RenderError reports a failed redraw. The transition that triggered it
// has already been applied.
type RenderError struct {
	Index int
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render scene %d: %v", e.Index, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SELECTOR
// =============================================================================

// Selector is the finite-state controller over the scene list.
type Selector struct {
	records []types.Record
	byState types.ByState
	byDate  []types.DateTotal
	states  []string

	nav      Navigation
	renderer Renderer
	logger   *zap.Logger

	state State
}

// Option configures a Selector.
type Option func(*Selector)

// WithNavigation sets the navigation policy. The default is Saturate.
func WithNavigation(n Navigation) Option {
	return func(s *Selector) { s.nav = n }
}

// WithRenderer sets the renderer notified on every transition.
func WithRenderer(r Renderer) Option {
	return func(s *Selector) { s.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

// New creates a Selector at scene 0 with no filter. records must not be
// modified afterwards.
func New(records []types.Record, opts ...Option) *Selector {
	s := &Selector{
		nav:    Saturate,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setDataset(records)
	return s
}

func (s *Selector) setDataset(records []types.Record) {
	if records == nil {
		records = []types.Record{}
	}
	s.records = records
	s.byState = aggregate.ByState(records)
	s.byDate = aggregate.ByDate(records)

	s.states = make([]string, 0, len(s.byState))
	for state := range s.byState {
		s.states = append(s.states, state)
	}
	sort.Strings(s.states)
}

// State returns the current navigation state.
func (s *Selector) State() State {
	return s.state
}

// Records returns the dataset.
func (s *Selector) Records() []types.Record {
	return s.records
}

// ByState returns the per-state totals of the dataset.
func (s *Selector) ByState() types.ByState {
	return s.byState
}

// ByDate returns the daily totals of the dataset.
func (s *Selector) ByDate() []types.DateTotal {
	return s.byDate
}

// States returns the distinct states in the dataset, sorted by name.
func (s *Selector) States() []string {
	return s.states
}

// Next advances one scene.
func (s *Selector) Next() error {
	return s.move(1)
}

// Prev goes back one scene.
func (s *Selector) Prev() error {
	return s.move(-1)
}

func (s *Selector) move(step int) error {
	next := s.state.Index + step

	switch s.nav {
	case Wrap:
		next = ((next % Count) + Count) % Count
	default:
		if next < 0 {
			next = 0
		}
		if next >= Count {
			next = Count - 1
		}
	}

	return s.transition(State{Index: next, SelectedState: s.state.SelectedState})
}

// Goto jumps to scene index.
func (s *Selector) Goto(index int) error {
	if index < 0 || index >= Count {
		return fmt.Errorf("%w: %d", ErrSceneOutOfRange, index)
	}
	return s.transition(State{Index: index, SelectedState: s.state.SelectedState})
}

// SelectState sets the comparison filter. An empty state clears it.
// Outside the comparison scene it returns ErrSceneNotFilterable and the
// state is unchanged.
func (s *Selector) SelectState(state string) error {
	if s.state.Index != IndexComparison {
		return ErrSceneNotFilterable
	}
	state = strings.TrimSpace(state)
	if state != "" {
		if _, ok := s.byState[state]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownState, state)
		}
	}
	return s.transition(State{Index: s.state.Index, SelectedState: state})
}

// Reload replaces the dataset, keeping the scene index. A filter naming a
// state that is no longer present is cleared. The current scene is redrawn.
func (s *Selector) Reload(records []types.Record) error {
	s.setDataset(records)
	if _, ok := s.byState[s.state.SelectedState]; !ok {
		s.state.SelectedState = ""
	}
	return s.Render()
}

// Render draws the current scene without changing state.
func (s *Selector) Render() error {
	if s.renderer == nil {
		return nil
	}
	if err := s.renderer.Render(s.Current()); err != nil {
		s.logger.Warn("scene render failed", zap.Int("scene", s.state.Index), zap.Error(err))
		return &RenderError{Index: s.state.Index, Err: err}
	}
	return nil
}

func (s *Selector) transition(next State) error {
	if next == s.state {
		return nil
	}
	s.logger.Debug("scene transition",
		zap.Int("from", s.state.Index),
		zap.Int("to", next.Index),
		zap.String("state", next.SelectedState),
	)
	s.state = next
	return s.Render()
}

// Current builds the View for the active scene.
func (s *Selector) Current() types.View {
	return s.View(s.state.Index)
}

// View builds the View for scene index using the current filter. An index
// outside the scene list yields a zero View.
func (s *Selector) View(index int) types.View {
	switch index {
	case IndexHeatmap:
		return HeatmapView(s.byState)
	case IndexTimeSeries:
		return TimeSeriesView(s.byDate)
	case IndexComparison:
		return ComparisonView(s.records, s.state.SelectedState)
	default:
		return types.View{}
	}
}
