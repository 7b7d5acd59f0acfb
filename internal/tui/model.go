// =============================================================================
// COVID Scenes - Terminal Presenter
// =============================================================================
//
// A bubbletea program that drives a scene Selector from the keyboard:
//
//   right, n   next scene
//   left, p    previous scene
//   /          type a state for the comparison filter (enter applies)
//   esc        clear the filter, or cancel the filter input
//   q, ctrl+c  quit
//
// The Selector's renderer stores the latest View in the model; View() draws
// it with lipgloss.
//
// =============================================================================

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/scene"
	"github.com/ginjaninja78/covid-scenes/internal/types"
)

type mode int

const (
	modeView mode = iota
	modeFilter
)

const (
	noticeInfo  = "info"
	noticeWarn  = "warn"
	noticeError = "error"

	noticeDuration = 3 * time.Second
)

type clearNoticeMsg struct{ id int }

// Options configures the presenter.
type Options struct {
	Navigation scene.Navigation
	Colors     Colors
	Logger     *zap.Logger

	// Notice is shown when the program starts, e.g. a stale-data warning.
	Notice string
}

// Model is the bubbletea model.
type Model struct {
	selector *scene.Selector
	current  types.View
	colors   Colors
	logger   *zap.Logger

	mode        mode
	filterInput textinput.Model

	width, height int

	notice     string
	noticeKind string
	noticeSeq  int
	initNotice string
}

// NewModel creates the model over records, positioned at the first scene.
func NewModel(records []types.Record, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Colors == (Colors{}) {
		opts.Colors = Colors{Cases: "#1f77b4", Deaths: "#ff7f0e", Heat: "#b2182b"}
	}

	fi := textinput.New()
	fi.Placeholder = "State (empty clears)"
	fi.CharLimit = 64
	fi.Width = 30

	m := &Model{
		colors:      opts.Colors,
		logger:      opts.Logger.With(zap.String("component", "tui")),
		mode:        modeView,
		filterInput: fi,
		width:       80,
		height:      24,
		initNotice:  opts.Notice,
	}
	m.selector = scene.New(records,
		scene.WithNavigation(opts.Navigation),
		scene.WithRenderer(scene.RendererFunc(m.show)),
		scene.WithLogger(opts.Logger),
	)
	_ = m.selector.Render()
	return m
}

// show is the Selector's renderer.
func (m *Model) show(view types.View) error {
	m.current = view
	return nil
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, records []types.Record, opts Options) error {
	p := tea.NewProgram(NewModel(records, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run presenter: %w", err)
	}
	return nil
}

// State returns the selector state.
func (m *Model) State() scene.State {
	return m.selector.State()
}

func (m *Model) Init() tea.Cmd {
	if m.initNotice != "" {
		return m.startNotice(m.initNotice, noticeWarn)
	}
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.mode == modeFilter {
			return m.handleFilterKey(msg)
		}
		return m.handleViewKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case clearNoticeMsg:
		if msg.id == m.noticeSeq {
			m.notice, m.noticeKind = "", ""
		}
	}
	return m, nil
}

func (m *Model) handleViewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "right", "n":
		return m, m.apply(m.selector.Next())
	case "left", "p":
		return m, m.apply(m.selector.Prev())
	case "/":
		if m.selector.State().Index != scene.IndexComparison {
			return m, m.apply(scene.ErrSceneNotFilterable)
		}
		m.mode = modeFilter
		m.filterInput.SetValue(m.selector.State().SelectedState)
		return m, m.filterInput.Focus()
	case "esc":
		if m.selector.State().SelectedState != "" {
			return m, m.apply(m.selector.SelectState(""))
		}
	}
	return m, nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeView
		m.filterInput.Blur()
		return m, m.apply(m.selector.SelectState(m.filterInput.Value()))
	case "esc":
		m.mode = modeView
		m.filterInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// apply turns a Selector error into a notice.
func (m *Model) apply(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	m.logger.Debug("scene operation rejected", zap.Error(err))

	kind := noticeWarn
	var renderErr *scene.RenderError
	if errors.As(err, &renderErr) {
		kind = noticeError
	}
	return m.startNotice(err.Error(), kind)
}

func (m *Model) startNotice(text, kind string) tea.Cmd {
	m.notice, m.noticeKind = text, kind
	m.noticeSeq++
	id := m.noticeSeq
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg { return clearNoticeMsg{id: id} })
}

// =============================================================================
// VIEW
// =============================================================================

func (m *Model) View() string {
	v := m.current
	width := m.width - 4

	header := titleStyle.Render(fmt.Sprintf("[%d/%d] %s", v.Index+1, scene.Count, v.Title))
	parts := []string{header}
	if v.Description != "" {
		parts = append(parts, descStyle.Render(v.Description))
	}
	parts = append(parts, "")

	bodyRows := m.height - 8
	switch v.Kind {
	case types.KindTimeSeries:
		parts = append(parts, drawSeries(v, m.colors, width))
	default:
		parts = append(parts, drawBars(v, m.colors, width, bodyRows))
	}

	if m.mode == modeFilter {
		parts = append(parts, "", inputStyle.Render(m.filterInput.View()))
	}
	parts = append(parts, "", m.footer(width))

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m *Model) footer(width int) string {
	label := "VIEW"
	if m.mode == modeFilter {
		label = "FILTER"
	}
	filter := "all states"
	if s := m.selector.State().SelectedState; s != "" {
		filter = s
	}

	left := pillStyle.Render(label) + footerStyle.Render(" filter: "+filter+" ")
	if m.notice != "" {
		left += " " + noticeStyles[m.noticeKind].Render(m.notice)
	}
	legend := legendStyle.Render("←/p prev  →/n next  / filter  esc clear  q quit")

	gap := width - lipgloss.Width(left) - lipgloss.Width(legend)
	if gap < 1 {
		return lipgloss.JoinVertical(lipgloss.Left, left, legend)
	}
	return left + strings.Repeat(" ", gap) + legend
}
