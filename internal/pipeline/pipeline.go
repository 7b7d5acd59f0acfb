// =============================================================================
// COVID Scenes - Render Pipeline
// =============================================================================
//
// This module runs one batch render: it loads the dataset, drives a scene
// Selector through the requested scenes and writes every rendered scene to
// the output directory.
//
// PIPELINE:
//   1. Prepare the output directory
//   2. Load and parse the dataset
//   3. Log malformed rows
//   4. Render each requested scene through the Selector
//   5. Write the run summary
//
// A scene that fails to render does not stop the run; the failure is kept
// in the Result and the remaining scenes are still rendered.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/aggregate"
	"github.com/ginjaninja78/covid-scenes/internal/chartwriter"
	"github.com/ginjaninja78/covid-scenes/internal/config"
	"github.com/ginjaninja78/covid-scenes/internal/loader"
	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/scene"
	"github.com/ginjaninja78/covid-scenes/internal/xlsxio"
	"github.com/ginjaninja78/covid-scenes/pkg/utils"
)

// ErrStateWithoutComparison is returned for a Request that filters by state
// but does not render the comparison scene.
var ErrStateWithoutComparison = errors.New("a state filter needs the comparison scene (2)")

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one run.
type Result struct {
	// Source is the dataset that was rendered.
	Source string

	// OutputFiles lists the written scene files, in render order.
	OutputFiles []string

	// SummaryFile and IssueLog are the written log files, if any.
	SummaryFile string
	IssueLog    string

	// Success is set when every requested scene was written.
	Success bool

	// Error holds the load failure or the joined render failures.
	Error error

	// Stale is set when the source failed and a cached copy was rendered.
	Stale bool

	Stats ProcessingStats
}

// ProcessingStats contains statistics about the run.
type ProcessingStats struct {
	RowsProcessed  int
	Records        int
	SkippedRows    int
	ZeroFilledRows int
	ScenesRendered int
	RenderFailures int
	ProcessingTime time.Duration
}

// Request selects what to render.
type Request struct {
	// Scenes are the scene indexes to render. Empty renders all scenes.
	Scenes []int

	// State, when set, also renders the comparison scene filtered to it.
	State string
}

// Validate rejects a State filter when the comparison scene is not among
// the scenes to render.
func (r Request) Validate() error {
	if r.State == "" {
		return nil
	}
	for _, index := range scenesOf(r) {
		if index == scene.IndexComparison {
			return nil
		}
	}
	return ErrStateWithoutComparison
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline renders scenes to files.
type Pipeline struct {
	cfg    *config.MainConfig
	loader *loader.Loader
	files  *utils.FileManager
	writer *chartwriter.Writer
	logger *zap.Logger
}

// New creates a Pipeline.
func New(cfg *config.MainConfig, l *loader.Loader, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		loader: l,
		files:  utils.NewFileManager(cfg.OutputDir),
		writer: chartwriter.New(ChartOptions(cfg)),
		logger: logger.With(zap.String("component", "pipeline")),
	}
}

// ChartOptions converts the chart configuration.
func ChartOptions(cfg *config.MainConfig) chartwriter.Options {
	return chartwriter.Options{
		Width:       cfg.Chart.Width,
		Height:      cfg.Chart.Height,
		CasesColor:  cfg.Chart.CasesColor,
		DeathsColor: cfg.Chart.DeathsColor,
		HeatColor:   cfg.Chart.HeatColor,
		Format:      cfg.Chart.Format,
	}
}

// Run executes the pipeline.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	startTime := time.Now()
	result := Result{Source: p.cfg.Source}

	if err := req.Validate(); err != nil {
		result.Error = err
		return result
	}

	// =========================================================================
	// STEP 1: PREPARE OUTPUT DIRECTORY
	// =========================================================================

	if err := p.files.EnsureDirectories(); err != nil {
		result.Error = err
		return result
	}

	// =========================================================================
	// STEP 2: LOAD DATASET
	// =========================================================================

	ds, err := p.loader.Load(ctx, p.cfg.Source)
	if err != nil && !errors.Is(err, records.ErrEmptyDataset) {
		result.Error = fmt.Errorf("failed to load dataset: %w", err)
		return result
	}
	if err != nil {
		p.logger.Warn("dataset is empty", zap.String("source", p.cfg.Source))
	}
	if ds.Stale {
		p.logger.Warn("rendering cached copy", zap.Error(ds.FetchErr))
	}

	result.Stale = ds.Stale
	result.Stats.RowsProcessed = ds.Report.Rows
	result.Stats.Records = len(ds.Records)
	result.Stats.SkippedRows = ds.Report.Skipped()
	result.Stats.ZeroFilledRows = ds.Report.ZeroFilled()

	// =========================================================================
	// STEP 3: LOG MALFORMED ROWS
	// =========================================================================

	issueLog, err := utils.WriteIssueLog(IssueEntries(ds.Report), ds.Source, p.cfg.OutputDir)
	if err != nil {
		p.logger.Warn("failed to write issue log", zap.Error(err))
	}
	result.IssueLog = issueLog

	// =========================================================================
	// STEP 4: RENDER SCENES
	// =========================================================================

	renderer := chartwriter.NewFileRenderer(p.writer, p.files, p.cfg.OutputNameFormat, p.logger)
	selector := scene.New(ds.Records,
		scene.WithNavigation(p.cfg.NavigationPolicy()),
		scene.WithRenderer(renderer),
		scene.WithLogger(p.logger),
	)

	var failures []error
	for _, index := range scenesOf(req) {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		if err := renderAt(selector, index); err != nil {
			failures = append(failures, err)
		}
		if index == scene.IndexComparison && req.State != "" {
			if err := selector.SelectState(req.State); err != nil {
				failures = append(failures, err)
			}
		}
	}

	written := renderer.Written()
	for _, w := range written {
		result.OutputFiles = append(result.OutputFiles, w.OutputFile)
	}
	result.Stats.ScenesRendered = len(written)
	result.Stats.RenderFailures = len(failures)

	// =========================================================================
	// STEP 5: WRITE SUMMARY
	// =========================================================================

	result.Stats.ProcessingTime = time.Since(startTime)

	summary := utils.ProcessingSummary{
		StartTime:    startTime,
		EndTime:      time.Now(),
		Source:       ds.Source,
		TotalRows:    ds.Report.Rows,
		Records:      len(ds.Records),
		SkippedRows:  result.Stats.SkippedRows,
		ZeroFilled:   result.Stats.ZeroFilledRows,
		States:       len(selector.States()),
		Dates:        len(selector.ByDate()),
		RenderedFile: written,
	}
	for _, f := range failures {
		summary.Failures = append(summary.Failures, f.Error())
	}

	summaryFile, err := utils.WriteSummaryLog(summary, p.cfg.OutputDir)
	if err != nil {
		p.logger.Warn("failed to write summary", zap.Error(err))
	}
	result.SummaryFile = summaryFile

	result.Error = errors.Join(failures...)
	result.Success = len(failures) == 0

	p.logger.Info("render complete",
		zap.Int("scenes", result.Stats.ScenesRendered),
		zap.Int("failures", result.Stats.RenderFailures),
		zap.Duration("elapsed", result.Stats.ProcessingTime),
	)

	return result
}

// Export loads the dataset and writes its aggregations as a workbook named
// name in the output directory.
//
// RETURNS:
//   - The path of the written workbook.
//   - A load or write error.
func (p *Pipeline) Export(ctx context.Context, name string) (string, error) {
	if err := p.files.EnsureDirectories(); err != nil {
		return "", err
	}

	ds, err := p.loader.Load(ctx, p.cfg.Source)
	if err != nil && !errors.Is(err, records.ErrEmptyDataset) {
		return "", fmt.Errorf("failed to load dataset: %w", err)
	}

	name = utils.GenerateOutputFileName(name, nil, ".xlsx")
	path, err := p.files.WriteFile(name, func(w io.Writer) error {
		return xlsxio.WriteAggregates(w, xlsxio.Export{
			Records: ds.Records,
			Ranked:  aggregate.Ranked(aggregate.ByState(ds.Records)),
			ByDate:  aggregate.ByDate(ds.Records),
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to export: %w", err)
	}

	p.logger.Info("workbook exported", zap.String("path", path), zap.Int("records", len(ds.Records)))
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// renderAt draws scene index, whether or not the selector is already there.
func renderAt(s *scene.Selector, index int) error {
	if s.State().Index == index {
		return s.Render()
	}
	return s.Goto(index)
}

func scenesOf(req Request) []int {
	if len(req.Scenes) > 0 {
		return req.Scenes
	}
	all := make([]int, scene.Count)
	for i := range all {
		all[i] = i
	}
	return all
}

// IssueEntries converts a parse report into issue log entries.
func IssueEntries(report records.Report) []utils.IssueLogEntry {
	entries := make([]utils.IssueLogEntry, 0, len(report.Issues))
	for _, issue := range report.Issues {
		entries = append(entries, utils.IssueLogEntry{
			RowNumber:  issue.Err.Row,
			FieldName:  issue.Err.Field,
			FieldValue: issue.Err.Value,
			Reason:     issue.Err.Reason,
			Action:     string(issue.Action),
		})
	}
	return entries
}
