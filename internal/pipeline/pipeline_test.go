package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/chartwriter"
	"github.com/ginjaninja78/covid-scenes/internal/config"
	"github.com/ginjaninja78/covid-scenes/internal/loader"
	"github.com/ginjaninja78/covid-scenes/internal/scene"
)

const sample = "date,state,fips,cases,deaths\n" +
	"2020-01-01,NY,36,10,1\n" +
	"2020-01-02,NY,36,5,0\n" +
	"2020-01-01,CA,06,3,0\n" +
	"2020-01-02,CA,06,oops,0\n"

func setup(t *testing.T, content string) (*Pipeline, *config.MainConfig) {
	t.Helper()
	dir := t.TempDir()

	source := filepath.Join(dir, "us-states.csv")
	require.NoError(t, os.WriteFile(source, []byte(content), 0644))

	cfg := config.Default()
	cfg.Source = source
	cfg.OutputDir = filepath.Join(dir, "out")

	l := loader.New(loader.Options{CSV: cfg.CSVSettings.ParserSettings(), Parse: cfg.ParseOptions()}, nil, zap.NewNop())
	return New(cfg, l, zap.NewNop()), cfg
}

func TestRun_AllScenes(t *testing.T) {
	p, cfg := setup(t, sample)

	result := p.Run(context.Background(), Request{})
	require.NoError(t, result.Error)
	assert.True(t, result.Success)

	require.Len(t, result.OutputFiles, scene.Count)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "0_heatmap_all.svg"), result.OutputFiles[0])
	assert.Equal(t, filepath.Join(cfg.OutputDir, "1_timeseries_all.svg"), result.OutputFiles[1])
	assert.Equal(t, filepath.Join(cfg.OutputDir, "2_comparison_all.svg"), result.OutputFiles[2])
	for _, f := range result.OutputFiles {
		assert.FileExists(t, f)
	}

	assert.Equal(t, 4, result.Stats.RowsProcessed)
	assert.Equal(t, 4, result.Stats.Records)
	assert.Equal(t, 1, result.Stats.ZeroFilledRows)
	assert.FileExists(t, result.SummaryFile)
	assert.FileExists(t, result.IssueLog)
}

func TestRun_ComparisonWithState(t *testing.T) {
	p, cfg := setup(t, sample)

	result := p.Run(context.Background(), Request{Scenes: []int{scene.IndexComparison}, State: "NY"})
	require.NoError(t, result.Error)
	assert.Equal(t, []string{
		filepath.Join(cfg.OutputDir, "2_comparison_all.svg"),
		filepath.Join(cfg.OutputDir, "2_comparison_NY.svg"),
	}, result.OutputFiles)
}

func TestRun_Failures(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		p, cfg := setup(t, sample)
		cfg.Source = filepath.Join(t.TempDir(), "gone.csv")

		result := p.Run(context.Background(), Request{})
		var fe *loader.FetchError
		require.ErrorAs(t, result.Error, &fe)
		assert.False(t, result.Success)
		assert.Empty(t, result.OutputFiles)
	})

	t.Run("empty dataset", func(t *testing.T) {
		p, _ := setup(t, "state,date,cases,deaths\n")

		result := p.Run(context.Background(), Request{})
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Error, chartwriter.ErrNothingToDraw)
		assert.Equal(t, scene.Count, result.Stats.RenderFailures)
	})

	t.Run("bad scene index", func(t *testing.T) {
		p, _ := setup(t, sample)

		result := p.Run(context.Background(), Request{Scenes: []int{0, 7}})
		assert.ErrorIs(t, result.Error, scene.ErrSceneOutOfRange)
		assert.Len(t, result.OutputFiles, 1)
	})

	t.Run("state without comparison scene", func(t *testing.T) {
		p, cfg := setup(t, sample)

		result := p.Run(context.Background(), Request{Scenes: []int{scene.IndexHeatmap}, State: "NY"})
		assert.ErrorIs(t, result.Error, ErrStateWithoutComparison)
		assert.False(t, result.Success)
		assert.Empty(t, result.OutputFiles)
		assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "0_heatmap_all.svg"))
	})
}

func TestRequest_Validate(t *testing.T) {
	assert.NoError(t, Request{}.Validate())
	assert.NoError(t, Request{State: "NY"}.Validate())
	assert.NoError(t, Request{Scenes: []int{0, scene.IndexComparison}, State: "NY"}.Validate())
	assert.ErrorIs(t, Request{Scenes: []int{0, 1}, State: "NY"}.Validate(), ErrStateWithoutComparison)
}

func TestExport(t *testing.T) {
	p, cfg := setup(t, sample)

	path, err := p.Export(context.Background(), "covid_export")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "covid_export.xlsx"), path)
	assert.FileExists(t, path)
}
