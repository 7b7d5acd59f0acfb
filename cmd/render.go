// =============================================================================
// COVID Scenes - Render Command
// =============================================================================
//
// COMMAND USAGE:
//   scenes render [--scene N ...] [--state NAME]
//
// FLAGS:
//   --scene : Scene index to render; repeatable. Default renders all scenes.
//   --state : Also render the comparison scene filtered to this state.
//
// Rendered files, the run summary and the malformed-row log are written to
// the configured output directory.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/covid-scenes/internal/pipeline"
)

var (
	renderScenes []int
	renderState  string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render scenes to image files",
	Long: `The render command loads the dataset, steps a scene selector through the
requested scenes and writes each one as an SVG (or PNG) file.

A scene that cannot be drawn is reported but does not stop the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().IntSliceVar(&renderScenes, "scene", nil, "Scene index to render (0-2); repeatable")
	renderCmd.Flags().StringVar(&renderState, "state", "", "Also render the comparison scene for this state")
}

func runRender(cmd *cobra.Command) error {
	req := pipeline.Request{Scenes: renderScenes, State: renderState}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	l, closeCache, err := newLoader(mainConfig)
	if err != nil {
		return err
	}
	defer closeCache()

	fmt.Println("=== COVID Scenes ===")
	fmt.Printf("Source: %s\n", mainConfig.Source)

	p := pipeline.New(mainConfig, l, logger)
	result := p.Run(ctx, req)

	if result.Stale {
		fmt.Println("Warning: source unavailable, rendered the cached copy")
	}
	for _, f := range result.OutputFiles {
		fmt.Printf("  ✓ %s\n", filepath.Base(f))
	}

	fmt.Println("\n=== Render Complete ===")
	fmt.Printf("Rows read:       %d\n", result.Stats.RowsProcessed)
	fmt.Printf("Records:         %d\n", result.Stats.Records)
	fmt.Printf("Skipped rows:    %d\n", result.Stats.SkippedRows)
	fmt.Printf("Zero-filled:     %d\n", result.Stats.ZeroFilledRows)
	fmt.Printf("Scenes written:  %d\n", result.Stats.ScenesRendered)
	fmt.Printf("Failures:        %d\n", result.Stats.RenderFailures)
	fmt.Printf("Time elapsed:    %s\n", result.Stats.ProcessingTime)
	if result.SummaryFile != "" {
		fmt.Printf("Summary:         %s\n", result.SummaryFile)
	}

	if !result.Success {
		return fmt.Errorf("render failed: %w", result.Error)
	}
	return nil
}
