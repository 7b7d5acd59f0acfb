package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/covid-scenes/internal/pipeline"
)

var exportName string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the dataset and its aggregations as an .xlsx workbook",
	Long: `The export command writes a workbook with three sheets: the typed records,
per-state totals ranked by cases and daily totals. The workbook can be used
as a source again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		l, closeCache, err := newLoader(mainConfig)
		if err != nil {
			return err
		}
		defer closeCache()

		path, err := pipeline.New(mainConfig, l, logger).Export(ctx, exportName)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportName, "name", "covid_scenes_{date}", "Workbook file name; supports {date}, {timestamp} and {uuid}")
}
