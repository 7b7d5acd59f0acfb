package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/tui"
)

// defaultPresentLog keeps logs off the terminal while the presenter owns it.
const defaultPresentLog = "scenes.log"

var presentCmd = &cobra.Command{
	Use:   "present",
	Short: "Step through the scenes in the terminal",
	Long: `The present command loads the dataset and opens a full-screen terminal
presenter.

Keys:
  right, n   next scene
  left, p    previous scene
  /          filter the comparison scene by state
  esc        clear the filter
  q          quit

Logs go to scenes.log unless --log-file is given.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logFile == "" {
			logFile = defaultPresentLog
		}
		return rootCmd.PersistentPreRunE(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		l, closeCache, err := newLoader(mainConfig)
		if err != nil {
			return err
		}
		defer closeCache()

		ds, err := l.Load(ctx, mainConfig.Source)
		if err != nil && !errors.Is(err, records.ErrEmptyDataset) {
			return fmt.Errorf("failed to load dataset: %w", err)
		}

		opts := tui.Options{
			Navigation: mainConfig.NavigationPolicy(),
			Colors: tui.Colors{
				Cases:  mainConfig.Chart.CasesColor,
				Deaths: mainConfig.Chart.DeathsColor,
				Heat:   mainConfig.Chart.HeatColor,
			},
			Logger: logger,
		}
		switch {
		case ds.Stale:
			opts.Notice = "source unavailable, showing cached data"
		case ds.Empty():
			opts.Notice = "dataset is empty"
		case ds.Report.Skipped()+ds.Report.ZeroFilled() > 0:
			opts.Notice = fmt.Sprintf("%d malformed rows (see validate)", ds.Report.Skipped()+ds.Report.ZeroFilled())
		}

		return tui.Run(ctx, ds.Records, opts)
	},
}

func init() {
	rootCmd.AddCommand(presentCmd)
}
