package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/chartwriter"
	"github.com/ginjaninja78/covid-scenes/internal/pipeline"
	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scenes over HTTP",
	Long: `The serve command loads the dataset once and exposes a shared scene session
under /api. Scene transitions are pushed to websocket clients on /api/ws and
prometheus metrics are served on /api/metrics.

The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		if serveAddr != "" {
			mainConfig.Server.Addr = serveAddr
		}

		l, closeCache, err := newLoader(mainConfig)
		if err != nil {
			return err
		}
		defer closeCache()

		ds, err := l.Load(ctx, mainConfig.Source)
		if err != nil && !errors.Is(err, records.ErrEmptyDataset) {
			return fmt.Errorf("failed to load dataset: %w", err)
		}
		if err != nil {
			logger.Warn("serving an empty dataset", zap.String("source", mainConfig.Source))
		}

		writer := chartwriter.New(pipeline.ChartOptions(mainConfig))
		return server.New(mainConfig, ds, l, writer, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}
