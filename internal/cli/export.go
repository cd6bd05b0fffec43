package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"event-analytics/internal/app"
)

var (
	exportBefore string
	exportOpts   app.ExportOptions
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a series with its forecast as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := exportOpts
		if exportBefore != "" {
			before, err := time.Parse(time.RFC3339, exportBefore)
			if err != nil {
				return fmt.Errorf("invalid --before value: %w", err)
			}
			opts.Before = &before
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOpts.Series, "series", "", "Series key to export")
	exportCmd.Flags().StringVar(&exportBefore, "before", "", "Only use points before this timestamp (RFC3339)")
	exportCmd.Flags().StringVar(&exportOpts.PNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportOpts.CSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportOpts.Periods, "periods", 0, "Forecast horizon (defaults to config)")
	exportCmd.Flags().IntVar(&exportOpts.MaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
	_ = exportCmd.MarkFlagRequired("series")
}
