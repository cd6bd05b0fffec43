package cli

import (
	"github.com/spf13/cobra"

	"event-analytics/internal/app"
)

var funnelOpts app.FunnelOptions

var funnelCmd = &cobra.Command{
	Use:     "funnel",
	Short:   "Compare funnel conversion against benchmarks",
	Example: `  eventpulse funnel --stages "views:1000,registration:120,attendance:90"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Funnel(cmd.Context(), funnelOpts)
	},
}

func init() {
	funnelCmd.Flags().StringVar(&funnelOpts.Event, "event", "", "Event id whose stage counts are loaded from the source")
	funnelCmd.Flags().StringVar(&funnelOpts.Stages, "stages", "", "Comma separated stage:count pairs in pipeline order")
	funnelCmd.Flags().StringVar(&funnelOpts.Format, "format", "text", "Output format: text, json or yaml")
	funnelCmd.MarkFlagsMutuallyExclusive("event", "stages")
}
