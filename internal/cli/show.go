package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"event-analytics/internal/app"
)

var showOpts app.ShowOptions

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent analytics snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showOpts.Limit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Show(cmd.Context(), showOpts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showOpts.Limit, "limit", 20, "Number of snapshots to display")
	showCmd.Flags().StringVar(&showOpts.Series, "series", "", "Only show this series")
	showCmd.Flags().StringVar(&showOpts.Format, "format", "text", "Output format: text, json or yaml")
}
