package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"event-analytics/internal/app"
)

var (
	simulateSeries   string
	simulateValue    float64
	simulateBaseline string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Score a value against a baseline and send a simulated alert if anomalous",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateSeries == "" {
			return errors.New("--series is required")
		}
		baseline, err := parseFloats(simulateBaseline)
		if err != nil {
			return err
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Series:   simulateSeries,
			Value:    simulateValue,
			Baseline: baseline,
		})
	},
}

func parseFloats(raw string) ([]float64, error) {
	var values []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid baseline value %q: %w", part, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSeries, "series", "", "Series key named in the alert")
	simulateCmd.Flags().Float64Var(&simulateValue, "value", 0, "Value under test")
	simulateCmd.Flags().StringVar(&simulateBaseline, "baseline", "", "Comma separated historical values")
}
