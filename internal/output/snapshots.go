package output

import (
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"event-analytics/internal/storage"
)

type snapshotView struct {
	ID           string    `json:"id" yaml:"id"`
	Series       string    `json:"series" yaml:"series"`
	Bucket       time.Time `json:"bucket" yaml:"bucket"`
	Latest       string    `json:"latest" yaml:"latest"`
	Direction    string    `json:"direction" yaml:"direction"`
	Strength     string    `json:"strength" yaml:"strength"`
	ChangeRate   string    `json:"change_rate_pct" yaml:"change_rate_pct"`
	NextForecast string    `json:"next_forecast" yaml:"next_forecast"`
	ZScore       string    `json:"z_score" yaml:"z_score"`
	Anomaly      bool      `json:"anomaly" yaml:"anomaly"`
	Expected     string    `json:"expected" yaml:"expected"`
}

// RenderSnapshots writes persisted snapshots, newest first, in the requested format.
func RenderSnapshots(w io.Writer, format Format, snapshots []storage.Snapshot, colored bool) error {
	views := make([]snapshotView, len(snapshots))
	for i, s := range snapshots {
		views[i] = snapshotView{
			ID:           s.ID.String(),
			Series:       s.SeriesKey,
			Bucket:       s.Bucket.UTC(),
			Latest:       s.LatestValue.String(),
			Direction:    s.Direction,
			Strength:     s.Strength.StringFixed(2),
			ChangeRate:   s.ChangeRatePct.StringFixed(2),
			NextForecast: s.NextForecast.String(),
			ZScore:       s.ZScore.StringFixed(2),
			Anomaly:      s.IsAnomaly,
			Expected:     s.ExpectedMin.String() + ".." + s.ExpectedMax.String(),
		}
	}

	if format != FormatText {
		return encode(w, format, views)
	}

	if len(views) == 0 {
		_, err := io.WriteString(w, "no snapshots found\n")
		return err
	}

	rows := make([][]string, len(views))
	for i, v := range views {
		flag := ""
		if v.Anomaly {
			flag = paint("anomaly", colored, color.FgRed, color.Bold)
		}
		rows[i] = []string{
			v.Bucket.Format(time.RFC3339),
			v.Series,
			v.Latest,
			strings.ToLower(v.Direction),
			v.Strength,
			v.ChangeRate,
			v.NextForecast,
			v.ZScore,
			v.Expected,
			flag,
		}
	}
	writeTable(w, []string{"time (utc)", "series", "latest", "trend", "strength", "change%", "next", "z", "expected", "flag"}, rows)
	return nil
}
