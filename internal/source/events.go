package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"event-analytics/internal/analytics"
)

var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadEventsCSV parses a raw event log of timestamp[,weight] rows. A missing
// weight counts the row as one event. A first row whose timestamp does not parse
// is treated as a header.
func ReadEventsCSV(r io.Reader) ([]analytics.Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	events := []analytics.Event{}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++

		at, ok := parseEventTime(strings.TrimSpace(record[0]))
		if !ok {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: unrecognised timestamp %q", line, record[0])
		}

		weight := 1.0
		if len(record) > 1 && strings.TrimSpace(record[1]) != "" {
			weight, err = strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse weight %q: %w", line, record[1], err)
			}
			if math.IsNaN(weight) || math.IsInf(weight, 0) {
				return nil, fmt.Errorf("line %d: weight %q is not a finite number", line, record[1])
			}
		}
		events = append(events, analytics.Event{At: at, Value: weight})
	}
	return events, nil
}

// ReadEventsCSVFile opens path and parses it with ReadEventsCSV.
func ReadEventsCSVFile(path string) ([]analytics.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadEventsCSV(file)
}

func parseEventTime(value string) (time.Time, bool) {
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
