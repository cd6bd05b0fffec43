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

	"event-analytics/internal/analytics"
)

// ReadCSV parses label,value rows into a series in file order. A first row whose
// value column is not numeric is treated as a header. NaN and infinite values are
// rejected.
func ReadCSV(r io.Reader) (analytics.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	series := analytics.Series{}
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

		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected label,value", line)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: parse value %q: %w", line, record[1], err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("line %d: value %q is not a finite number", line, record[1])
		}
		series = append(series, analytics.TimeSeriesPoint{
			Label: strings.TrimSpace(record[0]),
			Value: value,
		})
	}
	return series, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (analytics.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}
