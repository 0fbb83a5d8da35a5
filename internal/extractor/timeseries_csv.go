package extractor

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/biomarker-io/worker/internal/domain"
	"github.com/biomarker-io/worker/internal/kernel"
)

const timeseriesSchemaVersion = "v1_timeseries_csv"

var timeseriesRequiredColumns = []string{"channel", "t", "y"}

// TimeseriesCSVExtractor handles schema_version "v1_timeseries_csv": a
// delimited table with required columns channel (text), t (numeric
// seconds), y (numeric).
type TimeseriesCSVExtractor struct{}

// NewTimeseriesCSVExtractor constructs the extractor.
func NewTimeseriesCSVExtractor() *TimeseriesCSVExtractor {
	return &TimeseriesCSVExtractor{}
}

// SchemaVersion implements Extractor.
func (e *TimeseriesCSVExtractor) SchemaVersion() string { return timeseriesSchemaVersion }

// Validate implements Extractor.
func (e *TimeseriesCSVExtractor) Validate(content []byte) (bool, string) {
	rows, header, err := parseCSV(content)
	if err != nil {
		return false, fmt.Sprintf("failed to parse CSV: %v", err)
	}

	for _, col := range timeseriesRequiredColumns {
		if _, ok := header[col]; !ok {
			return false, fmt.Sprintf("missing required column %q", col)
		}
	}

	if len(rows) == 0 {
		return false, "table is empty"
	}

	chIdx, tIdx, yIdx := header["channel"], header["t"], header["y"]

	coercibleRows := 0

	for _, row := range rows {
		if strings.TrimSpace(row[chIdx]) == "" {
			continue
		}

		if _, err := strconv.ParseFloat(strings.TrimSpace(row[tIdx]), 64); err != nil {
			continue
		}

		if _, err := strconv.ParseFloat(strings.TrimSpace(row[yIdx]), 64); err != nil {
			continue
		}

		coercibleRows++
	}

	if coercibleRows == 0 {
		return false, "no rows with coercible channel/t/y values"
	}

	return true, ""
}

// Extract implements Extractor.
func (e *TimeseriesCSVExtractor) Extract(content []byte) ExtractionResult {
	if ok, reason := e.Validate(content); !ok {
		return Failure(reason)
	}

	rows, header, err := parseCSV(content)
	if err != nil {
		return Failure(fmt.Sprintf("failed to parse CSV: %v", err))
	}

	chIdx, tIdx, yIdx := header["channel"], header["t"], header["y"]

	byChannel := make(map[string][][2]float64)

	for _, row := range rows {
		channel := strings.TrimSpace(row[chIdx])
		if channel == "" {
			continue
		}

		tVal, err := strconv.ParseFloat(strings.TrimSpace(row[tIdx]), 64)
		if err != nil {
			continue
		}

		yVal, err := strconv.ParseFloat(strings.TrimSpace(row[yIdx]), 64)
		if err != nil {
			continue
		}

		byChannel[channel] = append(byChannel[channel], [2]float64{tVal, yVal})
	}

	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}

	sort.Strings(channels)

	all := make(domain.FeatureMap)

	for _, ch := range channels {
		pairs := byChannel[ch]

		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

		t := make([]float64, len(pairs))
		y := make([]float64, len(pairs))

		for i, p := range pairs {
			t[i] = p[0]
			y[i] = p[1]
		}

		for k, v := range kernel.TimeseriesFeatures(ch, t, y) {
			all[k] = v
		}
	}

	for k, v := range kernel.GlobalFeatures(channels, all, kernel.DefaultBaselineStdThreshold, kernel.DefaultSNRThreshold) {
		all[k] = v
	}

	return FromFeatures(all)
}

// parseCSV reads content as a CSV table, returning data rows (header
// excluded) and a column-name-to-index map built from the header row.
func parseCSV(content []byte) (rows [][]string, header map[string]int, err error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) == 0 {
		return nil, map[string]int{}, nil
	}

	header = make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		header[strings.TrimSpace(col)] = i
	}

	return records[1:], header, nil
}
