package gather

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stratlab/internal/domain"
)

// Compile-time interface check.
var _ Fetcher = (*CSVFetcher)(nil)

var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVFetcher reads bars from <Dir>/<SYMBOL>_<timeframe>.csv. Files need a
// header row naming the columns timestamp, open, high, low, close and
// volume in any order.
type CSVFetcher struct {
	Dir string
}

// NewCSVFetcher creates a CSVFetcher rooted at dir.
func NewCSVFetcher(dir string) *CSVFetcher {
	return &CSVFetcher{Dir: dir}
}

// Path returns the file read for a series.
func (f *CSVFetcher) Path(symbol string, tf domain.Timeframe) string {
	return filepath.Join(f.Dir, domain.PathSymbol(symbol)+"_"+tf.String()+".csv")
}

// Fetch reads the series file. A missing or empty file yields ErrNoData.
func (f *CSVFetcher) Fetch(ctx context.Context, symbol string, tf domain.Timeframe, lookback int) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := f.Path(symbol, tf)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, path)
		}
		return nil, fmt.Errorf("opening CSV %s: %w", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, path)
	}

	idx, err := columnIndex(records[0])
	if err != nil {
		return nil, fmt.Errorf("CSV %s: %w", path, err)
	}

	sym := strings.ToUpper(symbol)
	bars := make([]domain.Bar, 0, len(records)-1)
	for i, row := range records[1:] {
		b, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("CSV %s line %d: %w", path, i+2, err)
		}
		b.Symbol = sym
		bars = append(bars, b)
	}
	return Normalize(bars, lookback), nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int) (domain.Bar, error) {
	var b domain.Bar
	ts, err := parseTimestamp(strings.TrimSpace(row[idx["timestamp"]]))
	if err != nil {
		return b, err
	}
	b.Timestamp = ts

	fields := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
	for i, c := range csvColumns[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[idx[c]]), 64)
		if err != nil {
			return b, fmt.Errorf("parsing %s: %w", c, err)
		}
		*fields[i] = v
	}
	return b, nil
}

// parseTimestamp accepts the layouts in timestampLayouts or Unix seconds
// or milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
