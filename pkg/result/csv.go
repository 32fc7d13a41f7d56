package result

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/xhit/go-str2duration/v2"
)

var (
	ErrInsufficientData = errors.New("insufficient data")

	defaultHeaderMap = map[string]int{
		"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
	}
)

// CandlesFromCSV loads an OHLCV candle series from a CSV file, with or
// without a header row. Rows with malformed timestamps are skipped. The
// timeframe is used to warn about gaps in the series.
func CandlesFromCSV(log logger.Logger, path, symbol, timeframe string) ([]core.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if len(rows) == 0 {
		return nil, ErrInsufficientData
	}

	headerMap, hasHeader := parseHeaders(rows[0])
	if hasHeader {
		rows = rows[1:]
	}

	barGap, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return nil, fmt.Errorf("invalid timeframe %q: %w", timeframe, err)
	}

	bar := progressbar.Default(int64(len(rows)), "importing "+symbol)
	candles := make([]core.Candle, 0, len(rows))

	for i, row := range rows {
		_ = bar.Add(1)

		candle, err := parseRow(row, headerMap)
		if err != nil {
			log.Warnf("skipping csv row %d: %v", i+1, err)
			continue
		}

		if n := len(candles); n > 0 {
			gap := candle.Time.Time().Sub(candles[n-1].Time.Time())
			if gap > barGap {
				log.Warnf("gap of %s before bar at %v", gap, candle.Time)
			}
		}

		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, ErrInsufficientData
	}

	return candles, nil
}

// parseHeaders checks whether the first row is data or a header and returns
// the column index map to use.
func parseHeaders(row []string) (map[string]int, bool) {
	// A numeric first cell means there is no header row
	if _, err := strconv.Atoi(row[0]); err == nil {
		return defaultHeaderMap, false
	}

	headerMap := make(map[string]int, len(row))
	for i, name := range row {
		headerMap[name] = i
	}
	return headerMap, true
}

func parseRow(row []string, headerMap map[string]int) (core.Candle, error) {
	read := func(column string) (float64, error) {
		index, ok := headerMap[column]
		if !ok || index >= len(row) {
			return 0, fmt.Errorf("missing column %q", column)
		}
		return strconv.ParseFloat(row[index], 64)
	}

	index, ok := headerMap["time"]
	if !ok || index >= len(row) {
		return core.Candle{}, errors.New("missing time column")
	}

	ts, err := core.Normalize(row[index])
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{Time: ts}
	fields := []struct {
		name string
		dest *float64
	}{
		{"open", &candle.Open},
		{"close", &candle.Close},
		{"low", &candle.Low},
		{"high", &candle.High},
		{"volume", &candle.Volume},
	}

	for _, field := range fields {
		value, err := read(field.name)
		if err != nil {
			return core.Candle{}, err
		}
		*field.dest = value
	}

	return candle, nil
}
