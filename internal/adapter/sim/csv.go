package sim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
)

// LoadCSV reads step,open,high,low,close,volume rows. A header row is
// skipped when its first field is not a number.
func LoadCSV(r io.Reader) ([]domain.OHLCV, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	cr.TrimLeadingSpace = true

	var bars []domain.OHLCV
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		step, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("csv line %d: step: %w", line, err)
		}
		var vals [5]decimal.Decimal
		for i := range vals {
			if vals[i], err = decimal.NewFromString(strings.TrimSpace(row[i+1])); err != nil {
				return nil, fmt.Errorf("csv line %d: column %d: %w", line, i+2, err)
			}
		}
		bars = append(bars, domain.OHLCV{
			Step:   step,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return bars, nil
}

// LoadFile reads a CSV file into the series for pair.
func (e *Exchange) LoadFile(pair domain.TradingPair, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bars, err := LoadCSV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	e.AddSeries(pair, bars)
	return nil
}
