package benchmark

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aborodya/zipline/internal/bundle"
	"github.com/aborodya/zipline/internal/core"
)

const csvDateLayout = "2006-01-02"

// Load reads a date,return CSV from the bundle store into a SeriesSource.
func Load(ctx context.Context, store bundle.Storage, key string) (*SeriesSource, error) {
	raw, err := store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading benchmark bundle %s: %w", key, err)
	}
	points, err := DecodeCSV(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing benchmark bundle %s: %w", key, err)
	}
	return NewSeriesSource(points, nil), nil
}

// DecodeCSV parses date,return rows into return points. A header row is
// recognized and skipped.
func DecodeCSV(raw []byte) ([]ReturnPoint, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	points := make([]ReturnPoint, 0, len(records))
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], "date") {
			continue
		}
		dt, err := time.Parse(csvDateLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		points = append(points, ReturnPoint{DT: dt, Return: v})
	}
	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("benchmark csv holds no return rows"))
	}
	return points, nil
}

// EncodeCSV renders return points as a date,return document with a header,
// the format Load and DecodeCSV read back.
func EncodeCSV(points []ReturnPoint) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"date", "return"})
	for _, pt := range points {
		_ = w.Write([]string{
			pt.DT.Format(csvDateLayout),
			strconv.FormatFloat(pt.Return, 'g', -1, 64),
		})
	}
	w.Flush()
	return buf.Bytes()
}
