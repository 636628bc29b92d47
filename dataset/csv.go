package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
)

// missingMarkers are compared case-insensitively after trimming.
var missingMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// IsMissing reports whether raw is one of the missing value markers.
func IsMissing(raw string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// ParseValue converts one CSV cell. Booleans become 1/0, finite numbers are
// numeric, anything else is categorical.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	switch token := strings.ToLower(s); token {
	case "true", "yes":
		return Bool(true, token)
	case "false", "no":
		return Bool(false, token)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Cat(s)
	}
	return Num(f)
}

// ReadCSV parses a CSV stream with a header row. Rows with a missing value
// are dropped and counted in Dataset.Dropped. name is used in errors only.
func ReadCSV(ctx context.Context, r io.Reader, name string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, tferrors.NewNoDataFoundError(name, "file is empty")
	}
	if err != nil {
		return nil, tferrors.Wrapf(err, "read header of %s", name)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	if len(columns) > 0 {
		columns[0] = strings.TrimPrefix(columns[0], "\ufeff")
	}

	var rows [][]Value
	dropped := 0
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, tferrors.Wrapf(err, "parse %s", name)
		}

		row := make([]Value, len(rec))
		missing := false
		for j, cell := range rec {
			if IsMissing(cell) {
				missing = true
				break
			}
			row[j] = ParseValue(cell)
		}
		if missing {
			dropped++
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		if dropped > 0 {
			return nil, tferrors.NewNoDataFoundError(name, "every row contains a missing value")
		}
		return nil, tferrors.NewNoDataFoundError(name, "no data rows after header")
	}

	ds, err := New(columns, rows)
	if err != nil {
		return nil, err
	}
	ds.dropped = dropped
	ds.source = name
	return ds, nil
}
