package dataprocessing

import (
	"fmt"
	"sort"
	"strconv"

	"retailcast/pkg/contracts/domain"
)

// Daily file columns written by the make_daily stage
const (
	ColumnDS = "ds"
	ColumnY  = "y"
)

// ParseDailySeries reads a ds,y table back into a series. Duplicate dates are
// rejected since the file is expected to be an aggregation output.
func ParseDailySeries(table *Table) (domain.DailySeries, error) {
	if table == nil || len(table.Header) == 0 {
		return nil, ErrEmptyTable
	}

	dsCol, yCol := -1, -1
	fields := make([]string, len(table.Header))
	for i, h := range table.Header {
		fields[i] = NormalizeFieldName(h)
		switch fields[i] {
		case ColumnDS:
			dsCol = i
		case ColumnY:
			yCol = i
		}
	}
	if dsCol < 0 {
		return nil, &MissingFieldError{Field: ColumnDS, Found: fields}
	}
	if yCol < 0 {
		return nil, &MissingFieldError{Field: ColumnY, Found: fields}
	}

	seen := make(map[string]struct{}, len(table.Rows))
	series := make(domain.DailySeries, 0, len(table.Rows))
	for i := range table.Rows {
		if blankRow(table.Rows[i]) {
			continue
		}

		rawDate := table.Cell(i, dsCol)
		date, ok := ParseDate(rawDate, table.Source == SourceExcel)
		if !ok {
			return nil, &ValueError{Row: i + 1, Field: ColumnDS, Value: rawDate}
		}
		key := date.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("row %d: duplicate date %s", i+1, key)
		}
		seen[key] = struct{}{}

		rawY := table.Cell(i, yCol)
		y, err := strconv.ParseFloat(rawY, 64)
		if err != nil {
			return nil, &ValueError{Row: i + 1, Field: ColumnY, Value: rawY, Err: err}
		}

		series = append(series, domain.DailyPoint{Date: date, Total: y})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}
