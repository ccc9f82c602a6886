package dataprocessing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"retailcast/pkg/contracts/domain"
)

// LoadResult holds the normalized rows of one table plus load statistics
type LoadResult struct {
	Rows        []domain.SalesRow
	Fields      []string // normalized header names
	DroppedRows int      // rows skipped for a missing or unparseable date
	BlankRows   int
	Defaulted   []string // logical fields filled from defaults
}

// Loader turns a raw Table into normalized sales rows
type Loader struct {
	defaults []FieldDefault
	logger   *slog.Logger
}

// NewLoader creates a loader. A nil defaults slice means DefaultFieldDefaults.
func NewLoader(defaults []FieldDefault, logger *slog.Logger) *Loader {
	if defaults == nil {
		defaults = DefaultFieldDefaults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		defaults: defaults,
		logger:   logger.With(slog.String("component", "loader")),
	}
}

// Load resolves the schema, validates required fields and converts each row.
// Rows whose date is empty or unparseable are dropped and counted; any other
// bad cell fails the whole load.
func (l *Loader) Load(ctx context.Context, table *Table) (*LoadResult, error) {
	if table == nil || len(table.Header) == 0 {
		return nil, ErrEmptyTable
	}

	schema := ResolveSchema(table.Header)
	if err := schema.Require(RequiredFields...); err != nil {
		l.logger.WarnContext(ctx, "required_field_missing",
			slog.String("error", err.Error()))
		return nil, err
	}

	result := &LoadResult{
		Rows:   make([]domain.SalesRow, 0, len(table.Rows)),
		Fields: schema.Fields,
	}

	fixed := make(map[string]string)
	for _, d := range l.defaults {
		if !schema.Has(d.Field) {
			fixed[d.Field] = d.Value
			result.Defaulted = append(result.Defaulted, d.Field)
		}
	}

	allowSerial := table.Source == SourceExcel
	hasTotal := schema.Has(FieldTotalPrice)

	for i := range table.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if blankRow(table.Rows[i]) {
			result.BlankRows++
			continue
		}

		date, ok := ParseDate(table.Cell(i, schema.Column(FieldDate)), allowSerial)
		if !ok {
			result.DroppedRows++
			l.logger.DebugContext(ctx, "row_dropped",
				slog.Int("row", i+1),
				slog.String("date", table.Cell(i, schema.Column(FieldDate))))
			continue
		}

		quantity, err := parseNumber(table, i, schema, FieldQuantity)
		if err != nil {
			return nil, err
		}
		unitPrice, err := parseNumber(table, i, schema, FieldUnitPrice)
		if err != nil {
			return nil, err
		}

		total := quantity.Mul(unitPrice)
		if hasTotal {
			if total, err = parseNumber(table, i, schema, FieldTotalPrice); err != nil {
				return nil, err
			}
		}

		result.Rows = append(result.Rows, domain.SalesRow{
			Date:       date,
			Quantity:   quantity,
			UnitPrice:  unitPrice,
			TotalPrice: total,
			Channel:    categorical(table, i, schema, FieldChannel, fixed),
			Region:     categorical(table, i, schema, FieldRegion, fixed),
		})
	}

	if result.DroppedRows > 0 {
		l.logger.WarnContext(ctx, "rows_dropped",
			slog.Int("dropped", result.DroppedRows),
			slog.String("reason", "unparseable date"))
	}
	l.logger.InfoContext(ctx, "table_loaded",
		slog.Int("rows", len(result.Rows)),
		slog.Int("dropped", result.DroppedRows),
		slog.String("source", table.Source),
		slog.Any("defaulted", result.Defaulted))

	return result, nil
}

func parseNumber(table *Table, row int, schema *Schema, field string) (decimal.Decimal, error) {
	raw := table.Cell(row, schema.Column(field))
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, " ", ""))
	if err != nil {
		return decimal.Zero, &ValueError{Row: row + 1, Field: field, Value: raw, Err: err}
	}
	return d, nil
}

// categorical returns the column value, or the dataset-wide default when the
// column is absent. An empty cell in a present column stays empty.
func categorical(table *Table, row int, schema *Schema, field string, fixed map[string]string) string {
	if v, ok := fixed[field]; ok {
		return v
	}
	if !schema.Has(field) {
		return ""
	}
	return table.Cell(row, schema.Column(field))
}
