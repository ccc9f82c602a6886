package dataprocessing

import (
	"fmt"
	"strings"
	"unicode"
)

// Logical field names of the normalized schema
const (
	FieldDate       = "date"
	FieldQuantity   = "quantity"
	FieldUnitPrice  = "unit_price"
	FieldTotalPrice = "total_price"
	FieldChannel    = "channel"
	FieldRegion     = "region"
)

// RequiredFields must resolve for a table to load, checked in this order
var RequiredFields = []string{FieldDate, FieldQuantity, FieldUnitPrice}

var logicalFields = []string{
	FieldDate,
	FieldQuantity,
	FieldUnitPrice,
	FieldTotalPrice,
	FieldChannel,
	FieldRegion,
}

// FieldDefault is the literal value every row receives when Field is absent
type FieldDefault struct {
	Field string
	Value string
}

// DefaultFieldDefaults fills channel and region when the input lacks them
var DefaultFieldDefaults = []FieldDefault{
	{Field: FieldChannel, Value: "Online"},
	{Field: FieldRegion, Value: "North"},
}

// FieldDefaultsFromMap converts the configuration map form into a sorted,
// validated list. Keys are resolved like column headers.
func FieldDefaultsFromMap(m map[string]string) ([]FieldDefault, error) {
	byField := make(map[string]string, len(m))
	for k, v := range m {
		logical, ok := ResolveField(k)
		if !ok || (logical != FieldChannel && logical != FieldRegion) {
			return nil, fmt.Errorf("field %q cannot take a default value", k)
		}
		byField[logical] = v
	}

	out := make([]FieldDefault, 0, len(byField))
	for _, f := range []string{FieldChannel, FieldRegion} {
		if v, ok := byField[f]; ok {
			out = append(out, FieldDefault{Field: f, Value: v})
		}
	}
	return out, nil
}

// NormalizeFieldName trims surrounding whitespace, lowercases, and replaces
// each run of internal whitespace with a single underscore. Applying it twice
// gives the same result as applying it once.
func NormalizeFieldName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), unicode.IsSpace)
	return strings.Join(fields, "_")
}

// matchKey drops underscores so that "unit_price" and "unitprice" compare equal
func matchKey(name string) string {
	return strings.ReplaceAll(NormalizeFieldName(name), "_", "")
}

var logicalByKey = func() map[string]string {
	m := make(map[string]string, len(logicalFields))
	for _, f := range logicalFields {
		m[matchKey(f)] = f
	}
	return m
}()

// ResolveField maps a raw header to its logical field name
func ResolveField(header string) (string, bool) {
	f, ok := logicalByKey[matchKey(header)]
	return f, ok
}

// Schema is the fixed column layout of one table, resolved once at load time.
type Schema struct {
	// Fields holds every normalized header in column order
	Fields []string
	index  map[string]int
}

// ResolveSchema normalizes the header row and maps logical fields to column
// indexes. When two columns resolve to the same field the first one wins.
func ResolveSchema(header []string) *Schema {
	s := &Schema{
		Fields: make([]string, len(header)),
		index:  make(map[string]int),
	}
	for i, h := range header {
		s.Fields[i] = NormalizeFieldName(h)
		if logical, ok := ResolveField(h); ok {
			if _, seen := s.index[logical]; !seen {
				s.index[logical] = i
			}
		}
	}
	return s
}

// Has reports whether a logical field is present
func (s *Schema) Has(field string) bool {
	_, ok := s.index[field]
	return ok
}

// Column returns the index of a logical field, or -1
func (s *Schema) Column(field string) int {
	if i, ok := s.index[field]; ok {
		return i
	}
	return -1
}

// Require returns a MissingFieldError for the first required field absent
func (s *Schema) Require(fields ...string) error {
	for _, f := range fields {
		if !s.Has(f) {
			found := make([]string, len(s.Fields))
			copy(found, s.Fields)
			return &MissingFieldError{Field: f, Found: found}
		}
	}
	return nil
}
