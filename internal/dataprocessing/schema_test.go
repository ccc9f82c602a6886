package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Date", "date"},
		{"Unit Price", "unit_price"},
		{" UNIT_PRICE ", "unit_price"},
		{"unitprice", "unitprice"},
		{"Total   Price", "total_price"},
		{"\tRegion\n", "region"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeFieldName(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeFieldName(got), "normalization must be idempotent")
		})
	}
}

func TestResolveFieldVariants(t *testing.T) {
	variants := map[string][]string{
		FieldUnitPrice:  {"Unit Price", "unitprice", " UNIT_PRICE ", "UnitPrice", "unit_price"},
		FieldTotalPrice: {"TotalPrice", "total price", "TOTAL_PRICE", "totalprice"},
		FieldDate:       {"Date", " DATE", "date "},
		FieldQuantity:   {"Quantity", "QUANTITY"},
		FieldChannel:    {"Channel"},
		FieldRegion:     {"Region"},
	}

	for logical, headers := range variants {
		for _, h := range headers {
			got, ok := ResolveField(h)
			require.True(t, ok, "header %q should resolve", h)
			assert.Equal(t, logical, got, "header %q", h)
		}
	}

	_, ok := ResolveField("customer")
	assert.False(t, ok)
}

func TestResolveSchema(t *testing.T) {
	schema := ResolveSchema([]string{"Date", "Product", "Quantity", "Unit Price", "unitprice"})

	assert.Equal(t, []string{"date", "product", "quantity", "unit_price", "unitprice"}, schema.Fields)
	assert.Equal(t, 0, schema.Column(FieldDate))
	assert.Equal(t, 2, schema.Column(FieldQuantity))
	assert.Equal(t, 3, schema.Column(FieldUnitPrice), "first matching column wins")
	assert.Equal(t, -1, schema.Column(FieldChannel))
	assert.NoError(t, schema.Require(RequiredFields...))
}

func TestSchemaRequireReportsFirstMissing(t *testing.T) {
	schema := ResolveSchema([]string{"Quantity", "Price"})

	err := schema.Require(RequiredFields...)
	require.Error(t, err)

	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, FieldDate, missing.Field)
	assert.Equal(t, []string{"quantity", "price"}, missing.Found)
	assert.Contains(t, err.Error(), "missing required field: date")
	assert.Contains(t, err.Error(), "quantity, price")
}

func TestFieldDefaultsFromMap(t *testing.T) {
	defaults, err := FieldDefaultsFromMap(map[string]string{"Region": "South", "channel": "Store"})
	require.NoError(t, err)
	assert.Equal(t, []FieldDefault{
		{Field: FieldChannel, Value: "Store"},
		{Field: FieldRegion, Value: "South"},
	}, defaults)

	_, err = FieldDefaultsFromMap(map[string]string{"quantity": "1"})
	assert.Error(t, err)

	_, err = FieldDefaultsFromMap(map[string]string{"store": "A"})
	assert.Error(t, err)
}
