package dataprocessing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDailySeries(t *testing.T) {
	input := "ds,y\n2024-01-03,30.5\n2024-01-01,10\n2024-01-02,20\n"
	table, err := CSVReader{}.Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	series, err := ParseDailySeries(table)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, "2024-01-01", series[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-03", series[2].Date.Format("2006-01-02"))
	assert.InDelta(t, 30.5, series[2].Total, 1e-9)
}

func TestParseDailySeriesErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing y column",
			input: "ds,value\n2024-01-01,1\n",
			check: func(t *testing.T, err error) {
				var missing *MissingFieldError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, ColumnY, missing.Field)
			},
		},
		{
			name:  "bad date",
			input: "ds,y\nyesterday,1\n",
			check: func(t *testing.T, err error) {
				var valueErr *ValueError
				require.ErrorAs(t, err, &valueErr)
				assert.Equal(t, ColumnDS, valueErr.Field)
			},
		},
		{
			name:  "bad value",
			input: "ds,y\n2024-01-01,abc\n",
			check: func(t *testing.T, err error) {
				var valueErr *ValueError
				require.ErrorAs(t, err, &valueErr)
				assert.Equal(t, 1, valueErr.Row)
			},
		},
		{
			name:  "duplicate date",
			input: "ds,y\n2024-01-01,1\n2024-01-01,2\n",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "duplicate date")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := CSVReader{}.Read(context.Background(), strings.NewReader(tt.input))
			require.NoError(t, err)

			_, err = ParseDailySeries(table)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
