package dataprocessing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcast/pkg/contracts/domain"
)

func day(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func rowsForDays(n int, total int64) []domain.SalesRow {
	rows := make([]domain.SalesRow, n)
	for i := range rows {
		rows[i] = domain.SalesRow{Date: day(i), TotalPrice: decimal.NewFromInt(total)}
	}
	return rows
}

func TestAggregateGroupsAndSorts(t *testing.T) {
	rows := []domain.SalesRow{
		{Date: day(2), TotalPrice: decimal.RequireFromString("10.10")},
		{Date: day(0), TotalPrice: decimal.RequireFromString("5")},
		{Date: day(2), TotalPrice: decimal.RequireFromString("0.20")},
		{Date: day(1), TotalPrice: decimal.RequireFromString("7")},
	}

	series, err := NewAggregator(3).Aggregate(rows)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, day(0), series[0].Date)
	assert.Equal(t, day(1), series[1].Date)
	assert.Equal(t, day(2), series[2].Date)
	assert.InDelta(t, 5.0, series[0].Total, 1e-9)
	assert.InDelta(t, 7.0, series[1].Total, 1e-9)
	assert.InDelta(t, 10.30, series[2].Total, 1e-9)
}

func TestAggregatePreservesTotals(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	rows := make([]domain.SalesRow, 500)
	inputSum := decimal.Zero
	for i := range rows {
		total := decimal.New(rng.Int63n(100000), -2)
		rows[i] = domain.SalesRow{Date: day(rng.Intn(40)), TotalPrice: total}
		inputSum = inputSum.Add(total)
	}

	series, err := NewAggregator(7).Aggregate(rows)
	require.NoError(t, err)

	seriesSum := 0.0
	for i, p := range series {
		seriesSum += p.Total
		if i > 0 {
			assert.True(t, series[i-1].Date.Before(p.Date), "dates must be unique and ascending")
		}
	}
	assert.InDelta(t, inputSum.InexactFloat64(), seriesSum, 1e-6)
}

func TestAggregateTimeOfDayCollapses(t *testing.T) {
	rows := []domain.SalesRow{
		{Date: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), TotalPrice: decimal.NewFromInt(1)},
		{Date: time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC), TotalPrice: decimal.NewFromInt(2)},
	}

	series, err := NewAggregator(1).Aggregate(rows)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.InDelta(t, 3.0, series[0].Total, 1e-9)
}

func TestAggregateMinimumHistory(t *testing.T) {
	t.Run("six dates fail", func(t *testing.T) {
		_, err := NewAggregator(7).Aggregate(rowsForDays(6, 100))
		require.Error(t, err)

		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 6, insufficient.Have)
		assert.Equal(t, 7, insufficient.Need)
	})

	t.Run("seven dates proceed", func(t *testing.T) {
		series, err := NewAggregator(7).Aggregate(rowsForDays(7, 100))
		require.NoError(t, err)
		assert.Len(t, series, 7)
	})

	t.Run("threshold is tunable", func(t *testing.T) {
		_, err := NewAggregator(14).Aggregate(rowsForDays(10, 100))
		assert.Error(t, err)

		_, err = NewAggregator(3).Aggregate(rowsForDays(3, 100))
		assert.NoError(t, err)
	})

	t.Run("non-positive threshold uses default", func(t *testing.T) {
		assert.Equal(t, DefaultMinDistinctDates, NewAggregator(0).MinDistinctDates)
	})
}

func TestSumByField(t *testing.T) {
	rows := []domain.SalesRow{
		{Channel: "Store", Region: "North", TotalPrice: decimal.NewFromInt(10)},
		{Channel: "Online", Region: "South", TotalPrice: decimal.NewFromInt(5)},
		{Channel: "Store", Region: "South", TotalPrice: decimal.NewFromInt(1)},
	}

	byChannel, err := SumByField(rows, FieldChannel)
	require.NoError(t, err)
	assert.Equal(t, []domain.CategoryTotal{
		{Category: "Online", Total: 5},
		{Category: "Store", Total: 11},
	}, byChannel)

	byRegion, err := SumByField(rows, FieldRegion)
	require.NoError(t, err)
	assert.Equal(t, []domain.CategoryTotal{
		{Category: "North", Total: 10},
		{Category: "South", Total: 6},
	}, byRegion)

	_, err = SumByField(rows, FieldQuantity)
	assert.Error(t, err)
}
