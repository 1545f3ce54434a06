package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domdfcoding/statsbackend/internal/models"
)

func day(year int, month time.Month, d int) models.Date {
	return models.Date{Year: year, Month: month, Day: d}
}

func TestMonthlySummaries(t *testing.T) {
	daily := []DatedValue{
		{Date: day(2023, time.January, 5), Value: 2},
		{Date: day(2023, time.January, 20), Value: 4},
		{Date: day(2023, time.February, 1), Value: 3},
	}
	today := day(2023, time.February, 10)

	summaries := MonthlySummaries(daily, today, true)
	require.Len(t, summaries, 2)

	jan := summaries[0]
	assert.Equal(t, "2023-01", jan.Month)
	assert.Equal(t, 6.0, jan.Total)
	assert.Equal(t, 2, jan.Days)
	assert.InDelta(t, 6.0/31, jan.Average, 1e-9)
	assert.True(t, jan.CompleteMonth)

	feb := summaries[1]
	assert.Equal(t, "2023-02", feb.Month)
	assert.Equal(t, 3.0, feb.Total)
	// The current month averages over elapsed days, not calendar days.
	assert.InDelta(t, 3.0/10, feb.Average, 1e-9)
	assert.False(t, feb.CompleteMonth)
}

func TestMonthlySummariesSameMonthDifferentYear(t *testing.T) {
	daily := []DatedValue{
		{Date: day(2022, time.February, 10), Value: 5},
	}
	today := day(2023, time.February, 3)

	summaries := MonthlySummaries(daily, today, false)
	require.Len(t, summaries, 1)
	// February 2022 is complete even though today is also in February.
	assert.True(t, summaries[0].CompleteMonth)
	assert.InDelta(t, 5.0/28, summaries[0].Average, 1e-9)
	assert.Zero(t, summaries[0].Days)
}

func TestMonthlySummariesEmpty(t *testing.T) {
	assert.Empty(t, MonthlySummaries(nil, day(2023, time.June, 1), true))
}

func TestMonthlyEndpointCurrent(t *testing.T) {
	daily := []DatedValue{
		{Date: day(2023, time.January, 5), Value: 2},
		{Date: day(2023, time.February, 1), Value: 3},
	}

	payload := MonthlyEndpoint(daily, day(2023, time.February, 10), true)
	require.Len(t, payload.Months, 2)
	assert.Equal(t, payload.Months[1], payload.Current)
	assert.False(t, payload.Current.CompleteMonth)
}

func TestMonthlyEndpointCurrentWithoutData(t *testing.T) {
	daily := []DatedValue{
		{Date: day(2023, time.January, 5), Value: 2},
	}

	payload := MonthlyEndpoint(daily, day(2023, time.February, 10), true)
	require.Len(t, payload.Months, 1)
	assert.Equal(t, models.MonthlySummary{Month: "2023-02"}, payload.Current)
	assert.False(t, payload.Current.CompleteMonth)
}

func TestYearlyEndpointCurrent(t *testing.T) {
	monthly := []models.MonthlySummary{
		{Month: "2022-12", Total: 60, Days: 20},
		{Month: "2023-01", Total: 15, Days: 5},
	}

	payload := YearlyEndpoint(monthly, day(2023, time.March, 1))
	require.Len(t, payload.Years, 2)
	assert.Equal(t, payload.Years[1], payload.Current)
	assert.False(t, payload.Current.CompleteYear)
}

func TestYearlyEndpointCurrentWithoutData(t *testing.T) {
	monthly := []models.MonthlySummary{
		{Month: "2022-12", Total: 60, Days: 20},
	}

	payload := YearlyEndpoint(monthly, day(2023, time.March, 1))
	require.Len(t, payload.Years, 1)
	assert.Equal(t, models.YearlySummary{Year: "2023"}, payload.Current)
	assert.False(t, payload.Current.CompleteYear)
}

func TestYearlySummaries(t *testing.T) {
	monthly := []models.MonthlySummary{
		{Month: "2022-11", Total: 30, Days: 10},
		{Month: "2022-12", Total: 60, Days: 20},
		{Month: "2023-01", Total: 15, Days: 5},
	}
	today := day(2023, time.March, 1)

	yearly := YearlySummaries(monthly, today)
	require.Len(t, yearly, 2)

	assert.Equal(t, "2022", yearly[0].Year)
	assert.Equal(t, 90.0, yearly[0].Total)
	assert.Equal(t, 30, yearly[0].Days)
	assert.InDelta(t, 3.0, yearly[0].Average, 1e-9)
	assert.True(t, yearly[0].CompleteYear)

	assert.Equal(t, "2023", yearly[1].Year)
	assert.False(t, yearly[1].CompleteYear)
}

func TestYearlySummariesZeroDays(t *testing.T) {
	yearly := YearlySummaries([]models.MonthlySummary{
		{Month: "2023-01", Total: 0, Days: 0},
	}, day(2023, time.June, 1))
	require.Len(t, yearly, 1)
	assert.Zero(t, yearly[0].Average)
}

func TestSampleStatistics(t *testing.T) {
	samples := []float64{3, -1, 7, 4}

	assert.InDelta(t, 3.25, Mean(samples), 1e-9)
	assert.Equal(t, -1.0, Min(samples))
	assert.Equal(t, 7.0, Max(samples))

	assert.Zero(t, Mean(nil))
	assert.Zero(t, Min(nil))
	assert.Zero(t, Max(nil))
}
