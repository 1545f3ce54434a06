// Package stats holds the pure aggregation functions shared by the domain
// backends: monthly and yearly roll-ups of daily records, and basic sample
// statistics for the temperature endpoints.
package stats

import (
	"fmt"

	"github.com/domdfcoding/statsbackend/internal/models"
)

// DatedValue is a (date, value) pair, the common shape of daily records.
type DatedValue struct {
	Date  models.Date
	Value float64
}

// MonthlySummaries groups daily values by calendar month, in ascending
// month order. The average divides by the number of days in the month,
// except for the month containing today, where it divides by the days
// elapsed so far. When countDays is true the summaries carry the number
// of days with a recorded value (rainfall counts rain days; energy has a
// reading every day).
func MonthlySummaries(daily []DatedValue, today models.Date, countDays bool) []models.MonthlySummary {
	var summaries []models.MonthlySummary

	for i := 0; i < len(daily); {
		year, month := daily[i].Date.Year, daily[i].Date.Month

		var total float64
		days := 0
		for i < len(daily) && daily[i].Date.Year == year && daily[i].Date.Month == month {
			total += daily[i].Value
			days++
			i++
		}

		currentMonth := year == today.Year && month == today.Month
		divisor := daily[i-1].Date.DaysInMonth()
		if currentMonth {
			divisor = today.Day
		}

		summary := models.MonthlySummary{
			Month:         fmt.Sprintf("%04d-%02d", year, int(month)),
			Total:         total,
			Average:       total / float64(divisor),
			CompleteMonth: !currentMonth,
		}
		if countDays {
			summary.Days = days
		}
		summaries = append(summaries, summary)
	}

	return summaries
}

// MonthlyEndpoint builds the monthly endpoint payload: all monthly
// summaries plus the in-progress month broken out under Current. A month
// with no data yet yields a zeroed incomplete Current.
func MonthlyEndpoint(daily []DatedValue, today models.Date, countDays bool) models.MonthlyData {
	months := MonthlySummaries(daily, today, countDays)

	current := models.MonthlySummary{
		Month: fmt.Sprintf("%04d-%02d", today.Year, int(today.Month)),
	}
	if n := len(months); n > 0 && months[n-1].Month == current.Month {
		current = months[n-1]
	}

	return models.MonthlyData{Months: months, Current: current}
}

// YearlyEndpoint builds the yearly endpoint payload, with the in-progress
// year under Current.
func YearlyEndpoint(monthly []models.MonthlySummary, today models.Date) models.YearlyData {
	years := YearlySummaries(monthly, today)

	current := models.YearlySummary{Year: fmt.Sprintf("%04d", today.Year)}
	if n := len(years); n > 0 && years[n-1].Year == current.Year {
		current = years[n-1]
	}

	return models.YearlyData{Years: years, Current: current}
}

// YearlySummaries rolls monthly summaries up into calendar years, in
// ascending year order. The average is total over recorded days, so the
// input must carry day counts.
func YearlySummaries(monthly []models.MonthlySummary, today models.Date) []models.YearlySummary {
	var summaries []models.YearlySummary

	for i := 0; i < len(monthly); {
		year := monthly[i].Month[:4]

		var total float64
		days := 0
		for i < len(monthly) && monthly[i].Month[:4] == year {
			total += monthly[i].Total
			days += monthly[i].Days
			i++
		}

		summary := models.YearlySummary{
			Year:         year,
			Total:        total,
			Days:         days,
			CompleteYear: year != fmt.Sprintf("%04d", today.Year),
		}
		if days > 0 {
			summary.Average = total / float64(days)
		}
		summaries = append(summaries, summary)
	}

	return summaries
}

// Mean returns the arithmetic mean of samples. Zero for an empty slice.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// Min returns the smallest sample. Zero for an empty slice.
func Min(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	min := samples[0]
	for _, s := range samples[1:] {
		if s < min {
			min = s
		}
	}
	return min
}

// Max returns the largest sample. Zero for an empty slice.
func Max(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	max := samples[0]
	for _, s := range samples[1:] {
		if s > max {
			max = s
		}
	}
	return max
}
