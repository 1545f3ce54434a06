package models

import "time"

// DataPoint represents a single processed time series data point.
type DataPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Envelope is the uniform response shape returned by every domain endpoint.
// Data holds a resolution-specific ordered slice; timestamps within one
// envelope are non-decreasing and share a single unit.
type Envelope struct {
	Domain     string `json:"domain"`
	Resolution string `json:"resolution"`
	Unit       string `json:"unit"`
	Data       any    `json:"data"`
}

// DailyEnergy is one day of electricity consumption.
type DailyEnergy struct {
	Date        Date    `json:"date"`
	Consumption float64 `json:"consumption"`
}

// DailyRainfall is one day of accumulated rainfall.
type DailyRainfall struct {
	Date       Date    `json:"date"`
	RainfallMM float64 `json:"rainfall_mm"`
}

// DailyTemperature holds one day of raw temperature samples, split into
// daytime and nighttime buckets at the computed sunrise/sunset times.
type DailyTemperature struct {
	Date      Date      `json:"date"`
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
	Daytime   []float64 `json:"daytime"`
	Nighttime []float64 `json:"nighttime"`
}

// MonthlySummary aggregates one month of daily records.
// Days counts the days with a recorded value; it is zero (and omitted) for
// domains where every day has a reading.
type MonthlySummary struct {
	Month         string  `json:"month"` // "2006-01"
	Total         float64 `json:"total"`
	Days          int     `json:"days,omitempty"`
	Average       float64 `json:"average"`
	CompleteMonth bool    `json:"complete_month"`
}

// MonthlyData is the monthly endpoint payload. Months holds every month
// with data in ascending order; Current repeats the in-progress month, or
// is a zeroed incomplete summary when that month has no data yet.
type MonthlyData struct {
	Months  []MonthlySummary `json:"months"`
	Current MonthlySummary   `json:"current"`
}

// YearlySummary aggregates one calendar year of monthly summaries.
type YearlySummary struct {
	Year         string  `json:"year"` // "2006"
	Total        float64 `json:"total"`
	Days         int     `json:"days,omitempty"`
	Average      float64 `json:"average"`
	CompleteYear bool    `json:"complete_year"`
}

// YearlyData is the yearly endpoint payload, shaped like MonthlyData.
type YearlyData struct {
	Years   []YearlySummary `json:"years"`
	Current YearlySummary   `json:"current"`
}

// TemperatureStats is the derived daily min/max/mean view served to Grafana.
type TemperatureStats struct {
	Date         Date      `json:"date"`
	Sunrise      time.Time `json:"sunrise"`
	Sunset       time.Time `json:"sunset"`
	Average      float64   `json:"average"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	DayAverage   float64   `json:"day_average"`
	DayMin       float64   `json:"day_min"`
	DayMax       float64   `json:"day_max"`
	NightAverage float64   `json:"night_average"`
	NightMin     float64   `json:"night_min"`
	NightMax     float64   `json:"night_max"`
}
