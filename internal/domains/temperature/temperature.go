// Package temperature processes outdoor temperature data.
//
// Raw samples are grouped by day and split into daytime and nighttime
// buckets at the computed sunrise and sunset for the configured location.
// The daily endpoint serves min/max/mean for the whole day and for each
// bucket.
package temperature

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nathan-osman/go-sunrise"
	"github.com/sirupsen/logrus"

	"github.com/domdfcoding/statsbackend/internal/backend"
	"github.com/domdfcoding/statsbackend/internal/influx"
	"github.com/domdfcoding/statsbackend/internal/models"
	"github.com/domdfcoding/statsbackend/internal/stats"
	"github.com/domdfcoding/statsbackend/internal/store"
)

const domainName = "temperature"

// DefaultMinValid discards sensor sentinel readings. A BMP280 with a lost
// I2C connection reports temperatures near absolute zero.
const DefaultMinValid = -140.0

// Config holds the temperature domain settings.
type Config struct {
	// Bucket is the InfluxDB bucket holding the raw sensor data.
	Bucket string

	// Topic is the device reporting BMP280/BME280 temperatures,
	// e.g. "WEATHER_STATION".
	Topic string

	// Latitude and Longitude locate the sensor for sunrise/sunset
	// computation.
	Latitude  float64
	Longitude float64

	// MinValid is the lowest reading accepted as a real measurement.
	MinValid float64

	// StartDate is the first day fetched when no data exists on disk.
	StartDate models.Date
}

// SunFunc returns the sunrise and sunset instants for a date.
// Injected so tests can pin the day/night boundary.
type SunFunc func(date models.Date) (sunriseAt, sunsetAt time.Time)

// Backend implements backend.Backend for temperature.
type Backend struct {
	cfg     Config
	querier influx.RowQuerier
	store   *store.Store[models.DailyTemperature]
	logger  *logrus.Logger
	clock   clockwork.Clock
	sun     SunFunc
}

// New creates the temperature backend. A nil clock selects the real clock;
// a nil sun function selects the astronomical computation for the
// configured coordinates.
func New(cfg Config, querier influx.RowQuerier, st *store.Store[models.DailyTemperature], logger *logrus.Logger, clock clockwork.Clock, sun SunFunc) *Backend {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.MinValid == 0 {
		cfg.MinValid = DefaultMinValid
	}
	if sun == nil {
		sun = func(date models.Date) (time.Time, time.Time) {
			return sunrise.SunriseSunset(cfg.Latitude, cfg.Longitude, date.Year, date.Month, date.Day)
		}
	}
	return &Backend{
		cfg:     cfg,
		querier: querier,
		store:   st,
		logger:  logger,
		clock:   clock,
		sun:     sun,
	}
}

func (b *Backend) Name() string { return domainName }
func (b *Backend) Unit() string { return "°C" }

func (b *Backend) Resolutions() []string {
	return []string{backend.ResolutionDaily}
}

// Update fetches raw samples since the last stored day, splits them into
// day/night buckets, and rewrites the data files. Today's partial day goes
// only to the cache file.
func (b *Backend) Update(ctx context.Context) (int, error) {
	existing, err := b.store.Load()
	if err != nil {
		return 0, err
	}

	since := b.cfg.StartDate
	if len(existing) > 0 {
		since = existing[len(existing)-1].Date.AddDays(1)
	}

	rows, err := b.querier.QueryRows(ctx, buildQuery(b.cfg, since))
	if err != nil {
		return 0, fmt.Errorf("temperature update: %w", err)
	}

	fetched := Transform(rows, b.sun, b.cfg.MinValid)

	// Re-fetched days replace stored ones; only the previously partial
	// day can overlap.
	byDate := make(map[models.Date]models.DailyTemperature, len(existing)+len(fetched))
	for _, r := range existing {
		byDate[r.Date] = r
	}
	for _, r := range fetched {
		byDate[r.Date] = r
	}

	records := make([]models.DailyTemperature, 0, len(byDate))
	for _, r := range byDate {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	today := models.DateOf(b.clock.Now().UTC())
	durable := make([]models.DailyTemperature, 0, len(records))
	for _, r := range records {
		if r.Date != today {
			durable = append(durable, r)
		}
	}

	if err := b.store.Save(durable, records); err != nil {
		return 0, err
	}
	return len(fetched), nil
}

// Endpoint serves the daily min/max/mean view.
func (b *Backend) Endpoint(ctx context.Context, resolution string) (any, error) {
	if resolution != backend.ResolutionDaily {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnsupportedResolution, resolution)
	}

	records, err := b.store.LoadCache()
	if err != nil {
		return nil, err
	}

	result := make([]models.TemperatureStats, 0, len(records))
	for _, r := range records {
		allDay := make([]float64, 0, len(r.Daytime)+len(r.Nighttime))
		allDay = append(allDay, r.Daytime...)
		allDay = append(allDay, r.Nighttime...)
		if len(allDay) == 0 {
			continue
		}

		result = append(result, models.TemperatureStats{
			Date:         r.Date,
			Sunrise:      r.Sunrise,
			Sunset:       r.Sunset,
			Average:      stats.Mean(allDay),
			Min:          stats.Min(allDay),
			Max:          stats.Max(allDay),
			DayAverage:   stats.Mean(r.Daytime),
			DayMin:       stats.Min(r.Daytime),
			DayMax:       stats.Max(r.Daytime),
			NightAverage: stats.Mean(r.Nighttime),
			NightMin:     stats.Min(r.Nighttime),
			NightMax:     stats.Max(r.Nighttime),
		})
	}
	return result, nil
}

// Latest returns the most recent day's derived statistics, including
// today's partial day.
func (b *Backend) Latest(ctx context.Context) (any, error) {
	data, err := b.Endpoint(ctx, backend.ResolutionDaily)
	if err != nil {
		return nil, err
	}
	days := data.([]models.TemperatureStats)
	if len(days) == 0 {
		return nil, nil
	}
	return days[len(days)-1], nil
}

// Transform groups raw samples by UTC day and splits each day at sunrise
// and sunset. Sentinel readings below minValid are discarded.
func Transform(rows []influx.Row, sun SunFunc, minValid float64) []models.DailyTemperature {
	byDate := make(map[models.Date]*models.DailyTemperature)
	var order []models.Date

	for _, row := range rows {
		if row.Value < minValid {
			continue
		}

		date := models.DateOf(row.Time.UTC())
		day, ok := byDate[date]
		if !ok {
			sunriseAt, sunsetAt := sun(date)
			day = &models.DailyTemperature{
				Date:      date,
				Sunrise:   sunriseAt,
				Sunset:    sunsetAt,
				Daytime:   []float64{},
				Nighttime: []float64{},
			}
			byDate[date] = day
			order = append(order, date)
		}

		t := row.Time.UTC()
		if !t.Before(day.Sunrise) && !t.After(day.Sunset) {
			day.Daytime = append(day.Daytime, row.Value)
		} else {
			day.Nighttime = append(day.Nighttime, row.Value)
		}
	}

	records := make([]models.DailyTemperature, 0, len(order))
	for _, date := range order {
		records = append(records, *byDate[date])
	}
	return records
}

func buildQuery(cfg Config, since models.Date) string {
	start := since.Time(time.UTC).Format(time.RFC3339)
	return fmt.Sprintf(`
import "date"

from(bucket: %q)
  |> range(start: date.truncate(t: %s, unit: 1d), stop: now())
  |> filter(fn: (r) => r["topic"] == "%s/tele/SENSOR")
  |> filter(fn: (r) => r["_field"] == "BMP280_Temperature" or r["_field"] == "BME280_Temperature")
  |> drop(columns: ["host"])
  |> group()
  |> sort(columns: ["_time"])
`, cfg.Bucket, start, cfg.Topic)
}

var _ backend.Backend = (*Backend)(nil)
