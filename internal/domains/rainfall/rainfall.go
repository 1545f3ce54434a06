// Package rainfall processes tipping-bucket rain gauge data.
//
// Raw readings are summed per day in Flux. Days at or below the tip-noise
// threshold are discarded: a strong gust can tip the bucket even when it
// is not raining.
package rainfall

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/domdfcoding/statsbackend/internal/backend"
	"github.com/domdfcoding/statsbackend/internal/influx"
	"github.com/domdfcoding/statsbackend/internal/models"
	"github.com/domdfcoding/statsbackend/internal/stats"
	"github.com/domdfcoding/statsbackend/internal/store"
)

const domainName = "rainfall"

// DefaultMinDailyMM is the tip-noise threshold in millimetres. One bucket
// tip registers 0.28mm, so a day with a single tip is treated as dry.
const DefaultMinDailyMM = 0.28

// Config holds the rainfall domain settings.
type Config struct {
	// Bucket is the InfluxDB bucket holding the raw sensor data.
	Bucket string

	// Topic is the MQTT topic of the weather station.
	Topic string

	// MinDailyMM is the daily total below which a day counts as dry.
	MinDailyMM float64

	// StartDate is the first day fetched when no data exists on disk.
	StartDate models.Date
}

// Backend implements backend.Backend for rainfall.
type Backend struct {
	cfg     Config
	querier influx.RowQuerier
	store   *store.Store[models.DailyRainfall]
	logger  *logrus.Logger
	clock   clockwork.Clock
}

// New creates the rainfall backend. A nil clock selects the real clock.
func New(cfg Config, querier influx.RowQuerier, st *store.Store[models.DailyRainfall], logger *logrus.Logger, clock clockwork.Clock) *Backend {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.MinDailyMM == 0 {
		cfg.MinDailyMM = DefaultMinDailyMM
	}
	return &Backend{
		cfg:     cfg,
		querier: querier,
		store:   st,
		logger:  logger,
		clock:   clock,
	}
}

func (b *Backend) Name() string { return domainName }
func (b *Backend) Unit() string { return "mm" }

func (b *Backend) Resolutions() []string {
	return []string{backend.ResolutionDaily, backend.ResolutionMonthly, backend.ResolutionYearly}
}

// Update fetches daily rainfall totals since the last stored day and
// rewrites the data files. Today's partial total goes only to the cache.
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
		return 0, fmt.Errorf("rainfall update: %w", err)
	}

	fetched := Transform(rows, b.cfg.MinDailyMM)
	records := append(existing, fetched...)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	today := models.DateOf(b.clock.Now().UTC())
	durable := make([]models.DailyRainfall, 0, len(records))
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

// Endpoint serves the daily series, the monthly roll-up, or the yearly
// roll-up of the monthlies.
func (b *Backend) Endpoint(ctx context.Context, resolution string) (any, error) {
	records, err := b.store.LoadCache()
	if err != nil {
		return nil, err
	}

	today := models.DateOf(b.clock.Now().UTC())
	switch resolution {
	case backend.ResolutionDaily:
		return records, nil
	case backend.ResolutionMonthly:
		return stats.MonthlyEndpoint(b.daily(records), today, true), nil
	case backend.ResolutionYearly:
		return stats.YearlyEndpoint(stats.MonthlySummaries(b.daily(records), today, true), today), nil
	default:
		return nil, fmt.Errorf("%w: %s", backend.ErrUnsupportedResolution, resolution)
	}
}

// Latest returns the most recent daily rainfall record, including today's
// partial total.
func (b *Backend) Latest(ctx context.Context) (any, error) {
	records, err := b.store.LoadCache()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[len(records)-1], nil
}

func (b *Backend) daily(records []models.DailyRainfall) []stats.DatedValue {
	daily := make([]stats.DatedValue, len(records))
	for i, r := range records {
		daily[i] = stats.DatedValue{Date: r.Date, Value: r.RainfallMM}
	}
	return daily
}

// Transform reshapes raw daily-sum rows into rainfall records, dropping
// days at or below the tip-noise threshold.
func Transform(rows []influx.Row, minDailyMM float64) []models.DailyRainfall {
	records := make([]models.DailyRainfall, 0, len(rows))
	for _, row := range rows {
		if row.Value <= minDailyMM {
			continue
		}
		records = append(records, models.DailyRainfall{
			Date:       models.DateOf(row.Time.UTC()),
			RainfallMM: row.Value,
		})
	}
	return records
}

func buildQuery(cfg Config, since models.Date) string {
	start := since.Time(time.UTC).Format(time.RFC3339)
	return fmt.Sprintf(`
import "date"

from(bucket: %q)
  |> range(start: date.truncate(t: %s, unit: 1d), stop: now())
  |> filter(fn: (r) => r["topic"] == %q)
  |> filter(fn: (r) => r["_field"] == "Rainfall")
  |> drop(columns: ["host"])
  |> truncateTimeColumn(unit: 1d)
  |> aggregateWindow(every: 1d, fn: sum, createEmpty: false, timeSrc: "_start")
  |> yield(name: "sum")
`, cfg.Bucket, start, cfg.Topic)
}

var _ backend.Backend = (*Backend)(nil)
