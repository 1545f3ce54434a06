// Package energy processes electricity consumption data.
//
// Instantaneous power is derived in Flux by joining the CT clamp current
// readings with the voltage reported by a smart plug, averaged hourly and
// summed per day. The stored records are daily watt-hour totals.
package energy

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

const domainName = "energy"

// Config holds the energy domain settings.
type Config struct {
	// Bucket is the InfluxDB bucket holding the raw sensor data.
	Bucket string

	// CurrentTopic is the MQTT topic of the CT clamp current sensor.
	CurrentTopic string

	// VoltageSource is the device whose ENERGY_Voltage readings are
	// joined with the clamp current, e.g. "PLUG_KETTLE".
	VoltageSource string

	// StartDate is the first day fetched when no data exists on disk.
	StartDate models.Date
}

// Backend implements backend.Backend for electricity consumption.
type Backend struct {
	cfg     Config
	querier influx.RowQuerier
	store   *store.Store[models.DailyEnergy]
	logger  *logrus.Logger
	clock   clockwork.Clock
}

// New creates the energy backend. A nil clock selects the real clock.
func New(cfg Config, querier influx.RowQuerier, st *store.Store[models.DailyEnergy], logger *logrus.Logger, clock clockwork.Clock) *Backend {
	if clock == nil {
		clock = clockwork.NewRealClock()
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
func (b *Backend) Unit() string { return "Wh" }

func (b *Backend) Resolutions() []string {
	return []string{backend.ResolutionDaily, backend.ResolutionMonthly}
}

// Update fetches daily consumption since the last stored day and rewrites
// the data files. Today's partial total goes only to the cache file.
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
		return 0, fmt.Errorf("energy update: %w", err)
	}

	records := append(existing, Transform(rows)...)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	today := models.DateOf(b.clock.Now().UTC())
	durable := make([]models.DailyEnergy, 0, len(records))
	for _, r := range records {
		if r.Date != today {
			durable = append(durable, r)
		}
	}

	if err := b.store.Save(durable, records); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Endpoint serves the daily series or the monthly roll-up.
func (b *Backend) Endpoint(ctx context.Context, resolution string) (any, error) {
	records, err := b.store.LoadCache()
	if err != nil {
		return nil, err
	}

	switch resolution {
	case backend.ResolutionDaily:
		return records, nil
	case backend.ResolutionMonthly:
		daily := make([]stats.DatedValue, len(records))
		for i, r := range records {
			daily[i] = stats.DatedValue{Date: r.Date, Value: r.Consumption}
		}
		return stats.MonthlyEndpoint(daily, models.DateOf(b.clock.Now().UTC()), false), nil
	default:
		return nil, fmt.Errorf("%w: %s", backend.ErrUnsupportedResolution, resolution)
	}
}

// Latest returns the most recent daily consumption record, including
// today's partial total.
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

// Transform reshapes raw daily-sum rows into consumption records.
// The Flux query emits one row per day, timestamped at the bucket start.
func Transform(rows []influx.Row) []models.DailyEnergy {
	records := make([]models.DailyEnergy, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.DailyEnergy{
			Date:        models.DateOf(row.Time.UTC()),
			Consumption: row.Value,
		})
	}
	return records
}

// buildQuery assembles the Flux query joining clamp current with plug
// voltage: hourly mean power, then summed into daily totals.
func buildQuery(cfg Config, since models.Date) string {
	start := since.Time(time.UTC).Format(time.RFC3339)
	return fmt.Sprintf(`
import "date"

current = from(bucket: %q)
  |> range(start: date.truncate(t: %s, unit: 1d), stop: now())
  |> filter(fn: (r) => r["topic"] == %q)
  |> filter(fn: (r) => r["_field"] == "Current")
  |> aggregateWindow(every: 1h, fn: mean)

voltage = from(bucket: %q)
  |> range(start: date.truncate(t: %s, unit: 1d), stop: now())
  |> filter(fn: (r) => r["topic"] == "%s/tele/SENSOR")
  |> filter(fn: (r) => r["_field"] == "ENERGY_Voltage")
  |> aggregateWindow(every: 1h, fn: mean)

join(
  tables: {voltage: voltage, current: current},
  on: ["_time", "_stop", "_start", "host"],
)
  |> map(fn: (r) => ({r with _value: r._value_current * r._value_voltage}))
  |> truncateTimeColumn(unit: 1h)
  |> aggregateWindow(every: 1h, fn: mean, createEmpty: false, timeSrc: "_start")
  |> aggregateWindow(every: 1d, fn: sum, createEmpty: false, timeSrc: "_start")
  |> yield(name: "sum")
`, cfg.Bucket, start, cfg.CurrentTopic, cfg.Bucket, start, cfg.VoltageSource)
}

var _ backend.Backend = (*Backend)(nil)
