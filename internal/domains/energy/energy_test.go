package energy

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domdfcoding/statsbackend/internal/backend"
	"github.com/domdfcoding/statsbackend/internal/influx"
	"github.com/domdfcoding/statsbackend/internal/models"
	"github.com/domdfcoding/statsbackend/internal/store"
)

type fakeQuerier struct {
	rows []influx.Row
	err  error
	flux string
}

func (f *fakeQuerier) QueryRows(_ context.Context, flux string) ([]influx.Row, error) {
	f.flux = flux
	return f.rows, f.err
}

func newTestBackend(t *testing.T, querier influx.RowQuerier, now time.Time) *Backend {
	t.Helper()
	cfg := Config{
		Bucket:        "telegraf",
		CurrentTopic:  "CT_CLAMP/tele/SENSOR",
		VoltageSource: "PLUG_KETTLE",
		StartDate:     models.Date{Year: 2022, Month: time.August, Day: 1},
	}
	st := store.New[models.DailyEnergy](t.TempDir(), "daily_energy")
	return New(cfg, querier, st, logrus.New(), clockwork.NewFakeClockAt(now))
}

func TestTransform(t *testing.T) {
	rows := []influx.Row{
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Value: 4200},
		{Time: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Value: 3100.5},
	}

	records := Transform(rows)
	require.Len(t, records, 2)
	assert.Equal(t, models.Date{Year: 2023, Month: time.January, Day: 1}, records[0].Date)
	assert.Equal(t, 4200.0, records[0].Consumption)
	assert.Equal(t, 3100.5, records[1].Consumption)
}

func TestUpdateSplitsPartialDay(t *testing.T) {
	now := time.Date(2023, 1, 3, 12, 0, 0, 0, time.UTC)
	querier := &fakeQuerier{rows: []influx.Row{
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Value: 4000},
		{Time: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Value: 5000},
		{Time: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), Value: 1200},
	}}
	b := newTestBackend(t, querier, now)

	n, err := b.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// The first run starts from the configured start date.
	assert.Contains(t, querier.flux, "2022-08-01T00:00:00Z")
	assert.Contains(t, querier.flux, `"CT_CLAMP/tele/SENSOR"`)
	assert.Contains(t, querier.flux, `"PLUG_KETTLE/tele/SENSOR"`)

	// Today's partial total is served but not persisted as complete.
	daily, err := b.Endpoint(context.Background(), backend.ResolutionDaily)
	require.NoError(t, err)
	require.Len(t, daily.([]models.DailyEnergy), 3)

	durable, err := b.store.Load()
	require.NoError(t, err)
	require.Len(t, durable, 2)
	assert.Equal(t, models.Date{Year: 2023, Month: time.January, Day: 2}, durable[1].Date)
}

func TestUpdateResumesAfterLastCompleteDay(t *testing.T) {
	now := time.Date(2023, 1, 3, 12, 0, 0, 0, time.UTC)
	querier := &fakeQuerier{rows: []influx.Row{
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Value: 4000},
		{Time: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Value: 5000},
	}}
	b := newTestBackend(t, querier, now)

	_, err := b.Update(context.Background())
	require.NoError(t, err)

	querier.rows = nil
	_, err = b.Update(context.Background())
	require.NoError(t, err)

	// The second run resumes the day after the last complete one.
	assert.Contains(t, querier.flux, "2023-01-03T00:00:00Z")
}

func TestUpdateQueryError(t *testing.T) {
	querier := &fakeQuerier{err: influx.ErrQuery}
	b := newTestBackend(t, querier, time.Now())

	_, err := b.Update(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, influx.ErrQuery)
}

func TestEndpointMonthly(t *testing.T) {
	now := time.Date(2023, 2, 10, 12, 0, 0, 0, time.UTC)
	querier := &fakeQuerier{rows: []influx.Row{
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Value: 1000},
		{Time: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Value: 2000},
		{Time: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), Value: 500},
	}}
	b := newTestBackend(t, querier, now)

	_, err := b.Update(context.Background())
	require.NoError(t, err)

	data, err := b.Endpoint(context.Background(), backend.ResolutionMonthly)
	require.NoError(t, err)

	monthly := data.(models.MonthlyData)
	require.Len(t, monthly.Months, 2)
	assert.Equal(t, "2023-01", monthly.Months[0].Month)
	assert.Equal(t, 3000.0, monthly.Months[0].Total)
	assert.True(t, monthly.Months[0].CompleteMonth)
	assert.False(t, monthly.Months[1].CompleteMonth)
	assert.InDelta(t, 500.0/10, monthly.Months[1].Average, 1e-9)

	// The in-progress month repeats under current.
	assert.Equal(t, monthly.Months[1], monthly.Current)
}

func TestEndpointUnsupportedResolution(t *testing.T) {
	b := newTestBackend(t, &fakeQuerier{}, time.Now())

	_, err := b.Endpoint(context.Background(), backend.ResolutionYearly)
	assert.ErrorIs(t, err, backend.ErrUnsupportedResolution)
}

func TestLatest(t *testing.T) {
	now := time.Date(2023, 1, 3, 12, 0, 0, 0, time.UTC)
	b := newTestBackend(t, &fakeQuerier{rows: []influx.Row{
		{Time: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Value: 5000},
		{Time: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), Value: 700},
	}}, now)

	latest, err := b.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = b.Update(context.Background())
	require.NoError(t, err)

	latest, err = b.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DailyEnergy{
		Date:        models.Date{Year: 2023, Month: time.January, Day: 3},
		Consumption: 700,
	}, latest)
}
