package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	name        string
	unit        string
	resolutions []string
	data        any
	updated     int
	updateErr   error
	endpointErr error
}

func (s *stubBackend) Name() string          { return s.name }
func (s *stubBackend) Unit() string          { return s.unit }
func (s *stubBackend) Resolutions() []string { return s.resolutions }

func (s *stubBackend) Update(context.Context) (int, error) {
	s.updated++
	return 2, s.updateErr
}

func (s *stubBackend) Endpoint(context.Context, string) (any, error) {
	return s.data, s.endpointErr
}

func (s *stubBackend) Latest(context.Context) (any, error) {
	return s.data, nil
}

func newTestRegistry(backends ...Backend) *Registry {
	return NewRegistry(logrus.New(), backends...)
}

func TestDomains(t *testing.T) {
	r := newTestRegistry(
		&stubBackend{name: "temperature"},
		&stubBackend{name: "energy"},
	)
	assert.Equal(t, []string{"energy", "temperature"}, r.Domains())
}

func TestEndpointDispatch(t *testing.T) {
	r := newTestRegistry(&stubBackend{
		name:        "energy",
		unit:        "Wh",
		resolutions: []string{ResolutionDaily},
		data:        []int{1, 2, 3},
	})

	env, err := r.Endpoint(context.Background(), "energy", ResolutionDaily)
	require.NoError(t, err)
	assert.Equal(t, "energy", env.Domain)
	assert.Equal(t, "Wh", env.Unit)
	assert.Equal(t, ResolutionDaily, env.Resolution)
	assert.Equal(t, []int{1, 2, 3}, env.Data)
}

func TestEndpointUnknownDomain(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Endpoint(context.Background(), "humidity", ResolutionDaily)
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestEndpointUnsupportedResolution(t *testing.T) {
	r := newTestRegistry(&stubBackend{
		name:        "temperature",
		resolutions: []string{ResolutionDaily},
	})

	_, err := r.Endpoint(context.Background(), "temperature", ResolutionYearly)
	assert.ErrorIs(t, err, ErrUnsupportedResolution)
}

func TestEndpointWrapsQueryError(t *testing.T) {
	queryErr := errors.New("connection refused")
	r := newTestRegistry(&stubBackend{
		name:        "energy",
		resolutions: []string{ResolutionDaily},
		endpointErr: queryErr,
	})

	_, err := r.Endpoint(context.Background(), "energy", ResolutionDaily)
	require.Error(t, err)
	assert.ErrorIs(t, err, queryErr)
	assert.Contains(t, err.Error(), "energy/daily")
}

func TestUpdateAllContinuesPastFailures(t *testing.T) {
	failing := &stubBackend{name: "energy", updateErr: errors.New("boom")}
	healthy := &stubBackend{name: "rainfall"}
	r := newTestRegistry(failing, healthy)

	err := r.UpdateAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "energy")
	assert.Equal(t, 1, failing.updated)
	assert.Equal(t, 1, healthy.updated)
}

func TestUpdateUnknownDomain(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Update(context.Background(), "humidity")
	assert.ErrorIs(t, err, ErrUnknownDomain)
}
