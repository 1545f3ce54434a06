// Package backend defines the domain backend contract and the registry
// that dispatches requests by domain name.
//
// A backend owns one measured category (energy, rainfall, temperature):
// it refreshes processed data from InfluxDB and serves the reshaped
// results at one or more resolutions.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/domdfcoding/statsbackend/internal/models"
)

// Supported endpoint resolutions.
const (
	ResolutionDaily   = "daily"
	ResolutionMonthly = "monthly"
	ResolutionYearly  = "yearly"
)

var (
	// ErrUnknownDomain indicates a request named a domain no backend serves.
	ErrUnknownDomain = errors.New("unknown domain")

	// ErrUnsupportedResolution indicates the domain exists but does not
	// serve the requested resolution.
	ErrUnsupportedResolution = errors.New("unsupported resolution")
)

// Backend is one domain's data source and transformer.
type Backend interface {
	// Name returns the domain name used in request dispatch.
	Name() string

	// Unit returns the measurement unit shared by all of the domain's
	// responses.
	Unit() string

	// Resolutions lists the endpoint resolutions the domain serves.
	Resolutions() []string

	// Update refreshes the processed data on disk from InfluxDB,
	// resuming after the last complete day already stored.
	// Returns the number of new daily records.
	Update(ctx context.Context) (int, error)

	// Endpoint returns the processed data at the given resolution.
	Endpoint(ctx context.Context, resolution string) (any, error)

	// Latest returns the most recent daily record, or nil when no data
	// has been processed yet.
	Latest(ctx context.Context) (any, error)
}

// Registry dispatches by domain name to the registered backends.
type Registry struct {
	backends map[string]Backend
	logger   *logrus.Logger
}

// NewRegistry builds a registry over the given backends.
func NewRegistry(logger *logrus.Logger, backends ...Backend) *Registry {
	r := &Registry{
		backends: make(map[string]Backend, len(backends)),
		logger:   logger,
	}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	return r
}

// Domains returns the registered domain names in sorted order.
func (r *Registry) Domains() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the backend for a domain name.
func (r *Registry) Get(domain string) (Backend, error) {
	b, ok := r.backends[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return b, nil
}

// Endpoint dispatches a query to the named domain and wraps the result in
// the uniform response envelope.
func (r *Registry) Endpoint(ctx context.Context, domain, resolution string) (*models.Envelope, error) {
	b, err := r.Get(domain)
	if err != nil {
		return nil, err
	}

	supported := false
	for _, res := range b.Resolutions() {
		if res == resolution {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedResolution, domain, resolution)
	}

	data, err := b.Endpoint(ctx, resolution)
	if err != nil {
		return nil, fmt.Errorf("query failed for %s/%s: %w", domain, resolution, err)
	}

	return &models.Envelope{
		Domain:     domain,
		Resolution: resolution,
		Unit:       b.Unit(),
		Data:       data,
	}, nil
}

// Latest returns one domain's most recent daily record.
func (r *Registry) Latest(ctx context.Context, domain string) (any, error) {
	b, err := r.Get(domain)
	if err != nil {
		return nil, err
	}
	return b.Latest(ctx)
}

// Update refreshes one domain's processed data.
func (r *Registry) Update(ctx context.Context, domain string) (int, error) {
	b, err := r.Get(domain)
	if err != nil {
		return 0, err
	}
	return b.Update(ctx)
}

// UpdateAll refreshes every registered domain, continuing past individual
// failures. The returned error joins all failures.
func (r *Registry) UpdateAll(ctx context.Context) error {
	var errs []error
	for _, name := range r.Domains() {
		n, err := r.backends[name].Update(ctx)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"domain": name,
			}).WithError(err).Error("Failed to update domain")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		r.logger.WithFields(logrus.Fields{
			"domain":      name,
			"new_records": n,
		}).Info("Domain updated")
	}
	return errors.Join(errs...)
}
