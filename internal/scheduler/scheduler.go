// Package scheduler runs the periodic data refresh.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/domdfcoding/statsbackend/internal/backend"
)

// SummaryPublisher receives each domain's latest daily record after a
// successful refresh. Optional.
type SummaryPublisher interface {
	PublishDaily(domain string, payload any) error
}

// Scheduler refreshes every domain on a cron schedule.
type Scheduler struct {
	ctx       context.Context
	registry  *backend.Registry
	publisher SummaryPublisher
	onRefresh func()
	logger    *logrus.Logger
	cron      *cron.Cron
	spec      string
}

// NewScheduler creates a scheduler. publisher may be nil; onRefresh (if
// non-nil) runs after every refresh cycle, used to drop cached responses.
func NewScheduler(ctx context.Context, registry *backend.Registry, publisher SummaryPublisher, onRefresh func(), logger *logrus.Logger, spec string) *Scheduler {
	return &Scheduler{
		ctx:       ctx,
		registry:  registry,
		publisher: publisher,
		onRefresh: onRefresh,
		logger:    logger,
		cron:      cron.New(),
		spec:      spec,
	}
}

// Start registers the refresh job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.refresh)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Bootstrap runs one refresh immediately, fetching everything since the
// configured start dates on first run.
func (s *Scheduler) Bootstrap() {
	s.refresh()
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	if err := s.registry.UpdateAll(ctx); err != nil {
		s.logger.WithError(err).Error("Refresh cycle finished with errors")
	}

	if s.onRefresh != nil {
		s.onRefresh()
	}

	if s.publisher == nil {
		return
	}
	for _, domain := range s.registry.Domains() {
		latest, err := s.registry.Latest(ctx, domain)
		if err != nil {
			s.logger.WithError(err).WithField("domain", domain).Error("Failed to load latest record")
			continue
		}
		if err := s.publisher.PublishDaily(domain, latest); err != nil {
			s.logger.WithError(err).WithField("domain", domain).Error("Failed to publish daily summary")
		}
	}
}

// Stop the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
