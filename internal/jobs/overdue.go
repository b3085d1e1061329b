// Package jobs wires periodic maintenance work onto a cron scheduler.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dps-core/contract-engine/internal/service"
)

// Sweeper runs the overdue sweep on a schedule
type Sweeper struct {
	svc *service.Service
	log *logrus.Logger
}

// NewSweeper creates a new sweeper
func NewSweeper(svc *service.Service, log *logrus.Logger) *Sweeper {
	return &Sweeper{svc: svc, log: log}
}

// Start registers the sweep on the given cron schedule and starts the
// scheduler. The returned cron can be stopped on shutdown.
func (s *Sweeper) Start(schedule string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, s.run); err != nil {
		return nil, err
	}
	c.Start()
	s.log.Infof("Overdue sweep scheduled: %q", schedule)
	return c, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.svc.SweepOverdue(ctx, time.Now()); err != nil {
		s.log.Errorf("Overdue sweep failed: %v", err)
	}
}
