// Package scheduler wires up the cron job that periodically drives the SEO
// recheck loop over every due job.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"seowibe/rank-service/internal/seo"
)

// Scheduler wraps robfig/cron and manages the recheck loop.
type Scheduler struct {
	cron    *cron.Cron
	service *seo.Service
	spec    string // cron spec, e.g. "@every 5m"
}

// New creates a Scheduler that fires every interval.
func New(service *seo.Service, interval time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.DefaultLogger)),
		service: service,
		spec:    fmt.Sprintf("@every %s", interval),
	}
}

// Start registers the job and starts the scheduler. Also runs one pass
// immediately so overdue jobs are not stuck until the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runPass(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runPass(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// runPass rechecks everything due right now.
func (s *Scheduler) runPass(ctx context.Context) {
	log.Println("[scheduler] Recheck pass started")

	processed, err := s.service.RunDueRechecks(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[scheduler] Recheck pass error: %v", err)
		return
	}
	if processed == 0 {
		log.Println("[scheduler] No due seo jobs — nothing to recheck")
		return
	}

	log.Printf("[scheduler] Recheck pass complete — %d job(s) processed", processed)
}
