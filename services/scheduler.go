// services/scheduler.go
package services

import (
	"context"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// StartEvaluationScheduler runs the threshold scan on a fixed interval.
// The scan is idempotent, so overlapping runs across service instances are
// harmless — transitions race on the status compare-and-set, not on the scan.
func (s *ThresholdService) StartEvaluationScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.Cfg.EvalInterval),
		gocron.NewTask(func() {
			s.EvaluateAll(ctx)
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.WithField("interval", s.Cfg.EvalInterval).Info("threshold evaluation scheduler started")
	return sched, nil
}
