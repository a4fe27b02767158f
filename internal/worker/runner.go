package worker

import (
	"context"
	"log"
	"time"

	"github.com/memoza/flashcards-back/internal/executor"
	"github.com/memoza/flashcards-back/internal/lease"
	"github.com/memoza/flashcards-back/internal/repository"
	"github.com/memoza/flashcards-back/internal/trigger"
)

const (
	defaultSweepInterval = 30 * time.Second
	sweepBatchSize       = 50
)

// Runner drives the executor from two inputs: kicks delivered by the
// trigger source, and a periodic sweep over eligible job records. The
// sweep is what makes delivery reliable; kicks only shorten latency.
type Runner struct {
	exec          *executor.Executor
	jobs          repository.JobsRepository
	source        trigger.Source
	logger        *log.Logger
	sweepInterval time.Duration
	leaseTTL      time.Duration
}

func NewRunner(
	exec *executor.Executor,
	jobs repository.JobsRepository,
	source trigger.Source,
	sweepInterval time.Duration,
	leaseTTL time.Duration,
	logger *log.Logger,
) *Runner {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if leaseTTL <= 0 {
		leaseTTL = lease.DefaultTTL
	}
	return &Runner{
		exec:          exec,
		jobs:          jobs,
		source:        source,
		logger:        logger,
		sweepInterval: sweepInterval,
		leaseTTL:      leaseTTL,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.source != nil {
		go r.consumeLoop(ctx)
	}

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	// One sweep at startup picks up jobs left behind by a previous
	// process before the first tick fires.
	r.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Runner) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := r.source.Consume(ctx, r.runJob)
		if err == nil || ctx.Err() != nil {
			return
		}
		if r.logger != nil {
			r.logger.Printf("trigger consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Sweep runs one pass over every job that is queued or whose lease has
// gone stale.
func (r *Runner) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	eligible, err := r.jobs.ListEligibleJobs(ctx, now, r.leaseTTL, sweepBatchSize)
	if err != nil {
		if r.logger != nil {
			r.logger.Printf("sweep list error: %v", err)
		}
		return
	}

	for _, jobID := range eligible {
		if ctx.Err() != nil {
			return
		}
		if err := r.runJob(ctx, jobID); err != nil && r.logger != nil {
			r.logger.Printf("sweep run error job_id=%s err=%v", jobID, err)
		}
	}
}

func (r *Runner) runJob(ctx context.Context, jobID string) error {
	outcome, err := r.exec.Run(ctx, jobID)
	if err != nil {
		return err
	}
	if r.logger != nil && outcome != executor.OutcomeSkipped {
		r.logger.Printf("executor pass finished job_id=%s outcome=%s", jobID, outcome)
	}
	return nil
}
