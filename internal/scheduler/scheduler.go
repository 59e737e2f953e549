package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/observability/metrics"
	"github.com/tirtabill/tirtabill/internal/ratelimit"
)

const (
	// JobBillingSweep generates bills for meters holding unbilled readings.
	JobBillingSweep = "billing_sweep"
	// JobOverdueSweep flips past-due open bills to overdue.
	JobOverdueSweep = "overdue_sweep"

	sweepUserID = "scheduler"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Billing billingdomain.Service
	Clock   clock.Clock
	Limiter *ratelimit.ReadingIngestLimiter `optional:"true"`
	Config  Config                          `optional:"true"`
}

// Scheduler drives the periodic billing and overdue sweeps. Every job
// is a bounded batch: it claims up to BatchSize items, processes each
// one independently, and leaves the rest for the next round.
type Scheduler struct {
	log     *zap.Logger
	billing billingdomain.Service
	clock   clock.Clock
	limiter *ratelimit.ReadingIngestLimiter
	cfg     Config
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:     p.Log.Named("scheduler"),
		billing: p.Billing,
		clock:   p.Clock,
		limiter: p.Limiter,
		cfg:     p.Config.withDefaults(),
	}
}

// RunOnce executes one round of every enabled job. Job failures are
// joined so one broken job never starves the others.
func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{Name: JobBillingSweep, Run: s.runBillingSweep},
		{Name: JobOverdueSweep, Run: s.runOverdueSweep},
	}

	var err error
	for _, job := range jobs {
		if !s.cfg.jobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

// RunJob runs one named job immediately, outside the loop. Used by the
// operational sweep endpoints.
func (s *Scheduler) RunJob(parent context.Context, name string) error {
	switch name {
	case JobBillingSweep:
		return s.runJob(parent, name, s.runBillingSweep)
	case JobOverdueSweep:
		return s.runJob(parent, name, s.runOverdueSweep)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

// RunForever loops RunOnce on the configured interval until ctx is
// cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.log.Info("sweep loop started",
		zap.Duration("run_interval", s.cfg.RunInterval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	nextRun := time.Now().Add(s.cfg.RunInterval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweep loop stopped")
			return
		case <-ticker.C:
			metrics.Scheduler().ObserveRunLoopLag(time.Since(nextRun))
			nextRun = time.Now().Add(s.cfg.RunInterval)

			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("sweep round finished with errors", zap.Error(err))
			}
		}
	}
}

// runJob wraps a job with its timeout and metrics. A run that merely
// hits the deadline is logged and counted but reported as success; the
// remaining work is picked up next round.
func (s *Scheduler) runJob(parent context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	sm := metrics.Scheduler()
	sm.IncJobRun(name)

	start := time.Now()
	err := fn(ctx)
	sm.ObserveJobDuration(name, time.Since(start))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			sm.IncJobTimeout(name)
			s.log.Warn("job stopped at deadline", zap.String("job", name), zap.Error(err))
			return nil
		}
		sm.IncJobError(name)
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// withSweepLock runs fn under the cross-replica lock for the named
// sweep. Without a limiter the lock is a no-op. When another replica
// holds the lock the sweep is skipped for this round.
func (s *Scheduler) withSweepLock(ctx context.Context, name string, fn func(context.Context) error) error {
	token, ok, err := s.limiter.TryLockSweep(ctx, name)
	if err != nil {
		return fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		s.log.Debug("sweep already running elsewhere", zap.String("job", name))
		return nil
	}
	defer func() {
		if relErr := s.limiter.ReleaseSweep(context.WithoutCancel(ctx), name, token); relErr != nil {
			s.log.Warn("release sweep lock", zap.String("job", name), zap.Error(relErr))
		}
	}()

	return fn(ctx)
}

func (s *Scheduler) runBillingSweep(ctx context.Context) error {
	return s.withSweepLock(ctx, JobBillingSweep, func(ctx context.Context) error {
		meterIDs, err := s.billing.BillableMeterIDs(ctx, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list billable meters: %w", err)
		}
		if len(meterIDs) == 0 {
			return nil
		}

		var errs error
		billed := 0
		for _, meterID := range meterIDs {
			if ctx.Err() != nil {
				errs = errors.Join(errs, ctx.Err())
				break
			}

			_, err := s.billing.Generate(ctx, billingdomain.GenerateRequest{
				MeterID: meterID.String(),
				Trigger: billingdomain.TriggerSweep,
				UserID:  sweepUserID,
			})
			switch {
			case err == nil:
				billed++
			case errors.Is(err, billingdomain.ErrAlreadyBilled),
				errors.Is(err, billingdomain.ErrInsufficientData),
				errors.Is(err, billingdomain.ErrMeterNotFound):
				// Another writer got there first, or the meter changed
				// under us. Nothing to do this round.
			default:
				errs = errors.Join(errs, fmt.Errorf("meter %s: %w", meterID, err))
			}
		}

		metrics.Scheduler().AddBatchProcessed(JobBillingSweep, billed)
		if billed > 0 {
			s.log.Info("billing sweep round complete",
				zap.Int("meters_considered", len(meterIDs)),
				zap.Int("bills_generated", billed),
			)
		}
		return errs
	})
}

func (s *Scheduler) runOverdueSweep(ctx context.Context) error {
	return s.withSweepLock(ctx, JobOverdueSweep, func(ctx context.Context) error {
		now := s.clock.Now()
		billIDs, err := s.billing.OverdueBillIDs(ctx, now, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list overdue bills: %w", err)
		}
		if len(billIDs) == 0 {
			return nil
		}

		var errs error
		flipped := 0
		for _, billID := range billIDs {
			if ctx.Err() != nil {
				errs = errors.Join(errs, ctx.Err())
				break
			}

			if _, err := s.billing.MarkOverdue(ctx, billID, sweepUserID); err != nil {
				errs = errors.Join(errs, fmt.Errorf("bill %s: %w", billID, err))
				continue
			}
			flipped++
		}

		metrics.Scheduler().AddBatchProcessed(JobOverdueSweep, flipped)
		if flipped > 0 {
			s.log.Info("overdue sweep round complete", zap.Int("bills_marked", flipped))
		}
		return errs
	})
}
