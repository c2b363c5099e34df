package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/cache"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	eventsdomain "github.com/smallbiznis/tillpoint/internal/events/domain"
	inventorydomain "github.com/smallbiznis/tillpoint/internal/inventory/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	obsmetrics "github.com/smallbiznis/tillpoint/internal/observability/metrics"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobPromotionReconcile = "promotion_reconcile"
	JobFrequentRecompute  = "frequent_recompute"
	JobLowStockSweep      = "low_stock_sweep"
	JobOutboxRelay        = "outbox_relay"
)

// relay rounds per tick; failed events move out of the due window so the
// loop only continues while full batches are being sent.
const maxRelayRounds = 10

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Promotions promotiondomain.Service
	Loyalty    loyaltydomain.Service
	Inventory  inventorydomain.Service
	Outbox     eventsdomain.Outbox
	Policy     *config.PolicyHolder
	Locker     *cache.Locker `optional:"true"`
	Config     Config        `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	promotions promotiondomain.Service
	loyalty    loyaltydomain.Service
	inventory  inventorydomain.Service
	outbox     eventsdomain.Outbox
	policy     *config.PolicyHolder
	locker     *cache.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Promotions == nil || p.Loyalty == nil || p.Inventory == nil || p.Outbox == nil || p.Policy == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		promotions: p.Promotions,
		loyalty:    p.Loyalty,
		inventory:  p.Inventory,
		outbox:     p.Outbox,
		policy:     p.Policy,
		locker:     p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once. With a lock configured only the replica
// holding the tick lease does any work.
func (s *Scheduler) RunOnce(parent context.Context) error {
	release, acquired, err := s.acquireTick(parent)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer release()

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobPromotionReconcile, s.PromotionReconcileJob},
		{JobFrequentRecompute, s.FrequentRecomputeJob},
		{JobLowStockSweep, s.LowStockSweepJob},
		{JobOutboxRelay, s.OutboxRelayJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty means every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// PromotionReconcileJob expires promotions past their end date and re-syncs
// product final prices.
func (s *Scheduler) PromotionReconcileJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	result, err := s.promotions.ReconcileNow(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.promotion_reconcile.failed", JobPromotionReconcile, err)
		return err
	}
	run.Processed("promotions", result.Expired)
	run.Processed("products", result.Synced)
	return nil
}

// FrequentRecomputeJob refreshes frequent-customer flags computed in an
// earlier month.
func (s *Scheduler) FrequentRecomputeJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	count, err := s.loyalty.RecomputeAllFrequent(ctx)
	run.Processed("customers", count)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.frequent_recompute.failed", JobFrequentRecompute, err)
		return err
	}
	return nil
}

func (s *Scheduler) LowStockSweepJob(ctx context.Context) error {
	if !s.policy.Get().LowStockSweep {
		return nil
	}
	run := jobRunFromContext(ctx)
	changed, err := s.inventory.SweepLowStock(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.low_stock_sweep.failed", JobLowStockSweep, err)
		return err
	}
	run.Processed("products", int(changed))
	return nil
}

// OutboxRelayJob publishes due outbox events in batches.
func (s *Scheduler) OutboxRelayJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	var jobErr error
	for round := 0; round < maxRelayRounds; round++ {
		result, err := s.outbox.Relay(ctx, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.outbox_relay.failed", JobOutboxRelay, err)
			return errors.Join(jobErr, err)
		}
		run.Processed("outbox_events", result.Sent)
		if result.Failed > 0 {
			failed := fmt.Errorf("%w: %d events", obsmetrics.ErrPublish, result.Failed)
			s.logSchedulerError(ctx, run, "scheduler.outbox_relay.publish_failed", JobOutboxRelay, failed)
			jobErr = errors.Join(jobErr, failed)
		}
		if result.Sent+result.Failed < s.cfg.BatchSize {
			break
		}
	}
	return jobErr
}
