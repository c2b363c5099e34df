package scheduler

import (
	"context"
	"time"

	obsmetrics "github.com/smallbiznis/tillpoint/internal/observability/metrics"
	"go.uber.org/zap"
)

const tickLockName = "scheduler.tick"

// acquireTick takes the cluster-wide tick lease. Without a locker every
// replica runs its own ticks.
func (s *Scheduler) acquireTick(ctx context.Context) (release func(), acquired bool, err error) {
	if s.locker == nil {
		return func() {}, true, nil
	}

	token, ok, err := s.locker.TryLock(ctx, tickLockName, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("scheduler lock unavailable", zap.Error(err))
		return nil, false, err
	}
	if !ok {
		obsmetrics.Scheduler().IncLockSkipped("tick")
		s.log.Debug("scheduler tick held by another replica")
		return nil, false, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, tickLockName, token); err != nil {
			s.log.Warn("scheduler lock release failed", zap.Error(err))
		}
	}, true, nil
}
