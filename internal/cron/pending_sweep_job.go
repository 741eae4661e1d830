package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/minhtran/veloshop-backend/pkg/logger"
	"github.com/minhtran/veloshop-backend/pkg/metrics"
	"go.uber.org/multierr"
)

const (
	sweepJobName    = "pending_order_sweep"
	defaultSweepTTL = 24 * time.Hour
	sweepBatchSize  = 200
	maxSweepBatches = 50
)

// pendingSweeper is the slice of the orders service the job needs.
type pendingSweeper interface {
	SweepStalePending(ctx context.Context, olderThan time.Duration, limit int) (int64, error)
}

// PendingSweepJobParams configure the stale provisional-order sweep.
type PendingSweepJobParams struct {
	Logger  *logger.Logger
	Orders  pendingSweeper
	Metrics *metrics.CronJobMetrics
	TTL     time.Duration
}

type pendingSweepJob struct {
	logg    *logger.Logger
	orders  pendingSweeper
	metrics *metrics.CronJobMetrics
	ttl     time.Duration
}

// NewPendingSweepJob builds the job that deletes provisional orders whose
// payment window has lapsed. Abandoned rows hold no stock or voucher state,
// so removal is the entire cleanup.
func NewPendingSweepJob(params PendingSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultSweepTTL
	}
	return &pendingSweepJob{
		logg:    params.Logger,
		orders:  params.Orders,
		metrics: params.Metrics,
		ttl:     ttl,
	}, nil
}

func (j *pendingSweepJob) Name() string { return sweepJobName }

func (j *pendingSweepJob) Run(ctx context.Context) error {
	var total int64
	var errs error

	for batch := 0; batch < maxSweepBatches; batch++ {
		swept, err := j.orders.SweepStalePending(ctx, j.ttl, sweepBatchSize)
		total += swept
		if err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if swept < sweepBatchSize {
			break
		}
	}

	if j.metrics != nil && total > 0 {
		j.metrics.AddSwept(sweepJobName, int(total))
	}
	ctx = j.logg.WithField(ctx, "swept", total)
	if errs != nil {
		j.logg.Error(ctx, "pending order sweep incomplete", errs)
		return errs
	}
	j.logg.Info(ctx, "pending order sweep complete")
	return nil
}
