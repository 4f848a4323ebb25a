package jobs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
)

const (
	// PriceSyncJobName imports supplier unit costs from the ERP warehouse
	PriceSyncJobName = "price_sync"
	// PricingAuditJobName reprices stored orders and fixes drifted totals
	PricingAuditJobName = "pricing_audit"
)

// PriceSyncer pulls supplier price lists into standing offers
type PriceSyncer interface {
	IsEnabled() bool
	Sync(ctx context.Context) (*domain.PriceSyncResultDTO, error)
}

// OrderRecalculator reprices every stored order
type OrderRecalculator interface {
	RecalculateAll(ctx context.Context) (updated int, failed int, err error)
}

// PriceSyncJob runs the ERP price list import
type PriceSyncJob struct {
	syncer  PriceSyncer
	logger  *zap.Logger
	timeout time.Duration
}

// NewPriceSyncJob creates a new price sync job.
// The timeout controls how long one import is allowed to run.
func NewPriceSyncJob(syncer PriceSyncer, logger *zap.Logger, timeout time.Duration) *PriceSyncJob {
	return &PriceSyncJob{syncer: syncer, logger: logger, timeout: timeout}
}

// Run executes one import. Called by the scheduler.
func (j *PriceSyncJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	result, err := j.syncer.Sync(ctx)
	if err != nil {
		j.logger.Error("supplier price sync failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}
	j.logger.Info("supplier price sync completed",
		zap.Int("suppliers", result.Suppliers),
		zap.Int("offers", result.Offers),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", time.Since(start)))
}

// PricingAuditJob recomputes order totals from their inputs so stored
// totals never drift from the pricing rules
type PricingAuditJob struct {
	orders  OrderRecalculator
	logger  *zap.Logger
	timeout time.Duration
}

// NewPricingAuditJob creates a new pricing audit job
func NewPricingAuditJob(orders OrderRecalculator, logger *zap.Logger, timeout time.Duration) *PricingAuditJob {
	return &PricingAuditJob{orders: orders, logger: logger, timeout: timeout}
}

// Run executes one audit pass. Called by the scheduler.
func (j *PricingAuditJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	updated, failed, err := j.orders.RecalculateAll(ctx)
	fields := []zap.Field{
		zap.Int("updated", updated),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		j.logger.Warn("pricing audit stopped at timeout", fields...)
	case err != nil:
		j.logger.Error("pricing audit failed", append(fields, zap.Error(err))...)
	case updated > 0 || failed > 0:
		j.logger.Warn("pricing audit corrected order totals", fields...)
	default:
		j.logger.Info("pricing audit completed", fields...)
	}
}

// RegisterPriceSyncJob adds the price sync job to the scheduler. It is a
// no-op when the syncer has no ERP source. With runAtStartup the first
// import runs in the background without blocking API startup.
func RegisterPriceSyncJob(scheduler *Scheduler, syncer PriceSyncer, logger *zap.Logger, cronExpr string, timeout time.Duration, runAtStartup bool) error {
	if !syncer.IsEnabled() {
		logger.Info("ERP price sync disabled, job not registered")
		return nil
	}
	job := NewPriceSyncJob(syncer, logger, timeout)
	if err := scheduler.AddJob(PriceSyncJobName, cronExpr, job.Run); err != nil {
		return err
	}
	if runAtStartup {
		return scheduler.RunNow(PriceSyncJobName)
	}
	return nil
}

// RegisterPricingAuditJob adds the pricing audit job to the scheduler
func RegisterPricingAuditJob(scheduler *Scheduler, orders OrderRecalculator, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewPricingAuditJob(orders, logger, timeout)
	return scheduler.AddJob(PricingAuditJobName, cronExpr, job.Run)
}
