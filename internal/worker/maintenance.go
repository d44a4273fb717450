package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/config"
	"github.com/notifyhub/delivery-queue/internal/metrics"
	"github.com/notifyhub/delivery-queue/internal/store"
)

// MaintenanceWorker runs the housekeeping jobs on cron schedules:
//
//	cleanup  — purge terminal items past the retention window
//	escalate — bump dynamic priority of items waiting too long
//	reap     — return long-stuck processing items to retry
//	depth    — refresh the per-status queue depth gauges
type MaintenanceWorker struct {
	store  store.Store
	m      *metrics.Metrics
	cfg    *config.Config
	cron   *cron.Cron
	logger *zap.Logger
}

func NewMaintenanceWorker(st store.Store, m *metrics.Metrics, cfg *config.Config, logger *zap.Logger) *MaintenanceWorker {
	return &MaintenanceWorker{
		store:  st,
		m:      m,
		cfg:    cfg,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the jobs and starts the cron scheduler. Job contexts
// are derived from ctx so in-flight jobs stop on shutdown.
func (mw *MaintenanceWorker) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"cleanup", mw.cfg.CleanupSchedule, mw.cleanup},
		{"escalate", mw.cfg.EscalateSchedule, mw.escalate},
		{"reap", mw.cfg.ReapSchedule, mw.reap},
		{"depth", mw.cfg.DepthSchedule, mw.refreshDepths},
	}
	for _, job := range jobs {
		job := job
		if _, err := mw.cron.AddFunc(job.spec, func() {
			mw.m.MaintenanceRuns.WithLabelValues(job.name).Inc()
			job.run(ctx)
		}); err != nil {
			return err
		}
	}

	mw.cron.Start()
	mw.logger.Info("maintenance worker started",
		zap.String("cleanup", mw.cfg.CleanupSchedule),
		zap.String("escalate", mw.cfg.EscalateSchedule),
		zap.String("reap", mw.cfg.ReapSchedule),
	)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (mw *MaintenanceWorker) Stop() {
	<-mw.cron.Stop().Done()
	mw.logger.Info("maintenance worker stopped")
}

func (mw *MaintenanceWorker) cleanup(ctx context.Context) {
	retention := time.Duration(mw.cfg.RetentionDays) * 24 * time.Hour
	deleted, err := mw.store.CleanupOldItems(ctx, retention)
	if err != nil {
		mw.logger.Error("cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		mw.logger.Info("purged old items", zap.Int64("deleted", deleted))
	}
}

func (mw *MaintenanceWorker) escalate(ctx context.Context) {
	escalated, err := mw.store.EscalatePriorities(ctx, mw.cfg.EscalateAfter, mw.cfg.EscalateStep)
	if err != nil {
		mw.logger.Error("priority escalation failed", zap.Error(err))
		return
	}
	if escalated > 0 {
		mw.logger.Info("escalated waiting items", zap.Int64("count", escalated))
	}
}

func (mw *MaintenanceWorker) reap(ctx context.Context) {
	reaped, err := mw.store.ReapStuck(ctx, mw.cfg.ReapAfter)
	if err != nil {
		mw.logger.Error("stuck item reap failed", zap.Error(err))
		return
	}
	if reaped > 0 {
		mw.logger.Warn("reclaimed stuck processing items", zap.Int64("count", reaped))
	}
}

func (mw *MaintenanceWorker) refreshDepths(ctx context.Context) {
	stats, err := mw.store.Stats(ctx)
	if err != nil {
		mw.logger.Error("depth refresh failed", zap.Error(err))
		return
	}
	mw.m.SetDepths(stats)
}
