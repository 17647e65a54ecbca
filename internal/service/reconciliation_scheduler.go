package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
)

type driftAuditor interface {
	DetectDrift(ctx context.Context, userIDs []string) (*models.DriftReport, error)
	Repair(ctx context.Context, userIDs []string) (*models.DriftReport, error)
}

// ReconcileSchedule configures the periodic drift audit.
type ReconcileSchedule struct {
	Interval   time.Duration
	AutoRepair bool
	Timeout    time.Duration
}

// ReconciliationScheduler runs the drift audit on a fixed interval. It only repairs
// aggregates when AutoRepair is set; otherwise drift is logged and exported as a gauge.
type ReconciliationScheduler struct {
	auditor   driftAuditor
	cfg       ReconcileSchedule
	logger    *zap.Logger
	scheduler gocron.Scheduler
}

// NewReconciliationScheduler registers the audit job without starting it.
func NewReconciliationScheduler(auditor driftAuditor, cfg ReconcileSchedule, logger *zap.Logger) (*ReconciliationScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &ReconciliationScheduler{auditor: auditor, cfg: cfg, logger: logger, scheduler: sched}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
			defer cancel()
			_, _ = s.RunOnce(ctx)
		}),
		gocron.WithName("points-reconciliation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("register reconciliation job: %w", err)
	}
	return s, nil
}

// Start begins running the audit on its interval.
func (s *ReconciliationScheduler) Start() {
	s.logger.Info("reconciliation scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("auto_repair", s.cfg.AutoRepair))
	s.scheduler.Start()
}

// Stop waits for a running audit to finish and stops the scheduler.
func (s *ReconciliationScheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// RunOnce performs a single audit across all users.
func (s *ReconciliationScheduler) RunOnce(ctx context.Context) (*models.DriftReport, error) {
	run := s.auditor.DetectDrift
	if s.cfg.AutoRepair {
		run = s.auditor.Repair
	}
	report, err := run(ctx, nil)
	if err != nil {
		s.logger.Error("reconciliation run failed", zap.Error(err))
		return nil, err
	}
	if len(report.Drift) == 0 {
		s.logger.Info("reconciliation found no drift", zap.Int("checked_pairs", report.CheckedPairs))
		return report, nil
	}
	for _, d := range report.Drift {
		s.logger.Warn("aggregate drift",
			zap.String("user_id", d.UserID),
			zap.String("point_key", d.PointKey),
			zap.Int64("ledger_total", d.LedgerTotal),
			zap.Int64("aggregate_value", d.AggregateValue),
			zap.Bool("repaired", report.Repaired))
	}
	if len(report.Deferred) > 0 {
		s.logger.Info("drifted pairs deferred to the next run", zap.Int("deferred", len(report.Deferred)))
	}
	return report, nil
}
