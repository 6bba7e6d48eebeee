package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ── Purge scheduler (cron) ────────────────────────────────

// PurgeScheduler runs TrashService.PurgeExpired on a cron schedule. A tick
// that fires while the previous purge is still running is skipped.
type PurgeScheduler struct {
	trash *TrashService
	log   *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPurgeScheduler creates a stopped scheduler.
func NewPurgeScheduler(trash *TrashService, logger *zap.Logger) *PurgeScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurgeScheduler{trash: trash, log: logger.Named("purge")}
}

// Start schedules purges with a standard five-field cron expression or a
// descriptor such as "@daily". An empty expression disables scheduling.
func (p *PurgeScheduler) Start(ctx context.Context, expr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return errors.New("purge scheduler already started")
	}
	if expr == "" {
		p.log.Info("scheduled purge disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(expr, func() { p.run(ctx) }); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", expr, err)
	}
	c.Start()
	p.cron = c
	p.log.Info("scheduled purge enabled", zap.String("schedule", expr))
	return nil
}

// RunNow purges immediately, outside the schedule.
func (p *PurgeScheduler) RunNow(ctx context.Context) (*PurgeReport, error) {
	return p.trash.PurgeExpired(ctx)
}

func (p *PurgeScheduler) run(ctx context.Context) {
	report, err := p.trash.PurgeExpired(ctx)
	switch {
	case errors.Is(err, ErrPurgeRunning):
		p.log.Warn("previous purge still running, skipping tick")
	case err != nil:
		p.log.Error("scheduled purge failed", zap.Error(err))
	default:
		p.log.Debug("scheduled purge done",
			zap.Int("databases", report.Databases),
			zap.Int("rows", report.Rows))
	}
}

// Stop halts the schedule and waits for a running purge to return or ctx
// to be done.
func (p *PurgeScheduler) Stop(ctx context.Context) {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	p.trash.WaitPurge(ctx)
}
