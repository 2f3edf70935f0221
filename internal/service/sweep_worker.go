package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepWorker periodically reconciles stored code statuses with the
// time/count-derived truth, so a stored status never diverges for longer
// than one sweep interval.
type SweepWorker struct {
	redemptionSvc *RedemptionService
	interval      time.Duration
	log           *zap.Logger
}

func NewSweepWorker(redemptionSvc *RedemptionService, interval time.Duration, log *zap.Logger) *SweepWorker {
	return &SweepWorker{
		redemptionSvc: redemptionSvc,
		interval:      interval,
		log:           log,
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info("sweep worker started", zap.Duration("interval", w.interval))

	// Initial sweep on startup
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweep worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	n, err := w.redemptionSvc.ExpireSweep(ctx)
	if err != nil {
		w.log.Error("status sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("status sweep reconciled codes", zap.Int64("count", n))
	}
}
