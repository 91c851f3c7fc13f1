package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"workday/internal/domain"
	"workday/internal/models"
)

// Reconciliation kinds passed to a Reporter.
const (
	ReconcileCrossDay = "cross-day"
	ReconcileStale    = "stale"
)

// Reporter receives a summary of every reconciliation that closed or failed
// to close at least one record.
type Reporter interface {
	ReportReconciliation(ctx context.Context, kind string, fixed, failed int, at time.Time) error
}

// Reconciler closes records whose session was never ended by a logout.
type Reconciler struct {
	svc      *AttendanceService
	reporter Reporter
	log      *slog.Logger
}

func NewReconciler(svc *AttendanceService, reporter Reporter, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{svc: svc, reporter: reporter, log: log.With("component", "reconciler")}
}

// SweepStale closes active records whose clock-in is older than the sweep
// cutoff, using the sweep time as clock-out. It returns the number closed.
func (r *Reconciler) SweepStale(ctx context.Context) (int, error) {
	now := r.svc.now()
	list, err := r.svc.repo.ListActiveOlderThan(ctx, now.Add(-r.svc.policy.SweepCutoff).UTC())
	if err != nil {
		return 0, err
	}
	fixed, failed := 0, 0
	for i := range list {
		rec := &list[i]
		closed, err := r.svc.closeRecord(ctx, rec, now, r.svc.shiftHours(rec, now))
		if err != nil {
			failed++
			r.log.Error("sweep stale record", "record_id", rec.ID, "user_id", rec.UserID, "error", err)
			continue
		}
		if closed != nil {
			fixed++
		}
	}
	r.report(ctx, ReconcileStale, fixed, failed, now)
	return fixed, nil
}

// FixCrossDay closes active records of every tenant dated before today at
// their own day's boundary, capping hours at the policy maximum. A failure
// on one record does not stop the batch; the count of records fixed is
// returned either way.
func (r *Reconciler) FixCrossDay(ctx context.Context) (int, error) {
	return r.fixCrossDay(ctx, 0)
}

// FixCrossDayFor is FixCrossDay limited to one company.
func (r *Reconciler) FixCrossDayFor(ctx context.Context, companyID uint) (int, error) {
	if companyID == 0 {
		return 0, nil
	}
	return r.fixCrossDay(ctx, companyID)
}

func (r *Reconciler) fixCrossDay(ctx context.Context, companyID uint) (int, error) {
	now := r.svc.now()
	list, err := r.svc.repo.ListActiveBeforeDate(ctx, r.svc.dateOf(now), companyID)
	if err != nil {
		return 0, err
	}
	fixed, failed := 0, 0
	for i := range list {
		rec := &list[i]
		end, err := r.boundaryFor(rec)
		if err != nil {
			failed++
			r.log.Error("cross-day boundary", "record_id", rec.ID, "date", rec.Date, "error", err)
			continue
		}
		hours := math.Min(r.svc.shiftHours(rec, end), r.svc.policy.MaxHours)
		closed, err := r.svc.closeRecord(ctx, rec, end, hours)
		if err != nil {
			failed++
			r.log.Error("cross-day fix", "record_id", rec.ID, "user_id", rec.UserID, "error", err)
			continue
		}
		if closed != nil {
			fixed++
		}
	}
	r.report(ctx, ReconcileCrossDay, fixed, failed, now)
	return fixed, nil
}

// boundaryFor is the close time of a record left open past its date: the
// configured boundary of that date, or the following midnight when the
// session started after the boundary.
func (r *Reconciler) boundaryFor(rec *models.AttendanceRecord) (time.Time, error) {
	p := r.svc.policy
	day, err := time.ParseInLocation(domain.DateLayout, rec.Date, p.Location)
	if err != nil {
		return time.Time{}, err
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), p.BoundaryHour, p.BoundaryMinute, 0, 0, p.Location)
	if rec.ClockInTime.After(end) {
		end = day.AddDate(0, 0, 1)
	}
	return end, nil
}

func (r *Reconciler) report(ctx context.Context, kind string, fixed, failed int, at time.Time) {
	if fixed == 0 && failed == 0 {
		return
	}
	r.log.Info("reconciled attendance", "kind", kind, "fixed", fixed, "failed", failed)
	if r.reporter == nil {
		return
	}
	if err := r.reporter.ReportReconciliation(ctx, kind, fixed, failed, at); err != nil {
		r.log.Warn("reconciliation report failed", "kind", kind, "error", err)
	}
}

// Run reconciles once immediately and then every sweep interval until ctx
// is done.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.svc.policy.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if _, err := r.FixCrossDay(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("cross-day fix failed", "error", err)
	}
	if _, err := r.SweepStale(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("stale sweep failed", "error", err)
	}
}
