package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"workday/config"
	"workday/internal/domain"
	"workday/internal/models"
	"workday/internal/repository"
)

// AttendancePolicy is the business policy applied by the engine and the
// reconciler.
type AttendancePolicy struct {
	Location       *time.Location
	BoundaryHour   int
	BoundaryMinute int
	MaxHours       float64
	SweepInterval  time.Duration
	SweepCutoff    time.Duration
	// Accumulate keeps the hours of earlier shifts when a closed record is
	// reactivated on the same day. Otherwise only the latest shift counts.
	Accumulate bool
}

// NewAttendancePolicy converts validated configuration into a policy.
func NewAttendancePolicy(cfg config.AttendanceConfig) (AttendancePolicy, error) {
	loc, err := cfg.Location()
	if err != nil {
		return AttendancePolicy{}, err
	}
	hour, minute, err := cfg.BoundaryClock()
	if err != nil {
		return AttendancePolicy{}, err
	}
	return AttendancePolicy{
		Location:       loc,
		BoundaryHour:   hour,
		BoundaryMinute: minute,
		MaxHours:       cfg.MaxHours,
		SweepInterval:  cfg.SweepInterval,
		SweepCutoff:    cfg.SweepCutoff,
		Accumulate:     cfg.ShiftMode == domain.ShiftModeAccumulate,
	}, nil
}

// Stats summarises one user's attendance over a date range.
type Stats struct {
	From            string  `json:"from"`
	To              string  `json:"to"`
	TotalDaysWorked int64   `json:"totalDaysWorked"`
	TotalHours      float64 `json:"totalHours"`
	AverageHours    float64 `json:"averageHours"`
	PresentDays     int64   `json:"presentDays"`
	AttendanceRate  float64 `json:"attendanceRate"`
}

// AttendanceService infers clock-in/clock-out from session events. The
// record store is the only source of truth; broadcasts are derived.
type AttendanceService struct {
	repo        *repository.AttendanceRepository
	broadcaster Broadcaster
	policy      AttendancePolicy
	log         *slog.Logger
	now         func() time.Time
}

func NewAttendanceService(repo *repository.AttendanceRepository, broadcaster Broadcaster, policy AttendancePolicy, log *slog.Logger) *AttendanceService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if policy.Location == nil {
		policy.Location = time.Local
	}
	if log == nil {
		log = slog.Default()
	}
	return &AttendanceService{
		repo:        repo,
		broadcaster: broadcaster,
		policy:      policy,
		log:         log,
		now:         time.Now,
	}
}

// SetClock replaces the time source.
func (s *AttendanceService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AttendanceService) Policy() AttendancePolicy {
	return s.policy
}

// Today returns the calendar date of now in the business time zone.
func (s *AttendanceService) Today() string {
	return s.dateOf(s.now())
}

func (s *AttendanceService) dateOf(t time.Time) string {
	return t.In(s.policy.Location).Format(domain.DateLayout)
}

// AutoClockIn opens (or refreshes, or reactivates) today's record for the
// user. Callers on the login path must not fail the login on error.
func (s *AttendanceService) AutoClockIn(ctx context.Context, userID, companyID uint, sessionID, ip string) (*models.AttendanceRecord, error) {
	now := s.now()
	rec, err := s.repo.ClockIn(ctx, &models.AttendanceRecord{
		UserID:      userID,
		CompanyID:   companyID,
		Date:        s.dateOf(now),
		ClockInTime: now.UTC(),
		IsActive:    true,
		SessionID:   sessionID,
		Status:      domain.StatusPresent,
		IPAddress:   ip,
	}, s.policy.Accumulate)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.ActionClockIn, rec, now)
	return rec, nil
}

// AutoClockOut closes today's active record of the user. A missing record
// is not an error: it returns nil, nil.
func (s *AttendanceService) AutoClockOut(ctx context.Context, userID uint, sessionID string) (*models.AttendanceRecord, error) {
	now := s.now()
	rec, err := s.repo.FindActive(ctx, userID, s.dateOf(now), sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active record for user %d: %w", userID, err)
	}
	return s.closeRecord(ctx, rec, now, s.shiftHours(rec, now))
}

// shiftHours is the total a record would carry if closed at end.
func (s *AttendanceService) shiftHours(rec *models.AttendanceRecord, end time.Time) float64 {
	return roundHours(rec.AccumulatedHours + CalculateHours(rec.ClockInTime, end))
}

// closeRecord ends rec at end with the given total. It returns nil, nil
// when another writer closed the record first; no event is sent then.
func (s *AttendanceService) closeRecord(ctx context.Context, rec *models.AttendanceRecord, end time.Time, hours float64) (*models.AttendanceRecord, error) {
	out := end.UTC()
	closed, err := s.repo.Close(ctx, rec.ID, out, hours)
	if err != nil {
		return nil, fmt.Errorf("close record %s: %w", rec.ID, err)
	}
	if !closed {
		return nil, nil
	}
	rec.ClockOutTime = &out
	rec.TotalHours = hours
	rec.IsActive = false
	s.publish(ctx, domain.ActionClockOut, rec, s.now())
	return rec, nil
}

func (s *AttendanceService) publish(ctx context.Context, action string, rec *models.AttendanceRecord, at time.Time) {
	s.broadcaster.PublishAttendance(ctx, models.PresenceEvent{
		Action:    action,
		UserID:    rec.UserID,
		CompanyID: rec.CompanyID,
		Timestamp: at.UTC(),
	}, rec)
}

// CalculateHours returns the span between start and end in hours, rounded
// to two decimals. A negative span counts as zero.
func CalculateHours(start, end time.Time) float64 {
	ms := end.Sub(start).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return roundHours(float64(ms) / float64(time.Hour/time.Millisecond))
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// TodayRecord returns the caller's record for the current date, or nil.
func (s *AttendanceService) TodayRecord(ctx context.Context, companyID, userID uint) (*models.AttendanceRecord, error) {
	rec, err := s.repo.GetByUserDate(ctx, userID, s.Today())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.CompanyID != companyID {
		return nil, nil
	}
	return rec, nil
}

func (s *AttendanceService) History(ctx context.Context, companyID, userID uint, page, limit int) ([]models.AttendanceRecord, int64, error) {
	return s.repo.History(ctx, companyID, userID, page, limit)
}

// Stats aggregates a user's records between from and to inclusive. Empty
// bounds default to the current calendar month.
func (s *AttendanceService) Stats(ctx context.Context, companyID, userID uint, from, to string) (*Stats, error) {
	from, to = s.monthDefaults(from, to)
	agg, err := s.repo.Aggregate(ctx, companyID, userID, from, to)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		From:            from,
		To:              to,
		TotalDaysWorked: agg.DaysWorked,
		TotalHours:      roundHours(agg.TotalHours),
		PresentDays:     agg.PresentDays,
	}
	if agg.DaysWorked > 0 {
		st.AverageHours = roundHours(agg.TotalHours / float64(agg.DaysWorked))
		st.AttendanceRate = roundHours(float64(agg.PresentDays) / float64(agg.DaysWorked) * 100)
	}
	return st, nil
}

func (s *AttendanceService) monthDefaults(from, to string) (string, string) {
	now := s.now().In(s.policy.Location)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.policy.Location)
	if from == "" {
		from = first.Format(domain.DateLayout)
	}
	if to == "" {
		to = first.AddDate(0, 1, -1).Format(domain.DateLayout)
	}
	return from, to
}

// ActiveUsers lists the tenant's open records for today.
func (s *AttendanceService) ActiveUsers(ctx context.Context, companyID uint) ([]models.AttendanceRecord, error) {
	return s.repo.ListActiveByCompany(ctx, companyID, s.Today())
}

func (s *AttendanceService) List(ctx context.Context, companyID uint, f repository.AttendanceFilter) ([]models.AttendanceRecord, int64, error) {
	return s.repo.List(ctx, companyID, f)
}

// Range returns the tenant's records between from and to inclusive, with
// the current month as default.
func (s *AttendanceService) Range(ctx context.Context, companyID uint, from, to string) ([]models.AttendanceRecord, string, string, error) {
	from, to = s.monthDefaults(from, to)
	list, err := s.repo.ListRange(ctx, companyID, 0, from, to)
	return list, from, to, err
}
