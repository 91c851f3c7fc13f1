package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workday/internal/domain"
	"workday/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxClockInAttempts bounds the retries of the clock-in upsert when a
// concurrent writer wins the (user_id, date) row first.
const maxClockInAttempts = 3

type AttendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// AttendanceFilter narrows tenant-wide listings.
type AttendanceFilter struct {
	Date   string
	UserID uint
	Page   int
	Limit  int
}

// AttendanceAggregate is the raw material for per-user statistics.
type AttendanceAggregate struct {
	DaysWorked  int64
	TotalHours  float64
	PresentDays int64
}

// ClockIn inserts the (user, date) row or, when it already exists, updates
// it in the same statement: an active row only gets the new session id, a
// closed row is reactivated with a fresh clock-in time. With accumulate set
// a reactivated row carries its closed hours into AccumulatedHours.
//
// A duplicate-key or lock error means another login for the same user won
// the race; the statement is retried so the loser lands on the winner's row.
func (r *AttendanceRepository) ClockIn(ctx context.Context, rec *models.AttendanceRecord, accumulate bool) (*models.AttendanceRecord, error) {
	var err error
	for attempt := 1; attempt <= maxClockInAttempts; attempt++ {
		row := *rec
		row.ID = ""
		err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			// Order matters on MySQL, where later assignments see earlier
			// ones: everything reading is_active/total_hours comes first.
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "accumulated_hours"}, Value: gorm.Expr(
					"CASE WHEN attendance_records.is_active THEN attendance_records.accumulated_hours WHEN ? THEN attendance_records.total_hours ELSE 0 END", accumulate)},
				{Column: clause.Column{Name: "clock_in_time"}, Value: gorm.Expr(
					"CASE WHEN attendance_records.is_active THEN attendance_records.clock_in_time ELSE ? END", row.ClockInTime)},
				{Column: clause.Column{Name: "clock_out_time"}, Value: nil},
				{Column: clause.Column{Name: "total_hours"}, Value: 0},
				{Column: clause.Column{Name: "is_active"}, Value: true},
				{Column: clause.Column{Name: "session_id"}, Value: row.SessionID},
				{Column: clause.Column{Name: "ip_address"}, Value: row.IPAddress},
				{Column: clause.Column{Name: "updated_at"}, Value: row.ClockInTime},
			},
		}).Create(&row).Error
		if err == nil {
			return r.GetByUserDate(ctx, rec.UserID, rec.Date)
		}
		if !isUniqueViolation(err) && !isTransientConflict(err) {
			break
		}
	}
	return nil, fmt.Errorf("clock in user %d on %s: %w", rec.UserID, rec.Date, err)
}

func (r *AttendanceRepository) GetByUserDate(ctx context.Context, userID uint, date string) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// FindActive returns the active record of the user on date, preferring the
// one bound to sessionID. ErrNotFound when the user has no open session.
func (r *AttendanceRepository) FindActive(ctx context.Context, userID uint, date, sessionID string) (*models.AttendanceRecord, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ? AND is_active = ?", userID, date, true).
		Session(&gorm.Session{})
	var rec models.AttendanceRecord
	if sessionID != "" {
		err := q.Where("session_id = ?", sessionID).First(&rec).Error
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if err := q.First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// Close ends an active record. It reports false when the record was
// already closed by someone else.
func (r *AttendanceRepository) Close(ctx context.Context, id string, clockOut time.Time, totalHours float64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"clock_out_time": clockOut,
			"total_hours":    totalHours,
			"is_active":      false,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListActiveOlderThan returns open records started before cutoff, all tenants.
func (r *AttendanceRepository) ListActiveOlderThan(ctx context.Context, cutoff time.Time) ([]models.AttendanceRecord, error) {
	var list []models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND clock_in_time < ?", true, cutoff).
		Order("clock_in_time ASC").
		Find(&list).Error
	return list, err
}

// ListActiveBeforeDate returns open records dated before date. A zero
// companyID spans all tenants.
func (r *AttendanceRepository) ListActiveBeforeDate(ctx context.Context, date string, companyID uint) ([]models.AttendanceRecord, error) {
	var list []models.AttendanceRecord
	q := r.db.WithContext(ctx).Where("is_active = ? AND date < ?", true, date)
	if companyID != 0 {
		q = q.Where("company_id = ?", companyID)
	}
	err := q.Order("date ASC").Find(&list).Error
	return list, err
}

func (r *AttendanceRepository) ListActiveByCompany(ctx context.Context, companyID uint, date string) ([]models.AttendanceRecord, error) {
	var list []models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND date = ? AND is_active = ?", companyID, date, true).
		Order("clock_in_time ASC").
		Find(&list).Error
	return list, err
}

// History returns one user's records, newest date first.
func (r *AttendanceRepository) History(ctx context.Context, companyID, userID uint, page, limit int) ([]models.AttendanceRecord, int64, error) {
	return r.List(ctx, companyID, AttendanceFilter{UserID: userID, Page: page, Limit: limit})
}

// List returns a tenant's records with optional date and user filters.
func (r *AttendanceRepository) List(ctx context.Context, companyID uint, f AttendanceFilter) ([]models.AttendanceRecord, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AttendanceRecord{}).Where("company_id = ?", companyID)
	if f.Date != "" {
		q = q.Where("date = ?", f.Date)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.AttendanceRecord
	err := q.Order("date DESC").Order("user_id ASC").Limit(f.Limit).Offset((f.Page - 1) * f.Limit).Find(&list).Error
	return list, total, err
}

// ListRange returns a tenant's records with from <= date <= to, optionally
// for a single user.
func (r *AttendanceRepository) ListRange(ctx context.Context, companyID, userID uint, from, to string) ([]models.AttendanceRecord, error) {
	q := r.db.WithContext(ctx).Where("company_id = ? AND date >= ? AND date <= ?", companyID, from, to)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var list []models.AttendanceRecord
	err := q.Order("date ASC").Order("user_id ASC").Find(&list).Error
	return list, err
}

func (r *AttendanceRepository) Aggregate(ctx context.Context, companyID, userID uint, from, to string) (*AttendanceAggregate, error) {
	var row struct {
		Days    int64
		Hours   float64
		Present int64
	}
	err := r.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Select("COUNT(*) AS days, COALESCE(SUM(total_hours), 0) AS hours, COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS present", domain.StatusPresent).
		Where("company_id = ? AND user_id = ? AND date >= ? AND date <= ?", companyID, userID, from, to).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &AttendanceAggregate{DaysWorked: row.Days, TotalHours: row.Hours, PresentDays: row.Present}, nil
}
