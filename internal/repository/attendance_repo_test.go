package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"workday/internal/domain"
	"workday/internal/models"
	"workday/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRecord(userID uint, date string, in time.Time, session string) *models.AttendanceRecord {
	return &models.AttendanceRecord{
		UserID:      userID,
		CompanyID:   1,
		Date:        date,
		ClockInTime: in,
		IsActive:    true,
		SessionID:   session,
		Status:      domain.StatusPresent,
	}
}

func TestAttendanceRepository_ClockInUpsert(t *testing.T) {
	repo := NewAttendanceRepository(testdb.New(t))
	ctx := context.Background()
	t0 := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

	first, err := repo.ClockIn(ctx, newRecord(7, "2026-03-10", t0, "a"), false)
	require.NoError(t, err)

	refreshed, err := repo.ClockIn(ctx, newRecord(7, "2026-03-10", t0.Add(time.Hour), "b"), false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, refreshed.ID)
	assert.Equal(t, "b", refreshed.SessionID)
	assert.WithinDuration(t, t0, refreshed.ClockInTime, time.Second)

	closed, err := repo.Close(ctx, first.ID, t0.Add(3*time.Hour), 3)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.Close(ctx, first.ID, t0.Add(4*time.Hour), 4)
	require.NoError(t, err)
	assert.False(t, closed, "a closed record cannot be closed twice")

	reopened, err := repo.ClockIn(ctx, newRecord(7, "2026-03-10", t0.Add(5*time.Hour), "c"), true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, reopened.ID)
	assert.True(t, reopened.IsActive)
	assert.Nil(t, reopened.ClockOutTime)
	assert.Zero(t, reopened.TotalHours)
	assert.Equal(t, 3.0, reopened.AccumulatedHours)
	assert.WithinDuration(t, t0.Add(5*time.Hour), reopened.ClockInTime, time.Second)
}

func TestAttendanceRepository_ClockInRetriesDuplicate(t *testing.T) {
	db := testdb.New(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	injected := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:lost_race", func(tx *gorm.DB) {
		if tx.Statement.Table == "attendance_records" && injected == 0 {
			injected++
			tx.AddError(gorm.ErrDuplicatedKey)
		}
	}))

	rec, err := repo.ClockIn(ctx, newRecord(7, "2026-03-10", time.Now().UTC(), "a"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, injected)
	assert.True(t, rec.IsActive)
}

func TestAttendanceRepository_ClockInGivesUpOnOtherErrors(t *testing.T) {
	db := testdb.New(t)
	repo := NewAttendanceRepository(db)

	attempts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:broken", func(tx *gorm.DB) {
		attempts++
		tx.AddError(errors.New("connection refused"))
	}))

	_, err := repo.ClockIn(context.Background(), newRecord(7, "2026-03-10", time.Now().UTC(), "a"), false)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestAttendanceRepository_FindActivePrefersSession(t *testing.T) {
	repo := NewAttendanceRepository(testdb.New(t))
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.ClockIn(ctx, newRecord(7, "2026-03-10", now, "tab-1"), false)
	require.NoError(t, err)

	rec, err := repo.FindActive(ctx, 7, "2026-03-10", "tab-1")
	require.NoError(t, err)
	assert.Equal(t, "tab-1", rec.SessionID)

	rec, err = repo.FindActive(ctx, 7, "2026-03-10", "unknown")
	require.NoError(t, err)
	assert.Equal(t, "tab-1", rec.SessionID)

	_, err = repo.FindActive(ctx, 7, "2026-03-11", "tab-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttendanceRepository_ListFilters(t *testing.T) {
	repo := NewAttendanceRepository(testdb.New(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for _, r := range []*models.AttendanceRecord{
		newRecord(7, "2026-03-09", now, "a"),
		newRecord(8, "2026-03-09", now, "b"),
		newRecord(7, "2026-03-10", now, "c"),
	} {
		_, err := repo.ClockIn(ctx, r, false)
		require.NoError(t, err)
	}
	foreign := newRecord(9, "2026-03-09", now, "d")
	foreign.CompanyID = 2
	_, err := repo.ClockIn(ctx, foreign, false)
	require.NoError(t, err)

	list, total, err := repo.List(ctx, 1, AttendanceFilter{Date: "2026-03-09", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)
	assert.EqualValues(t, 7, list[0].UserID)

	list, total, err = repo.List(ctx, 1, AttendanceFilter{UserID: 7, Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 1)
	assert.Equal(t, "2026-03-09", list[0].Date)

	stale, err := repo.ListActiveBeforeDate(ctx, "2026-03-10", 0)
	require.NoError(t, err)
	assert.Len(t, stale, 3, "reconciliation spans all tenants")

	stale, err = repo.ListActiveBeforeDate(ctx, "2026-03-10", 2)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.EqualValues(t, 2, stale[0].CompanyID)

	rng, err := repo.ListRange(ctx, 1, 0, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Len(t, rng, 3)
}
