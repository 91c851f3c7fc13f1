package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"workday/internal/models"
	"workday/internal/repository"
	"workday/internal/testdb"

	"gorm.io/gorm"
)

// business is UTC+3 so that date and boundary math differ from UTC.
var business = time.FixedZone("EAT", 3*60*60)

type published struct {
	Event  models.PresenceEvent
	Record models.AttendanceRecord
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBroadcaster) PublishAttendance(_ context.Context, ev models.PresenceEvent, rec *models.AttendanceRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Event: ev, Record: *rec})
}

func (b *recordingBroadcaster) actions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, p := range b.events {
		out = append(out, p.Event.Action)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	db    *gorm.DB
	svc   *AttendanceService
	repo  *repository.AttendanceRepository
	bc    *recordingBroadcaster
	clock *fakeClock
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, business)
}

func newFixture(t *testing.T, accumulate bool) *fixture {
	t.Helper()
	return newFixtureOn(t, testdb.New(t), accumulate)
}

func newFixtureOn(t *testing.T, db *gorm.DB, accumulate bool) *fixture {
	t.Helper()
	repo := repository.NewAttendanceRepository(db)
	bc := &recordingBroadcaster{}
	clock := &fakeClock{now: at(10, 9, 0)}
	svc := NewAttendanceService(repo, bc, AttendancePolicy{
		Location:      business,
		BoundaryHour:  18,
		MaxHours:      12,
		SweepInterval: 30 * time.Minute,
		SweepCutoff:   12 * time.Hour,
		Accumulate:    accumulate,
	}, nil)
	svc.SetClock(clock.Now)
	return &fixture{db: db, svc: svc, repo: repo, bc: bc, clock: clock}
}
