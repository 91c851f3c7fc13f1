package service

import (
	"context"

	"workday/internal/models"
)

// Broadcaster mirrors attendance writes to real-time listeners. It is called
// only after a write succeeded and must not report delivery failures back;
// presence is best-effort.
type Broadcaster interface {
	PublishAttendance(ctx context.Context, ev models.PresenceEvent, rec *models.AttendanceRecord)
}

// NopBroadcaster drops every event.
type NopBroadcaster struct{}

func (NopBroadcaster) PublishAttendance(context.Context, models.PresenceEvent, *models.AttendanceRecord) {}
