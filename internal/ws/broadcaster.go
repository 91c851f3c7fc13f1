package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"workday/internal/domain"
	"workday/internal/models"
)

// Frame is what a socket receives.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// AttendanceUpdate is the payload of attendance_update and
// user_attendance_update.
type AttendanceUpdate struct {
	Action    string                   `json:"action"`
	UserID    uint                     `json:"userId"`
	CompanyID uint                     `json:"companyId"`
	Data      *models.AttendanceRecord `json:"data"`
	Timestamp time.Time                `json:"timestamp"`
}

// Broadcaster publishes tenant-scoped presence events through a backplane.
// Delivery is at most once; publish failures are logged, never returned.
type Broadcaster struct {
	hub *Hub
	bp  Backplane
	log *slog.Logger
}

func NewBroadcaster(hub *Hub, bp Backplane, log *slog.Logger) *Broadcaster {
	if bp == nil {
		bp = NewLocalBackplane()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{hub: hub, bp: bp, log: log.With("component", "presence")}
}

func (b *Broadcaster) Hub() *Hub { return b.hub }

// Start subscribes the local hub to the backplane.
func (b *Broadcaster) Start(ctx context.Context) error {
	return b.bp.Subscribe(ctx, b.deliver)
}

func (b *Broadcaster) Close() error {
	return b.bp.Close()
}

func (b *Broadcaster) deliver(env Envelope) {
	frame, err := json.Marshal(Frame{Event: env.Event, Data: env.Data})
	if err != nil {
		b.log.Warn("encode frame", "event", env.Event, "error", err)
		return
	}
	b.hub.dispatch(env.Room, frame, env.ExcludeID)
}

// sendTo writes a frame to one local socket, bypassing rooms and the
// backplane. It reports whether the frame was queued.
func (b *Broadcaster) sendTo(c *Client, event string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn("encode direct payload", "event", event, "client_id", c.ID, "error", err)
		return false
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		b.log.Warn("encode frame", "event", event, "client_id", c.ID, "error", err)
		return false
	}
	return c.trySend(frame)
}

func (b *Broadcaster) publish(ctx context.Context, room, event string, payload interface{}, excludeID string) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn("encode presence payload", "event", event, "error", err)
		return
	}
	if err := b.bp.Publish(ctx, Envelope{Room: room, Event: event, ExcludeID: excludeID, Data: data}); err != nil {
		b.log.Warn("publish presence event", "event", event, "room", room, "error", err)
	}
}

// Emit sends event to the admin room of companyID only.
func (b *Broadcaster) Emit(ctx context.Context, event string, payload interface{}, companyID uint, excludeID string) {
	b.publish(ctx, AdminRoom(companyID), event, payload, excludeID)
}

func (b *Broadcaster) EmitToUser(ctx context.Context, event string, payload interface{}, companyID, userID uint) {
	b.publish(ctx, UserRoom(companyID, userID), event, payload, "")
}

// PublishAttendance tells the user's own sockets and the tenant's admins
// about a clock-in or clock-out.
func (b *Broadcaster) PublishAttendance(ctx context.Context, ev models.PresenceEvent, rec *models.AttendanceRecord) {
	update := AttendanceUpdate{
		Action:    ev.Action,
		UserID:    ev.UserID,
		CompanyID: ev.CompanyID,
		Data:      rec,
		Timestamp: ev.Timestamp,
	}
	b.EmitToUser(ctx, domain.EventAttendanceUpdate, update, ev.CompanyID, ev.UserID)
	b.Emit(ctx, domain.EventUserAttendanceUpdate, update, ev.CompanyID, "")
}

// presence announces a socket going online or offline to its tenant's
// admins.
func (b *Broadcaster) presence(ctx context.Context, c *Client, online bool) {
	event, action := domain.EventUserOffline, domain.ActionOffline
	if online {
		event, action = domain.EventUserOnline, domain.ActionOnline
	}
	b.Emit(ctx, event, models.PresenceEvent{
		Action:    action,
		UserID:    c.UserID,
		CompanyID: c.CompanyID,
		Timestamp: time.Now().UTC(),
	}, c.CompanyID, c.ID)
}
