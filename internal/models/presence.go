package models

import "time"

// PresenceEvent is never persisted; it only exists on the wire.
type PresenceEvent struct {
	Action    string    `json:"action"` // clock-in | clock-out | online | offline
	UserID    uint      `json:"userId"`
	CompanyID uint      `json:"companyId"`
	Timestamp time.Time `json:"timestamp"`
}
