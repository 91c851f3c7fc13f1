package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttendanceRecord is the single row per (user, date). It is never deleted.
type AttendanceRecord struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	UserID           uint       `gorm:"not null;uniqueIndex:idx_attendance_user_date,priority:1" json:"user_id"`
	CompanyID        uint       `gorm:"not null;index" json:"company_id"`
	Date             string     `gorm:"size:10;not null;uniqueIndex:idx_attendance_user_date,priority:2;index" json:"date"` // YYYY-MM-DD, business time zone
	ClockInTime      time.Time  `gorm:"not null" json:"clock_in_time"`
	ClockOutTime     *time.Time `json:"clock_out_time"`
	TotalHours       float64    `gorm:"not null;default:0" json:"total_hours"`
	AccumulatedHours float64    `gorm:"not null;default:0" json:"accumulated_hours"` // closed shifts earlier the same day (accumulate mode)
	IsActive         bool       `gorm:"not null;default:false;index" json:"is_active"`
	SessionID        string     `gorm:"size:255" json:"session_id"`
	Status           string     `gorm:"size:20;not null;default:present" json:"status"`
	IPAddress        string     `gorm:"size:64" json:"ip_address,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}

func (r *AttendanceRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
