package domain

const (
	RoleEmployee = "EMPLOYEE"
	RoleAdmin    = "ADMIN"
)

// Attendance status values. Auto clock-in only ever sets present; the
// others are administrative adjustments.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusHalfDay = "half-day"
)

// Presence actions carried by PresenceEvent.
const (
	ActionClockIn  = "clock-in"
	ActionClockOut = "clock-out"
	ActionOnline   = "online"
	ActionOffline  = "offline"
)

// Real-time event names.
const (
	EventAttendanceUpdate     = "attendance_update"
	EventUserOnline           = "user_online"
	EventUserOffline          = "user_offline"
	EventUserAttendanceUpdate = "user_attendance_update"
)

const (
	ShiftModeLatest     = "latest"
	ShiftModeAccumulate = "accumulate"
)

// DateLayout is the calendar-date format of AttendanceRecord.Date.
const DateLayout = "2006-01-02"
