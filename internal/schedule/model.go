package schedule

import (
	"time"

	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

const MaxNotesLength = 500

// Schedule is a confirmed appointment binding one patient to one slot.
type Schedule struct {
	ID        string
	DoctorID  string
	PatientID string
	WindowID  string
	Date      string
	SlotTime  availability.TimeOfDay
	Status    Status
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSchedule carries the fields the booking coordinator supplies on creation.
type NewSchedule struct {
	DoctorID  string
	PatientID string
	WindowID  string
	Date      string
	SlotTime  availability.TimeOfDay
	Notes     string
}

const (
	EventScheduleCreated   = "SCHEDULE_CREATED"
	EventScheduleCancelled = "SCHEDULE_CANCELLED"
	EventScheduleCompleted = "SCHEDULE_COMPLETED"
)

type EventLog struct {
	ID         int64
	EventType  string
	ScheduleID *string
	Payload    []byte
	CreatedAt  time.Time
}
