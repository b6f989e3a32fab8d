package api

import (
	"time"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
	"github.com/hackgods/doctor-appointment-scheduling/internal/user"
)

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Envelope is the decoding side of every response body, for clients of the API.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Type     string `json:"type" validate:"omitempty,oneof=DOCTOR PATIENT"`
}

type CreateAvailabilityRequest struct {
	Date        string `json:"date" validate:"required"`
	StartTime   string `json:"startTime" validate:"required"`
	EndTime     string `json:"endTime" validate:"required"`
	SlotMinutes int    `json:"slotMinutes" validate:"omitempty,min=5,max=240"`
}

// UpdateAvailabilityRequest only carries the fields a doctor may change.
type UpdateAvailabilityRequest struct {
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	SlotMinutes *int    `json:"slotMinutes" validate:"omitempty,min=5,max=240"`
}

type CreateScheduleRequest struct {
	DoctorID string `json:"doctorId" validate:"required"`
	Date     string `json:"date" validate:"required"`
	SlotTime string `json:"slotTime" validate:"required"`
	Notes    string `json:"notes" validate:"max=500"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Type      auth.Role `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

type DoctorResponse struct {
	UserResponse
	AvailabilityCount int `json:"availabilityCount"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type SlotResponse struct {
	Time      availability.TimeOfDay `json:"time"`
	Available bool                   `json:"available"`
}

type WindowResponse struct {
	ID          string                 `json:"id"`
	DoctorID    string                 `json:"doctorId"`
	Date        string                 `json:"date"`
	StartTime   availability.TimeOfDay `json:"startTime"`
	EndTime     availability.TimeOfDay `json:"endTime"`
	SlotMinutes int                    `json:"slotMinutes"`
	Slots       []SlotResponse         `json:"slots"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

type FreeSlotResponse struct {
	WindowID string                 `json:"windowId"`
	DoctorID string                 `json:"doctorId"`
	Date     string                 `json:"date"`
	Time     availability.TimeOfDay `json:"time"`
}

type ScheduleResponse struct {
	ID        string                 `json:"id"`
	DoctorID  string                 `json:"doctorId"`
	PatientID string                 `json:"patientId"`
	WindowID  string                 `json:"windowId"`
	Date      string                 `json:"date"`
	SlotTime  availability.TimeOfDay `json:"slotTime"`
	Status    schedule.Status        `json:"status"`
	Notes     string                 `json:"notes"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Type:      u.Type,
		CreatedAt: u.CreatedAt,
	}
}

func toWindowResponse(w *availability.Window) WindowResponse {
	slots := make([]SlotResponse, 0, len(w.Slots))
	for _, s := range w.Slots {
		slots = append(slots, SlotResponse{Time: s.Time, Available: !s.Booked})
	}
	return WindowResponse{
		ID:          w.ID,
		DoctorID:    w.DoctorID,
		Date:        w.Date,
		StartTime:   w.StartTime,
		EndTime:     w.EndTime,
		SlotMinutes: w.SlotMinutes,
		Slots:       slots,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func toWindowResponses(ws []*availability.Window) []WindowResponse {
	out := make([]WindowResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWindowResponse(w))
	}
	return out
}

func toScheduleResponse(s *schedule.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		PatientID: s.PatientID,
		WindowID:  s.WindowID,
		Date:      s.Date,
		SlotTime:  s.SlotTime,
		Status:    s.Status,
		Notes:     s.Notes,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
