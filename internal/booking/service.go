// Package booking turns free slots into schedules and drives schedule
// status transitions, keeping slot state and schedule state in step.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
	"github.com/hackgods/doctor-appointment-scheduling/internal/lock"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

var (
	ErrSlotBeingBooked = fmt.Errorf("%w: slot is currently being booked, please retry", apperr.ErrConflict)
	ErrOwnSlot         = apperr.Invalid("doctorId", "doctors cannot book their own slots")
)

// compensationTimeout bounds rollback writes that run after the request
// context may already be done.
const compensationTimeout = 5 * time.Second

type BookInput struct {
	DoctorID string
	Date     string
	SlotTime string
	Notes    string
}

type Service struct {
	windows   availability.Repository
	schedules schedule.Repository
	locker    lock.Locker
	log       zerolog.Logger
}

func NewService(windows availability.Repository, schedules schedule.Repository, locker lock.Locker, log zerolog.Logger) *Service {
	return &Service{
		windows:   windows,
		schedules: schedules,
		locker:    locker,
		log:       log.With().Str("component", "booking").Logger(),
	}
}

func validateBookInput(caller auth.Caller, in BookInput) (availability.TimeOfDay, error) {
	if in.DoctorID == "" {
		return 0, apperr.Invalid("doctorId", "is required")
	}
	if caller.ID == in.DoctorID {
		return 0, ErrOwnSlot
	}
	if err := availability.ValidateDate(in.Date); err != nil {
		return 0, err
	}
	t, err := availability.ParseTimeOfDay(in.SlotTime)
	if err != nil {
		return 0, apperr.Invalid("slotTime", "must be HH:MM between 00:00 and 23:59")
	}
	if utf8.RuneCountInString(in.Notes) > schedule.MaxNotesLength {
		return 0, apperr.Invalid("notes", fmt.Sprintf("must be at most %d characters", schedule.MaxNotesLength))
	}
	return t, nil
}

// BookSlot reserves the doctor's slot for the caller and creates the schedule.
// The slot key lock makes concurrent attempts on the same slot fail fast, and
// the booked flag is flipped by compare-and-swap, so at most one attempt wins.
// If the schedule cannot be stored the slot is released before returning.
func (s *Service) BookSlot(ctx context.Context, caller auth.Caller, in BookInput) (*schedule.Schedule, error) {
	slotTime, err := validateBookInput(caller, in)
	if err != nil {
		return nil, err
	}

	var created *schedule.Schedule
	key := lock.SlotKey(in.DoctorID, in.Date, slotTime.String())

	err = s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		ref, err := s.windows.FindFreeSlot(lockCtx, in.DoctorID, in.Date, slotTime)
		if err != nil {
			return err
		}

		changed, err := s.windows.MarkBooked(lockCtx, ref.WindowID, ref.Time)
		if err != nil {
			if errors.Is(err, availability.ErrWindowNotFound) || errors.Is(err, availability.ErrSlotNotFound) {
				return availability.ErrSlotNotFree
			}
			return fmt.Errorf("mark slot booked: %w", err)
		}
		if !changed {
			return availability.ErrSlotNotFree
		}

		sched, err := s.schedules.Create(lockCtx, schedule.NewSchedule{
			DoctorID:  in.DoctorID,
			PatientID: caller.ID,
			WindowID:  ref.WindowID,
			Date:      in.Date,
			SlotTime:  ref.Time,
			Notes:     in.Notes,
		})
		if err != nil {
			s.releaseSlot(ctx, ref)
			if errors.Is(err, schedule.ErrSlotTaken) {
				return err
			}
			return fmt.Errorf("create schedule: %w", err)
		}

		created = sched
		return nil
	})

	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.log.Debug().Str("lock_key", key).Msg("slot lock busy")
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, schedule.EventScheduleCreated, map[string]any{
		"doctor_id":  created.DoctorID,
		"patient_id": created.PatientID,
		"window_id":  created.WindowID,
		"date":       created.Date,
		"slot_time":  created.SlotTime.String(),
	})

	return created, nil
}

// releaseSlot is the compensating action for a booking that failed after the
// slot was marked booked.
func (s *Service) releaseSlot(ctx context.Context, ref *availability.SlotRef) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if _, err := s.windows.MarkFree(cctx, ref.WindowID, ref.Time); err != nil {
		s.log.Error().Err(err).
			Str("window_id", ref.WindowID).
			Str("slot_time", ref.Time.String()).
			Msg("failed to release slot after schedule creation failed")
		return
	}
	s.log.Warn().
		Str("window_id", ref.WindowID).
		Str("slot_time", ref.Time.String()).
		Msg("released slot after schedule creation failed")
}

func (s *Service) logEvent(ctx context.Context, scheduleID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	id := scheduleID

	ev := schedule.EventLog{
		EventType:  eventType,
		ScheduleID: &id,
		Payload:    data,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.schedules.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("schedule_id", scheduleID).Msg("failed to insert event log")
	}
}
