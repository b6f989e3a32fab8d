package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
	"github.com/hackgods/doctor-appointment-scheduling/internal/lock"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

var (
	ErrScheduleFinal     = fmt.Errorf("%w: schedule is no longer SCHEDULED", apperr.ErrInvalidTransition)
	ErrNotScheduleDoctor = fmt.Errorf("%w: only the doctor on the schedule can complete it", apperr.ErrInvalidTransition)
	ErrScheduleBusy      = fmt.Errorf("%w: schedule slot is being modified, please retry", apperr.ErrConflict)
)

func isParty(caller auth.Caller, s *schedule.Schedule) bool {
	return caller.ID == s.DoctorID || caller.ID == s.PatientID
}

// Get returns a schedule visible to the caller. Schedules of other users
// are reported as not found.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id string) (*schedule.Schedule, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(caller, sched) {
		return nil, schedule.ErrScheduleNotFound
	}
	return sched, nil
}

// ListOwn returns the caller's schedules: as doctor when the caller is a
// doctor, as patient otherwise.
func (s *Service) ListOwn(ctx context.Context, caller auth.Caller) ([]*schedule.Schedule, error) {
	return s.schedules.ListForUser(ctx, caller.ID, caller.Role)
}

// Cancel moves a SCHEDULED schedule to CANCELLED and frees its slot. If the
// slot cannot be freed the status change is reverted.
func (s *Service) Cancel(ctx context.Context, caller auth.Caller, id string) (*schedule.Schedule, error) {
	sched, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if sched.Status != schedule.StatusScheduled {
		return nil, ErrScheduleFinal
	}

	var cancelled *schedule.Schedule
	key := lock.SlotKey(sched.DoctorID, sched.Date, sched.SlotTime.String())

	err = s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		updated, err := s.schedules.SetStatus(lockCtx, id, schedule.StatusScheduled, schedule.StatusCancelled)
		if err != nil {
			if errors.Is(err, schedule.ErrStatusChanged) {
				return ErrScheduleFinal
			}
			return err
		}

		if _, err := s.windows.MarkFree(lockCtx, sched.WindowID, sched.SlotTime); err != nil {
			if errors.Is(err, availability.ErrWindowNotFound) || errors.Is(err, availability.ErrSlotNotFound) {
				s.log.Warn().
					Str("schedule_id", id).
					Str("window_id", sched.WindowID).
					Msg("cancelled schedule has no slot to free")
			} else {
				s.revertCancel(ctx, id)
				return fmt.Errorf("free slot: %w", err)
			}
		}

		cancelled = updated
		return nil
	})

	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.logEvent(ctx, cancelled.ID, schedule.EventScheduleCancelled, map[string]any{
		"cancelled_by": caller.ID,
		"window_id":    cancelled.WindowID,
		"slot_time":    cancelled.SlotTime.String(),
	})

	return cancelled, nil
}

func (s *Service) revertCancel(ctx context.Context, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if _, err := s.schedules.SetStatus(cctx, id, schedule.StatusCancelled, schedule.StatusScheduled); err != nil {
		s.log.Error().Err(err).Str("schedule_id", id).Msg("failed to revert cancellation after slot release failed")
		return
	}
	s.log.Warn().Str("schedule_id", id).Msg("reverted cancellation after slot release failed")
}

// Complete marks a SCHEDULED schedule as COMPLETED. Only the schedule's
// doctor may complete it, and the slot stays booked.
func (s *Service) Complete(ctx context.Context, caller auth.Caller, id string) (*schedule.Schedule, error) {
	sched, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if caller.ID != sched.DoctorID {
		return nil, ErrNotScheduleDoctor
	}
	if sched.Status != schedule.StatusScheduled {
		return nil, ErrScheduleFinal
	}

	updated, err := s.schedules.SetStatus(ctx, id, schedule.StatusScheduled, schedule.StatusCompleted)
	if err != nil {
		if errors.Is(err, schedule.ErrStatusChanged) {
			return nil, ErrScheduleFinal
		}
		return nil, err
	}

	s.logEvent(ctx, updated.ID, schedule.EventScheduleCompleted, map[string]any{
		"completed_by": caller.ID,
	})

	return updated, nil
}
