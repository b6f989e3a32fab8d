package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
)

var ErrDoctorOnly = fmt.Errorf("%w: only doctors can manage availability", apperr.ErrForbidden)

type CreateWindowInput struct {
	Date        string
	StartTime   string
	EndTime     string
	SlotMinutes int
}

type Service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "availability").Logger(),
		now:  time.Now,
	}
}

// CreateWindow validates the input, generates slots and stores a new window
// for the calling doctor.
func (s *Service) CreateWindow(ctx context.Context, caller auth.Caller, in CreateWindowInput) (*Window, error) {
	if !caller.IsDoctor() {
		return nil, ErrDoctorOnly
	}
	if err := ValidateDate(in.Date); err != nil {
		return nil, err
	}
	start, err := parseTimeField("startTime", in.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTimeField("endTime", in.EndTime)
	if err != nil {
		return nil, err
	}
	minutes := in.SlotMinutes
	if minutes == 0 {
		minutes = DefaultSlotMinutes
	}

	now := s.now().UTC()
	w := &Window{
		ID:          uuid.NewString(),
		DoctorID:    caller.ID,
		Date:        in.Date,
		StartTime:   start,
		EndTime:     end,
		SlotMinutes: minutes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := checkBounds(w); err != nil {
		return nil, err
	}
	if w.Slots, err = GenerateSlots(start, end, minutes); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}

	s.log.Info().
		Str("window_id", w.ID).
		Str("doctor_id", w.DoctorID).
		Str("date", w.Date).
		Int("slots", len(w.Slots)).
		Msg("availability window created")
	return w, nil
}

// checkBounds applies the range rules on top of the generator's own checks.
func checkBounds(w *Window) error {
	if w.SlotMinutes < MinSlotMinutes || w.SlotMinutes > MaxSlotMinutes {
		return apperr.Invalid("slotMinutes", fmt.Sprintf("must be between %d and %d", MinSlotMinutes, MaxSlotMinutes))
	}
	if w.EndTime <= w.StartTime {
		return apperr.Invalid("endTime", "must be after startTime")
	}
	if int(w.EndTime-w.StartTime) < w.SlotMinutes {
		return apperr.Invalid("endTime", "window is shorter than one slot")
	}
	return nil
}

func (s *Service) ListOwn(ctx context.Context, caller auth.Caller) ([]*Window, error) {
	if !caller.IsDoctor() {
		return nil, ErrDoctorOnly
	}
	return s.ListForDoctor(ctx, caller.ID, "")
}

// ListForDoctor returns the doctor's windows in insertion order, optionally
// restricted to a single date.
func (s *Service) ListForDoctor(ctx context.Context, doctorID, date string) ([]*Window, error) {
	if doctorID == "" {
		return nil, apperr.Invalid("doctorId", "is required")
	}
	if date != "" {
		if err := ValidateDate(date); err != nil {
			return nil, err
		}
	}
	windows, err := s.repo.ListForDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	return windows, nil
}

func (s *Service) CountForDoctor(ctx context.Context, doctorID string) (int, error) {
	return s.repo.CountForDoctor(ctx, doctorID)
}

// UpdateWindow applies patch to a window owned by the caller. Slots are
// regenerated and booked slots that still exist keep their state; a patch
// that would drop a booked slot is rejected.
func (s *Service) UpdateWindow(ctx context.Context, caller auth.Caller, id string, patch Patch) (*Window, error) {
	if !caller.IsDoctor() {
		return nil, ErrDoctorOnly
	}
	if patch.empty() {
		return nil, apperr.Invalid("", "patch has no fields to update")
	}

	var start, end *TimeOfDay
	if patch.StartTime != nil {
		t, err := parseTimeField("startTime", *patch.StartTime)
		if err != nil {
			return nil, err
		}
		start = &t
	}
	if patch.EndTime != nil {
		t, err := parseTimeField("endTime", *patch.EndTime)
		if err != nil {
			return nil, err
		}
		end = &t
	}

	updated, err := s.repo.Update(ctx, id, caller.ID, func(w *Window) error {
		previous := w.Slots
		if start != nil {
			w.StartTime = *start
		}
		if end != nil {
			w.EndTime = *end
		}
		if patch.SlotMinutes != nil {
			w.SlotMinutes = *patch.SlotMinutes
		}
		if err := checkBounds(w); err != nil {
			return err
		}

		orphaned, err := retile(w, previous)
		if err != nil {
			return err
		}
		if len(orphaned) > 0 {
			return fmt.Errorf("%w: %v", ErrBookedSlotsOrphaned, orphaned)
		}
		w.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update window: %w", err)
	}

	s.log.Info().
		Str("window_id", updated.ID).
		Str("start", updated.StartTime.String()).
		Str("end", updated.EndTime.String()).
		Int("slot_minutes", updated.SlotMinutes).
		Msg("availability window updated")
	return updated, nil
}

// DeleteWindow removes a window owned by the caller. Windows with booked
// slots cannot be deleted until those schedules are cancelled.
func (s *Service) DeleteWindow(ctx context.Context, caller auth.Caller, id string) error {
	if !caller.IsDoctor() {
		return ErrDoctorOnly
	}
	if err := s.repo.Delete(ctx, id, caller.ID); err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	s.log.Info().Str("window_id", id).Str("doctor_id", caller.ID).Msg("availability window deleted")
	return nil
}

// ListFreeSlots flattens the doctor's free slots, ordered by date and time.
func (s *Service) ListFreeSlots(ctx context.Context, doctorID, date string) ([]SlotRef, error) {
	windows, err := s.ListForDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	free := make([]SlotRef, 0)
	for _, w := range windows {
		for _, sl := range w.Slots {
			if sl.Booked {
				continue
			}
			free = append(free, SlotRef{WindowID: w.ID, DoctorID: w.DoctorID, Date: w.Date, Time: sl.Time})
		}
	}

	sort.SliceStable(free, func(i, j int) bool {
		if free[i].Date != free[j].Date {
			return free[i].Date < free[j].Date
		}
		return free[i].Time < free[j].Time
	})
	return free, nil
}
