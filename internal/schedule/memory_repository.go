package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
)

// MemoryRepository keeps schedules and events in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	schedules []*Schedule
	events    []EventLog
	now       func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, in NewSchedule) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.schedules {
		if s.Status == StatusScheduled && s.DoctorID == in.DoctorID &&
			s.Date == in.Date && s.SlotTime == in.SlotTime {
			return nil, ErrSlotTaken
		}
	}

	now := r.now().UTC()
	s := &Schedule{
		ID:        uuid.NewString(),
		DoctorID:  in.DoctorID,
		PatientID: in.PatientID,
		WindowID:  in.WindowID,
		Date:      in.Date,
		SlotTime:  in.SlotTime,
		Status:    StatusScheduled,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.schedules = append(r.schedules, s)

	c := *s
	return &c, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.findLocked(id)
	if s == nil {
		return nil, ErrScheduleNotFound
	}
	c := *s
	return &c, nil
}

func (r *MemoryRepository) ListForUser(_ context.Context, userID string, role auth.Role) ([]*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Schedule, 0)
	for _, s := range r.schedules {
		owner := s.PatientID
		if role == auth.RoleDoctor {
			owner = s.DoctorID
		}
		if owner == userID {
			c := *s
			result = append(result, &c)
		}
	}
	return result, nil
}

func (r *MemoryRepository) SetStatus(_ context.Context, id string, from, to Status) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.findLocked(id)
	if s == nil {
		return nil, ErrScheduleNotFound
	}
	if s.Status != from {
		return nil, ErrStatusChanged
	}
	s.Status = to
	s.UpdatedAt = r.now().UTC()

	c := *s
	return &c, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now().UTC()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded audit events.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) findLocked(id string) *Schedule {
	for _, s := range r.schedules {
		if s.ID == id {
			return s
		}
	}
	return nil
}
