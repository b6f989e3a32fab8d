package availability

import (
	"context"
	"sync"
)

// MemoryRepository keeps windows in process memory. All methods are safe for
// concurrent use; every mutation happens under a single write lock.
type MemoryRepository struct {
	mu      sync.RWMutex
	windows []*Window
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, w *Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overlapsLocked(w, "") {
		return ErrWindowOverlap
	}
	r.windows = append(r.windows, w.Clone())
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexLocked(id)
	if i < 0 {
		return nil, ErrWindowNotFound
	}
	return r.windows[i].Clone(), nil
}

func (r *MemoryRepository) ListForDoctor(_ context.Context, doctorID, date string) ([]*Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Window, 0)
	for _, w := range r.windows {
		if w.DoctorID != doctorID {
			continue
		}
		if date != "" && w.Date != date {
			continue
		}
		result = append(result, w.Clone())
	}
	return result, nil
}

func (r *MemoryRepository) CountForDoctor(_ context.Context, doctorID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, w := range r.windows {
		if w.DoctorID == doctorID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Update(_ context.Context, id, ownerID string, mutate func(w *Window) error) (*Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 || r.windows[i].DoctorID != ownerID {
		return nil, ErrWindowNotFound
	}

	updated := r.windows[i].Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	if r.overlapsLocked(updated, id) {
		return nil, ErrWindowOverlap
	}

	r.windows[i] = updated
	return updated.Clone(), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 || r.windows[i].DoctorID != ownerID {
		return ErrWindowNotFound
	}
	if r.windows[i].bookedCount() > 0 {
		return ErrWindowHasBookings
	}

	r.windows = append(r.windows[:i], r.windows[i+1:]...)
	return nil
}

func (r *MemoryRepository) FindFreeSlot(_ context.Context, doctorID, date string, t TimeOfDay) (*SlotRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := false
	for _, w := range r.windows {
		if w.DoctorID != doctorID || w.Date != date {
			continue
		}
		found = true
		if j, ok := w.slotAt(t); ok && !w.Slots[j].Booked {
			return &SlotRef{WindowID: w.ID, DoctorID: w.DoctorID, Date: w.Date, Time: t}, nil
		}
	}
	if !found {
		return nil, ErrNoWindowForDate
	}
	return nil, ErrSlotNotFree
}

func (r *MemoryRepository) MarkBooked(_ context.Context, windowID string, t TimeOfDay) (bool, error) {
	return r.setBooked(windowID, t, true)
}

func (r *MemoryRepository) MarkFree(_ context.Context, windowID string, t TimeOfDay) (bool, error) {
	return r.setBooked(windowID, t, false)
}

func (r *MemoryRepository) setBooked(windowID string, t TimeOfDay, booked bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(windowID)
	if i < 0 {
		return false, ErrWindowNotFound
	}
	w := r.windows[i]
	j, ok := w.slotAt(t)
	if !ok {
		return false, ErrSlotNotFound
	}
	if w.Slots[j].Booked == booked {
		return false, nil
	}
	w.Slots[j].Booked = booked
	return true, nil
}

func (r *MemoryRepository) indexLocked(id string) int {
	for i, w := range r.windows {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func (r *MemoryRepository) overlapsLocked(w *Window, skipID string) bool {
	for _, other := range r.windows {
		if other.ID == skipID {
			continue
		}
		if w.overlaps(other) {
			return true
		}
	}
	return false
}
