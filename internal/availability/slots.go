package availability

import (
	"fmt"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
)

var ErrInvalidWindow = fmt.Errorf("%w: invalid availability window", apperr.ErrValidation)

// GenerateSlots tiles [start, end) into free slots of granularity minutes.
// A trailing period shorter than one slot is dropped.
func GenerateSlots(start, end TimeOfDay, granularity int) ([]Slot, error) {
	if granularity <= 0 {
		return nil, fmt.Errorf("%w: granularity must be positive, got %d", ErrInvalidWindow, granularity)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: end %s must be after start %s", ErrInvalidWindow, end, start)
	}

	count := (int(end) - int(start)) / granularity
	slots := make([]Slot, 0, count)
	for i := 0; i < count; i++ {
		slots = append(slots, Slot{Time: start + TimeOfDay(i*granularity)})
	}
	return slots, nil
}

// retile regenerates the slots of w from its current bounds and carries over
// booked flags for slot starts that still exist. It returns the booked slot
// times that no longer fit.
func retile(w *Window, previous []Slot) ([]TimeOfDay, error) {
	slots, err := GenerateSlots(w.StartTime, w.EndTime, w.SlotMinutes)
	if err != nil {
		return nil, err
	}

	index := make(map[TimeOfDay]int, len(slots))
	for i, s := range slots {
		index[s.Time] = i
	}

	var orphaned []TimeOfDay
	for _, old := range previous {
		if !old.Booked {
			continue
		}
		if i, ok := index[old.Time]; ok {
			slots[i].Booked = true
			continue
		}
		orphaned = append(orphaned, old.Time)
	}

	w.Slots = slots
	return orphaned, nil
}
