package availability

import "time"

const (
	DefaultSlotMinutes = 30
	MinSlotMinutes     = 5
	MaxSlotMinutes     = 240
)

// Slot is the smallest bookable unit of a window, identified by its start.
type Slot struct {
	Time   TimeOfDay
	Booked bool
}

// Window is a doctor-declared time range on a date, subdivided into slots.
type Window struct {
	ID          string
	DoctorID    string
	Date        string
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	SlotMinutes int
	Slots       []Slot
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy so callers never share the slot slice with a store.
func (w *Window) Clone() *Window {
	c := *w
	c.Slots = append([]Slot(nil), w.Slots...)
	return &c
}

func (w *Window) slotAt(t TimeOfDay) (int, bool) {
	for i, s := range w.Slots {
		if s.Time == t {
			return i, true
		}
	}
	return -1, false
}

func (w *Window) bookedCount() int {
	n := 0
	for _, s := range w.Slots {
		if s.Booked {
			n++
		}
	}
	return n
}

// overlaps reports whether two windows on the same doctor and date share any time.
func (w *Window) overlaps(o *Window) bool {
	return w.DoctorID == o.DoctorID && w.Date == o.Date &&
		w.StartTime < o.EndTime && o.StartTime < w.EndTime
}

// SlotRef locates a free slot inside a window.
type SlotRef struct {
	WindowID string
	DoctorID string
	Date     string
	Time     TimeOfDay
}

// Patch enumerates the mutable fields of a window. Nil fields are left unchanged.
type Patch struct {
	StartTime   *string
	EndTime     *string
	SlotMinutes *int
}

func (p Patch) empty() bool {
	return p.StartTime == nil && p.EndTime == nil && p.SlotMinutes == nil
}
