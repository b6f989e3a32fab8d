package availability

import (
	"context"
	"fmt"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
)

var (
	ErrWindowNotFound      = fmt.Errorf("%w: availability window", apperr.ErrNotFound)
	ErrNoWindowForDate     = fmt.Errorf("%w: doctor has no availability on this date", apperr.ErrAvailabilityNotFound)
	ErrSlotNotFree         = fmt.Errorf("%w: slot is not free", apperr.ErrSlotUnavailable)
	ErrSlotNotFound        = fmt.Errorf("%w: slot does not exist", apperr.ErrNotFound)
	ErrWindowOverlap       = fmt.Errorf("%w: window overlaps an existing window", apperr.ErrConflict)
	ErrWindowHasBookings   = fmt.Errorf("%w: window has booked slots, cancel them first", apperr.ErrConflict)
	ErrBookedSlotsOrphaned = fmt.Errorf("%w: change would drop booked slots", apperr.ErrConflict)
	ErrWindowLocked        = fmt.Errorf("%w: window is being modified, retry shortly", apperr.ErrConflict)
)

// Repository stores availability windows and their slot state.
type Repository interface {
	// Create inserts w unless it overlaps another window of the same doctor and date.
	Create(ctx context.Context, w *Window) error
	Get(ctx context.Context, id string) (*Window, error)
	// ListForDoctor returns windows in insertion order. An empty date means all dates.
	ListForDoctor(ctx context.Context, doctorID, date string) ([]*Window, error)
	CountForDoctor(ctx context.Context, doctorID string) (int, error)

	// Update runs mutate on the window owned by ownerID and persists the result
	// atomically with respect to bookings on the same window.
	Update(ctx context.Context, id, ownerID string, mutate func(w *Window) error) (*Window, error)
	// Delete removes the window owned by ownerID. It fails with ErrWindowHasBookings
	// while any slot is booked.
	Delete(ctx context.Context, id, ownerID string) error

	// FindFreeSlot locates the free slot at t on the doctor's windows for date.
	FindFreeSlot(ctx context.Context, doctorID, date string, t TimeOfDay) (*SlotRef, error)
	// MarkBooked and MarkFree flip a slot and report whether the state changed.
	// Setting a state that is already set is not an error.
	MarkBooked(ctx context.Context, windowID string, t TimeOfDay) (bool, error)
	MarkFree(ctx context.Context, windowID string, t TimeOfDay) (bool, error)
}
