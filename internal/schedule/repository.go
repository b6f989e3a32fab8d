package schedule

import (
	"context"
	"fmt"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
)

var (
	ErrScheduleNotFound = fmt.Errorf("%w: schedule", apperr.ErrNotFound)
	ErrStatusChanged    = fmt.Errorf("%w: schedule status changed concurrently", apperr.ErrConflict)
	ErrSlotTaken        = fmt.Errorf("%w: slot already has an active schedule", apperr.ErrSlotUnavailable)
)

// Repository contains all storage interactions needed for schedules.
type Repository interface {
	// Create stores a SCHEDULED record. It fails with ErrSlotTaken when another
	// SCHEDULED record holds the same doctor, date and slot time.
	Create(ctx context.Context, in NewSchedule) (*Schedule, error)
	GetByID(ctx context.Context, id string) (*Schedule, error)
	// ListForUser filters by doctor for doctors and by patient otherwise, in creation order.
	ListForUser(ctx context.Context, userID string, role auth.Role) ([]*Schedule, error)

	// SetStatus moves a schedule from one status to another. It fails with
	// ErrStatusChanged if the current status is not from.
	SetStatus(ctx context.Context, id string, from, to Status) (*Schedule, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
