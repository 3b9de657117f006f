package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrValidation        = errors.New("validation error")
	ErrCapacityExceeded  = errors.New("daily capacity exceeded")
	ErrSlotTaken         = errors.New("slot already has a confirmed appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("appointment was modified concurrently")
)

// Repository contains all storage interactions needed by the service.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update stores a if the stored version still equals a.Version, then
	// increments a.Version. A stale version yields ErrConflict.
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context) ([]Appointment, error)
	ListByStatus(ctx context.Context, status AppointmentStatus) ([]Appointment, error)

	// For conflict checks: confirmed appointments with scheduled_at in [from, to).
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Archival sweep writes all transitions at once, with the same version
	// check as Update. Either every record is written or none is.
	UpdateMany(ctx context.Context, appts []Appointment) error

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Settings supplies the administrator-configured daily capacity.
type Settings interface {
	DailyLimit(ctx context.Context) (int, error)
	SetDailyLimit(ctx context.Context, n int) error
}

// Find returns the appointments for which keep reports true.
func Find(ctx context.Context, repo Repository, keep func(Appointment) bool) ([]Appointment, error) {
	all, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Appointment
	for _, a := range all {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}
