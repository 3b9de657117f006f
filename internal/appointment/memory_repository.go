package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps appointments in process memory. Used for tests and
// the "memory" store backend.
type MemoryRepository struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]Appointment
	events []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[a.ID]; exists {
		return fmt.Errorf("appointment %s already exists", a.ID)
	}
	r.items[a.ID] = a.clone()
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := a.clone()
	return &c, nil
}

func (r *MemoryRepository) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkVersion(r.items, *a); err != nil {
		return err
	}
	a.Version++
	r.items[a.ID] = a.clone()
	return nil
}

func (r *MemoryRepository) UpdateMany(_ context.Context, appts []Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range appts {
		if err := checkVersion(r.items, a); err != nil {
			return fmt.Errorf("update %s: %w", a.ID, err)
		}
	}
	for i := range appts {
		appts[i].Version++
		r.items[appts[i].ID] = appts[i].clone()
	}
	return nil
}

// checkVersion reports whether a may overwrite the stored copy.
func checkVersion(items map[uuid.UUID]Appointment, a Appointment) error {
	stored, ok := items[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != a.Version {
		return ErrConflict
	}
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Appointment, error) {
	return r.collect(func(Appointment) bool { return true }), nil
}

func (r *MemoryRepository) ListByStatus(_ context.Context, status AppointmentStatus) ([]Appointment, error) {
	return r.collect(func(a Appointment) bool { return a.Status == status }), nil
}

func (r *MemoryRepository) ListConfirmedBetween(_ context.Context, from, to time.Time) ([]Appointment, error) {
	return r.collect(func(a Appointment) bool {
		return a.Status == StatusConfirmed && scheduledWithin(a, from, to)
	}), nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded audit events.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

// collect returns matching appointments in creation order.
func (r *MemoryRepository) collect(keep func(Appointment) bool) []Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.items {
		if keep(a) {
			out = append(out, a.clone())
		}
	}
	sortByCreation(out)
	return out
}

func sortByCreation(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if !appts[i].CreatedAt.Equal(appts[j].CreatedAt) {
			return appts[i].CreatedAt.Before(appts[j].CreatedAt)
		}
		return appts[i].ID.String() < appts[j].ID.String()
	})
}

func scheduledWithin(a Appointment, from, to time.Time) bool {
	if a.ScheduledAt == nil {
		return false
	}
	return !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to)
}

// MemorySettings holds the daily limit in memory.
type MemorySettings struct {
	mu    sync.RWMutex
	limit int
}

func NewMemorySettings(limit int) *MemorySettings {
	return &MemorySettings{limit: limit}
}

func (s *MemorySettings) DailyLimit(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limit, nil
}

func (s *MemorySettings) SetDailyLimit(_ context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: daily limit must be >= 0", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = n
	return nil
}
