package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gaci-appointment-queue/internal/kv"
)

const (
	appointmentsKey = "appointments"
	configKey       = "config"
	eventsKey       = "events"
)

// KVRepository stores the whole appointment collection under one key and
// rewrites it on every mutation. Each rewrite goes through the store's
// atomic Update, so processes sharing the store never lose each other's
// writes.
type KVRepository struct {
	store kv.Store
}

func NewKVRepository(store kv.Store) *KVRepository {
	return &KVRepository{store: store}
}

func decodeAppointments(data []byte) ([]Appointment, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var appts []Appointment
	if err := json.Unmarshal(data, &appts); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return appts, nil
}

func (r *KVRepository) load(ctx context.Context) ([]Appointment, error) {
	data, err := r.store.Load(ctx, appointmentsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return decodeAppointments(data)
}

// mutate runs fn over the stored collection and writes the result back in
// one atomic store update. fn may run more than once if the store retries.
func (r *KVRepository) mutate(ctx context.Context, fn func([]Appointment) ([]Appointment, error)) error {
	var fnErr error
	err := r.store.Update(ctx, appointmentsKey, func(current []byte) ([]byte, error) {
		appts, err := decodeAppointments(current)
		if err != nil {
			return nil, err
		}
		appts, fnErr = fn(appts)
		if fnErr != nil {
			return nil, fnErr
		}
		if appts == nil {
			appts = []Appointment{}
		}
		data, err := json.Marshal(appts)
		if err != nil {
			return nil, fmt.Errorf("encode appointments: %w", err)
		}
		return data, nil
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("save appointments: %w", err)
	}
	return err
}

func indexOf(appts []Appointment, id uuid.UUID) int {
	for i := range appts {
		if appts[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *KVRepository) Create(ctx context.Context, a *Appointment) error {
	return r.mutate(ctx, func(appts []Appointment) ([]Appointment, error) {
		if indexOf(appts, a.ID) >= 0 {
			return nil, fmt.Errorf("appointment %s already exists", a.ID)
		}
		return append(appts, a.clone()), nil
	})
}

func (r *KVRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(appts, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return &appts[i], nil
}

// storedAt returns the index of a in appts after checking that the stored
// version is the one the caller loaded.
func storedAt(appts []Appointment, a Appointment) (int, error) {
	i := indexOf(appts, a.ID)
	if i < 0 {
		return -1, ErrNotFound
	}
	if appts[i].Version != a.Version {
		return -1, ErrConflict
	}
	return i, nil
}

func (r *KVRepository) Update(ctx context.Context, a *Appointment) error {
	err := r.mutate(ctx, func(appts []Appointment) ([]Appointment, error) {
		i, err := storedAt(appts, *a)
		if err != nil {
			return nil, err
		}
		appts[i] = a.clone()
		appts[i].Version++
		return appts, nil
	})
	if err != nil {
		return err
	}
	a.Version++
	return nil
}

func (r *KVRepository) UpdateMany(ctx context.Context, updates []Appointment) error {
	err := r.mutate(ctx, func(appts []Appointment) ([]Appointment, error) {
		for _, u := range updates {
			i, err := storedAt(appts, u)
			if err != nil {
				return nil, fmt.Errorf("update %s: %w", u.ID, err)
			}
			appts[i] = u.clone()
			appts[i].Version++
		}
		return appts, nil
	})
	if err != nil {
		return err
	}
	for i := range updates {
		updates[i].Version++
	}
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.mutate(ctx, func(appts []Appointment) ([]Appointment, error) {
		i := indexOf(appts, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(appts[:i], appts[i+1:]...), nil
	})
}

func (r *KVRepository) List(ctx context.Context) ([]Appointment, error) {
	return r.filter(ctx, func(Appointment) bool { return true })
}

func (r *KVRepository) ListByStatus(ctx context.Context, status AppointmentStatus) ([]Appointment, error) {
	return r.filter(ctx, func(a Appointment) bool { return a.Status == status })
}

func (r *KVRepository) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return r.filter(ctx, func(a Appointment) bool {
		return a.Status == StatusConfirmed && scheduledWithin(a, from, to)
	})
}

func (r *KVRepository) filter(ctx context.Context, keep func(Appointment) bool) ([]Appointment, error) {
	appts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []Appointment
	for _, a := range appts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// InsertEvent appends to the audit log kept under its own key.
func (r *KVRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	err := r.store.Update(ctx, eventsKey, func(current []byte) ([]byte, error) {
		var events []EventLog
		if len(current) > 0 {
			if err := json.Unmarshal(current, &events); err != nil {
				return nil, fmt.Errorf("decode events: %w", err)
			}
		}
		e := ev
		e.ID = int64(len(events) + 1)
		return json.Marshal(append(events, e))
	})
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

type kvConfig struct {
	SlotsPerDay int `json:"slots_per_day"`
}

// KVSettings keeps the daily limit under the config key, falling back to a
// default until an administrator saves one.
type KVSettings struct {
	store    kv.Store
	fallback int
}

func NewKVSettings(store kv.Store, fallback int) *KVSettings {
	return &KVSettings{store: store, fallback: fallback}
}

func (s *KVSettings) DailyLimit(ctx context.Context) (int, error) {
	data, err := s.store.Load(ctx, configKey)
	if errors.Is(err, kv.ErrNotFound) || (err == nil && len(data) == 0) {
		return s.fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}

	var cfg kvConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.SlotsPerDay, nil
}

func (s *KVSettings) SetDailyLimit(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: daily limit must be >= 0", ErrValidation)
	}
	data, err := json.Marshal(kvConfig{SlotsPerDay: n})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := s.store.Save(ctx, configKey, data); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
