package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/gaci-appointment-queue/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentEdited    = "APPOINTMENT_EDITED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentReverted  = "APPOINTMENT_REVERTED"
	EventAppointmentArchived  = "APPOINTMENT_ARCHIVED"
	EventAppointmentPostponed = "APPOINTMENT_POSTPONED"
	EventAttendanceRecorded   = "ATTENDANCE_RECORDED"
	EventPriorityToggled      = "PRIORITY_TOGGLED"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
	EventDailyLimitChanged    = "DAILY_LIMIT_CHANGED"
)

// ErrDayBeingBooked is returned when another writer holds the booking lock
// for the requested date.
var ErrDayBeingBooked = errors.New("date is currently being booked, please retry")

type Service struct {
	repo     Repository
	settings Settings
	locker   redisclient.Locker
	schedule Schedule
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Service)

// WithLocation sets the timezone used for calendar dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithSchedule(sc Schedule) Option {
	return func(s *Service) { s.schedule = sc }
}

func NewService(repo Repository, settings Settings, locker redisclient.Locker, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		settings: settings,
		locker:   locker,
		schedule: OfficeSchedule,
		loc:      time.Local,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule returns the slot layout the service books against.
func (s *Service) Schedule() Schedule {
	return s.schedule
}

// Location is the timezone calendar dates are interpreted in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func validateIntake(in Intake) error {
	var missing []string
	if strings.TrimSpace(in.FullName) == "" {
		missing = append(missing, "full_name")
	}
	if strings.TrimSpace(in.PrimaryContact) == "" {
		missing = append(missing, "primary_contact")
	}
	if strings.TrimSpace(in.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func applyIntake(a *Appointment, in Intake) {
	a.FullName = strings.TrimSpace(in.FullName)
	a.PrimaryContact = strings.TrimSpace(in.PrimaryContact)
	a.SecondaryContact = strings.TrimSpace(in.SecondaryContact)
	a.Address = strings.TrimSpace(in.Address)
	a.City = strings.TrimSpace(in.City)
	if a.City == "" {
		a.City = DefaultCity
	}
	a.Notes = strings.TrimSpace(in.Notes)
	a.IsPriority = in.IsPriority
}

// CreateAppointment adds a new request to the waiting list.
func (s *Service) CreateAppointment(ctx context.Context, in Intake) (*Appointment, error) {
	if err := validateIntake(in); err != nil {
		return nil, err
	}

	now := s.now()
	appt := &Appointment{
		ID:        uuid.New(),
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyIntake(appt, in)

	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"city":        appt.City,
		"is_priority": appt.IsPriority,
	})
	return appt, nil
}

// EditAppointment replaces the intake fields, keeping identity, creation
// time and lifecycle state.
func (s *Service) EditAppointment(ctx context.Context, id uuid.UUID, in Intake) (*Appointment, error) {
	if err := validateIntake(in); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, EventAppointmentEdited, func(a *Appointment) error {
		applyIntake(a, in)
		return nil
	})
}

// ConfirmAppointment books a waiting appointment into date+time. Both the
// slot and the daily capacity are checked against current storage while the
// date's booking lock is held.
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID, date, clock string) (*Appointment, error) {
	day, err := parseDate(date, s.loc)
	if err != nil {
		return nil, err
	}
	if !s.schedule.Has(clock) {
		return nil, fmt.Errorf("%w: %q is not a bookable slot", ErrValidation, clock)
	}
	at, err := combine(day, clock)
	if err != nil {
		return nil, err
	}

	var confirmed *Appointment
	err = s.locker.WithLock(ctx, "day:"+date, func(lockCtx context.Context) error {
		// A lost version race means another writer touched the appointment
		// after it was loaded; the reload re-checks its status.
		return retryOnConflict(func() error {
			appt, err := s.repo.GetByID(lockCtx, id)
			if err != nil {
				return fmt.Errorf("load appointment: %w", err)
			}
			if appt.Status != StatusWaiting {
				return fmt.Errorf("%w: cannot confirm %s appointment", ErrInvalidTransition, appt.Status)
			}

			limit, err := s.settings.DailyLimit(lockCtx)
			if err != nil {
				return fmt.Errorf("load daily limit: %w", err)
			}

			sameDay, err := s.repo.ListConfirmedBetween(lockCtx, day, day.AddDate(0, 0, 1))
			if err != nil {
				return fmt.Errorf("list confirmed appointments: %w", err)
			}
			for _, other := range sameDay {
				if other.ScheduledAt != nil && other.ScheduledAt.Equal(at) {
					return ErrSlotTaken
				}
			}
			if len(sameDay) >= limit {
				return ErrCapacityExceeded
			}

			appt.Status = StatusConfirmed
			appt.ScheduledAt = &at
			appt.Attendance = AttendancePending
			appt.UpdatedAt = s.now()

			if err := s.repo.Update(lockCtx, appt); err != nil {
				return fmt.Errorf("confirm appointment: %w", err)
			}
			confirmed = appt

			s.logEvent(lockCtx, appt.ID, EventAppointmentConfirmed, map[string]any{
				"scheduled_at": at,
				"daily_limit":  limit,
			})
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDayBeingBooked
		}
		return nil, err
	}

	return confirmed, nil
}

// RevertToWaiting returns a confirmed appointment to the waiting list.
func (s *Service) RevertToWaiting(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, EventAppointmentReverted, func(a *Appointment) error {
		if a.Status != StatusConfirmed {
			return fmt.Errorf("%w: cannot revert %s appointment", ErrInvalidTransition, a.Status)
		}
		resetToWaiting(a)
		return nil
	})
}

// ArchiveAppointment archives a waiting or confirmed appointment. Any
// scheduled time is kept as history.
func (s *Service) ArchiveAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, EventAppointmentArchived, func(a *Appointment) error {
		if a.Status == StatusArchived {
			return fmt.Errorf("%w: appointment already archived", ErrInvalidTransition)
		}
		a.Status = StatusArchived
		a.Attendance = AttendancePending
		return nil
	})
}

// SetAttendance records the outcome of an archived appointment.
func (s *Service) SetAttendance(ctx context.Context, id uuid.UUID, value Attendance) (*Appointment, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("%w: unknown attendance %q", ErrValidation, value)
	}
	return s.transition(ctx, id, EventAttendanceRecorded, func(a *Appointment) error {
		if a.Status != StatusArchived {
			return fmt.Errorf("%w: attendance requires an archived appointment", ErrInvalidTransition)
		}
		a.Attendance = value
		return nil
	})
}

// Postpone takes an archived appointment back to the waiting list.
func (s *Service) Postpone(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, EventAppointmentPostponed, func(a *Appointment) error {
		if a.Status != StatusArchived {
			return fmt.Errorf("%w: only archived appointments can be postponed", ErrInvalidTransition)
		}
		resetToWaiting(a)
		return nil
	})
}

func (s *Service) TogglePriority(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, EventPriorityToggled, func(a *Appointment) error {
		a.IsPriority = !a.IsPriority
		return nil
	})
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) DailyLimit(ctx context.Context) (int, error) {
	return s.settings.DailyLimit(ctx)
}

func (s *Service) SetDailyLimit(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: daily limit must be >= 0", ErrValidation)
	}
	if err := s.settings.SetDailyLimit(ctx, n); err != nil {
		return err
	}
	s.log.Info().Int("daily_limit", n).Str("actor", ActorFrom(ctx)).Msg("daily limit changed")
	s.logEvent(ctx, uuid.Nil, EventDailyLimitChanged, map[string]any{"daily_limit": n})
	return nil
}

func resetToWaiting(a *Appointment) {
	a.Status = StatusWaiting
	a.ScheduledAt = nil
	a.Attendance = AttendancePending
}

// maxConflictRetries bounds how often a write that lost a version race is
// replayed against a fresh load.
const maxConflictRetries = 3

func retryOnConflict(fn func() error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		if err = fn(); !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}

// transition loads, mutates and stores one appointment. fn must not touch
// storage; on error nothing is written. If the stored record changed after
// the load, fn is run again on the fresh copy so it re-validates the state.
func (s *Service) transition(ctx context.Context, id uuid.UUID, event string, fn func(*Appointment) error) (*Appointment, error) {
	var (
		appt *Appointment
		from AppointmentStatus
	)
	err := retryOnConflict(func() error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		from = a.Status
		if err := fn(a); err != nil {
			return err
		}
		a.UpdatedAt = s.now()

		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, event, map[string]any{
		"from": from,
		"to":   appt.Status,
	})
	return appt, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Actor:     ActorFrom(ctx),
		Payload:   data,
		CreatedAt: s.now(),
	}
	if appointmentID != uuid.Nil {
		apptID := appointmentID
		ev.AppointmentID = &apptID
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Stringer("appointment_id", appointmentID).
			Msg("failed to insert event log")
		return
	}

	s.log.Debug().
		Str("event", eventType).
		Stringer("appointment_id", appointmentID).
		Str("actor", ev.Actor).
		Msg("appointment event")
}
