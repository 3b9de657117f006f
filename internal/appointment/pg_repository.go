package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, full_name, primary_contact, secondary_contact, address, city, notes,
	is_priority, status, scheduled_at, attendance, created_at, updated_at, version`

// uniqueViolation is the Postgres error code raised by the confirmed-slot index.
const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var scheduledAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.FullName,
		&a.PrimaryContact,
		&a.SecondaryContact,
		&a.Address,
		&a.City,
		&a.Notes,
		&a.IsPriority,
		&a.Status,
		&scheduledAt,
		&a.Attendance,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.ScheduledAt = scheduledAt
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSlotTaken
	}
	return err
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, a.ID, a.FullName, a.PrimaryContact, a.SecondaryContact, a.Address, a.City, a.Notes,
		a.IsPriority, a.Status, a.ScheduledAt, a.Attendance, a.CreatedAt, a.UpdatedAt, a.Version)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", mapWriteError(err))
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// updateAppointment writes a only if the row still carries a.Version. The
// caller bumps a.Version once the write is durable.
func updateAppointment(ctx context.Context, db dbtx, a *Appointment) error {
	tag, err := db.Exec(ctx, `
		UPDATE appointments
		SET full_name = $2,
		    primary_contact = $3,
		    secondary_contact = $4,
		    address = $5,
		    city = $6,
		    notes = $7,
		    is_priority = $8,
		    status = $9,
		    scheduled_at = $10,
		    attendance = $11,
		    updated_at = $12,
		    version = version + 1
		WHERE id = $1 AND version = $13
	`, a.ID, a.FullName, a.PrimaryContact, a.SecondaryContact, a.Address, a.City, a.Notes,
		a.IsPriority, a.Status, a.ScheduledAt, a.Attendance, a.UpdatedAt, a.Version)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) error {
	if err := updateAppointment(ctx, r.pool, a); err != nil {
		return err
	}
	a.Version++
	return nil
}

func (r *PgRepository) UpdateMany(ctx context.Context, appts []Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range appts {
		if err := updateAppointment(ctx, tx, &appts[i]); err != nil {
			return fmt.Errorf("update %s: %w", appts[i].ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	for i := range appts {
		appts[i].Version++
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByStatus(ctx context.Context, status AppointmentStatus) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		ORDER BY created_at, id
	`, status)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND scheduled_at >= $1
		  AND scheduled_at < $2
		ORDER BY scheduled_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.Actor, []byte(ev.Payload), nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// PgSettings keeps the daily limit in the settings table.
type PgSettings struct {
	pool     *pgxpool.Pool
	fallback int
}

func NewPgSettings(pool *pgxpool.Pool, fallback int) *PgSettings {
	return &PgSettings{pool: pool, fallback: fallback}
}

func (s *PgSettings) DailyLimit(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = 'slots_per_day'`).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load daily limit: %w", err)
	}
	return n, nil
}

func (s *PgSettings) SetDailyLimit(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: daily limit must be >= 0", ErrValidation)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ('slots_per_day', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, n)
	if err != nil {
		return fmt.Errorf("save daily limit: %w", err)
	}
	return nil
}
