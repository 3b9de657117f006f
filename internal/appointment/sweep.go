package appointment

import (
	"context"
	"fmt"
)

// ArchivePastDue archives every confirmed appointment whose scheduled date
// is before today. It reads once and writes once, and skips the write when
// nothing is due, so running it repeatedly is harmless. A batch that raced
// with another writer is re-read and retried.
func (s *Service) ArchivePastDue(ctx context.Context) (int, error) {
	var due []Appointment
	err := retryOnConflict(func() error {
		var err error
		due, err = s.pastDue(ctx)
		if err != nil || len(due) == 0 {
			return err
		}
		if err := s.repo.UpdateMany(ctx, due); err != nil {
			return fmt.Errorf("archive past-due appointments: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(due) == 0 {
		s.log.Debug().Msg("archival sweep: nothing due")
		return 0, nil
	}

	for _, a := range due {
		s.logEvent(ctx, a.ID, EventAppointmentArchived, map[string]any{
			"reason":       "sweep",
			"scheduled_at": a.ScheduledAt,
		})
	}
	s.log.Info().Int("archived", len(due)).Msg("archival sweep complete")

	return len(due), nil
}

// pastDue lists confirmed appointments dated before today, already moved to
// archived in memory.
func (s *Service) pastDue(ctx context.Context) ([]Appointment, error) {
	confirmed, err := s.repo.ListByStatus(ctx, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}

	now := s.now()
	today := startOfDay(now, s.loc)

	var due []Appointment
	for _, a := range confirmed {
		if a.ScheduledAt == nil {
			continue
		}
		if startOfDay(*a.ScheduledAt, s.loc).Before(today) {
			a.Status = StatusArchived
			a.Attendance = AttendancePending
			a.UpdatedAt = now
			due = append(due, a)
		}
	}
	return due, nil
}
