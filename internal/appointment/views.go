package appointment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Agenda returns confirmed appointments ordered by scheduled time.
func (s *Service) Agenda(ctx context.Context) ([]Appointment, error) {
	confirmed, err := s.repo.ListByStatus(ctx, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}
	sort.SliceStable(confirmed, func(i, j int) bool {
		return scheduledUnix(confirmed[i]) < scheduledUnix(confirmed[j])
	})
	return confirmed, nil
}

func (s *Service) Archived(ctx context.Context) ([]Appointment, error) {
	archived, err := s.repo.ListByStatus(ctx, StatusArchived)
	if err != nil {
		return nil, fmt.Errorf("list archived appointments: %w", err)
	}
	return archived, nil
}

// OtherCities groups the open appointments from outside the home city by
// city name.
func (s *Service) OtherCities(ctx context.Context) (map[string][]Appointment, error) {
	open, err := Find(ctx, s.repo, func(a Appointment) bool {
		return a.Status != StatusArchived && !IsHomeCity(a.City)
	})
	if err != nil {
		return nil, fmt.Errorf("list other-city appointments: %w", err)
	}

	groups := make(map[string][]Appointment)
	for _, a := range open {
		groups[a.City] = append(groups[a.City], a)
	}
	return groups, nil
}

// Search matches name and address case-insensitively. The primary contact
// is matched as stored against the lowercased term.
func (s *Service) Search(ctx context.Context, term string) ([]Appointment, error) {
	lower := strings.ToLower(term)
	found, err := Find(ctx, s.repo, func(a Appointment) bool {
		return strings.Contains(strings.ToLower(a.FullName), lower) ||
			strings.Contains(strings.ToLower(a.Address), lower) ||
			strings.Contains(a.PrimaryContact, lower)
	})
	if err != nil {
		return nil, fmt.Errorf("search appointments: %w", err)
	}
	return found, nil
}

// Query filters appointments for audit and export. From and To are
// YYYY-MM-DD and bound the scheduled time when present, otherwise the
// creation time; both ends are inclusive.
type Query struct {
	Status AppointmentStatus
	From   string
	To     string
}

func (s *Service) Query(ctx context.Context, q Query) ([]Appointment, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, q.Status)
	}

	var start, end time.Time
	ranged := q.From != "" && q.To != ""
	if ranged {
		from, err := parseDate(q.From, s.loc)
		if err != nil {
			return nil, err
		}
		to, err := parseDate(q.To, s.loc)
		if err != nil {
			return nil, err
		}
		start, end = from, to.AddDate(0, 0, 1)
	}

	found, err := Find(ctx, s.repo, func(a Appointment) bool {
		if q.Status != "" && a.Status != q.Status {
			return false
		}
		if !ranged {
			return true
		}
		target := a.CreatedAt
		if a.ScheduledAt != nil {
			target = *a.ScheduledAt
		}
		return !target.Before(start) && target.Before(end)
	})
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	return found, nil
}

func scheduledUnix(a Appointment) int64 {
	if a.ScheduledAt == nil {
		return 0
	}
	return a.ScheduledAt.Unix()
}
