package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Interval is an open period of the day, both ends inclusive, in minutes
// after midnight.
type Interval struct {
	Start int
	End   int
}

// Schedule describes the recurring daily slot layout.
type Schedule struct {
	Intervals []Interval
	Tick      time.Duration
}

// OfficeSchedule is 08:10-11:10 and 14:10-17:10 in 20 minute ticks.
var OfficeSchedule = Schedule{
	Intervals: []Interval{
		{Start: 8*60 + 10, End: 11*60 + 10},
		{Start: 14*60 + 10, End: 17*60 + 10},
	},
	Tick: 20 * time.Minute,
}

// Labels returns the HH:MM slot labels in order.
func (s Schedule) Labels() []string {
	step := int(s.Tick / time.Minute)
	if step <= 0 {
		return nil
	}

	var labels []string
	for _, iv := range s.Intervals {
		for m := iv.Start; m <= iv.End; m += step {
			labels = append(labels, fmt.Sprintf("%02d:%02d", m/60, m%60))
		}
	}
	return labels
}

// Has reports whether label is one of the schedule's slots.
func (s Schedule) Has(label string) bool {
	for _, l := range s.Labels() {
		if l == label {
			return true
		}
	}
	return false
}

// DayAvailability is the calendar view of one date.
type DayAvailability struct {
	Date          string   `json:"date"`
	Slots         []string `json:"slots"`
	Occupied      []string `json:"occupied"`
	Free          []string `json:"free"`
	OccupiedCount int      `json:"occupied_count"`
	DailyLimit    int      `json:"daily_limit"`
	Remaining     int      `json:"remaining"`
}

// Availability computes occupied and free labels for a date from the
// confirmed appointments scheduled on it.
func (s Schedule) Availability(date string, confirmed []Appointment, loc *time.Location, limit int) DayAvailability {
	occupied := make(map[string]bool, len(confirmed))
	var occupiedLabels []string
	for _, a := range confirmed {
		if a.ScheduledAt == nil {
			continue
		}
		label := a.ScheduledAt.In(loc).Format(timeLayout)
		if !occupied[label] {
			occupied[label] = true
			occupiedLabels = append(occupiedLabels, label)
		}
	}
	sort.Strings(occupiedLabels)

	labels := s.Labels()
	free := make([]string, 0, len(labels))
	for _, l := range labels {
		if !occupied[l] {
			free = append(free, l)
		}
	}

	remaining := limit - len(confirmed)
	if remaining < 0 {
		remaining = 0
	}

	return DayAvailability{
		Date:          date,
		Slots:         labels,
		Occupied:      occupiedLabels,
		Free:          free,
		OccupiedCount: len(confirmed),
		DailyLimit:    limit,
		Remaining:     remaining,
	}
}

// parseDate parses YYYY-MM-DD as local midnight.
func parseDate(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD: %q", ErrValidation, date)
	}
	return d, nil
}

// combine joins a date and an HH:MM label into a local instant.
func combine(day time.Time, label string) (time.Time, error) {
	t, err := time.Parse(timeLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time must be HH:MM: %q", ErrValidation, label)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Availability reports the calendar for date using the current daily limit.
func (s *Service) Availability(ctx context.Context, date string) (*DayAvailability, error) {
	day, err := parseDate(date, s.loc)
	if err != nil {
		return nil, err
	}
	limit, err := s.settings.DailyLimit(ctx)
	if err != nil {
		return nil, fmt.Errorf("load daily limit: %w", err)
	}
	confirmed, err := s.repo.ListConfirmedBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}

	av := s.schedule.Availability(date, confirmed, s.loc, limit)
	return &av, nil
}
