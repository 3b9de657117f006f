package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	// WaitingListTTLDays is how long a request stays valid on the list.
	WaitingListTTLDays = 30
	// ExpiryAlertDays is the age at which a request is flagged as expiring.
	ExpiryAlertDays = 25
)

// SortWaiting orders waiting appointments: priority first, then oldest
// first. Ties on created_at fall back to id so the order is deterministic.
func SortWaiting(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if a.IsPriority != b.IsPriority {
			return a.IsPriority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// Classify derives the expiry fields of a waiting appointment at now.
func Classify(a Appointment, now time.Time) WaitingEntry {
	days := int(now.Sub(a.CreatedAt) / (24 * time.Hour))
	until := WaitingListTTLDays - days
	return WaitingEntry{
		Appointment:     a,
		DaysWaiting:     days,
		DaysUntilExpiry: until,
		ExpiringSoon:    days >= ExpiryAlertDays,
		Expired:         until <= 0,
	}
}

// WaitingList returns the home-city waiting list in service order.
func (s *Service) WaitingList(ctx context.Context) ([]WaitingEntry, error) {
	waiting, err := s.repo.ListByStatus(ctx, StatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("list waiting appointments: %w", err)
	}

	local := waiting[:0]
	for _, a := range waiting {
		if IsHomeCity(a.City) {
			local = append(local, a)
		}
	}
	SortWaiting(local)

	now := s.now()
	entries := make([]WaitingEntry, 0, len(local))
	for _, a := range local {
		entries = append(entries, Classify(a, now))
	}
	return entries, nil
}

// ExpiringSoon returns the waiting-list entries that need attention.
func (s *Service) ExpiringSoon(ctx context.Context) ([]WaitingEntry, error) {
	entries, err := s.WaitingList(ctx)
	if err != nil {
		return nil, err
	}
	var out []WaitingEntry
	for _, e := range entries {
		if e.ExpiringSoon {
			out = append(out, e)
		}
	}
	return out, nil
}
