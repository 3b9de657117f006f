package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSortWaiting(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, testLoc)
	mk := func(name string, priority bool, offset time.Duration) Appointment {
		return Appointment{ID: uuid.New(), FullName: name, IsPriority: priority, CreatedAt: base.Add(offset)}
	}

	appts := []Appointment{
		mk("normal-new", false, 3*time.Hour),
		mk("priority-new", true, 2*time.Hour),
		mk("normal-old", false, 0),
		mk("priority-old", true, time.Hour),
	}
	SortWaiting(appts)

	want := []string{"priority-old", "priority-new", "normal-old", "normal-new"}
	for i, name := range want {
		if appts[i].FullName != name {
			t.Errorf("position %d: expected %s, got %s", i, name, appts[i].FullName)
		}
	}
}

func TestSortWaitingTieBreaksOnID(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, testLoc)
	a := Appointment{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: created}
	b := Appointment{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: created}

	appts := []Appointment{a, b}
	SortWaiting(appts)
	if appts[0].ID != b.ID {
		t.Error("expected lower id first on identical createdAt")
	}
}

func TestClassify(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, testLoc)

	tests := []struct {
		name         string
		age          time.Duration
		days, until  int
		soon, expire bool
	}{
		{"fresh", time.Hour, 0, 30, false, false},
		{"24 days", 24*24*time.Hour + 23*time.Hour, 24, 6, false, false},
		{"25 days", 25 * 24 * time.Hour, 25, 5, true, false},
		{"29 days", 29*24*time.Hour + time.Hour, 29, 1, true, false},
		{"30 days", 30 * 24 * time.Hour, 30, 0, true, true},
		{"40 days", 40 * 24 * time.Hour, 40, -10, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify(Appointment{CreatedAt: created}, created.Add(tt.age))
			if e.DaysWaiting != tt.days {
				t.Errorf("DaysWaiting = %d, want %d", e.DaysWaiting, tt.days)
			}
			if e.DaysUntilExpiry != tt.until {
				t.Errorf("DaysUntilExpiry = %d, want %d", e.DaysUntilExpiry, tt.until)
			}
			if e.ExpiringSoon != tt.soon {
				t.Errorf("ExpiringSoon = %v, want %v", e.ExpiringSoon, tt.soon)
			}
			if e.Expired != tt.expire {
				t.Errorf("Expired = %v, want %v", e.Expired, tt.expire)
			}
		})
	}
}

func TestWaitingListHomeCityOnly(t *testing.T) {
	svc, _, clock := newTestService(t, 20)
	ctx := context.Background()

	create := func(name, city string, priority bool) *Appointment {
		in := validIntake(name)
		in.City = city
		in.IsPriority = priority
		a, err := svc.CreateAppointment(ctx, in)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		clock.Advance(time.Minute)
		return a
	}

	create("buritis-1", "Buritis", false)
	create("unai", "Unaí", true)
	create("local", "Local", false)
	create("buritis-priority", "", true)
	booked := create("booked", "Buritis", false)
	if _, err := svc.ConfirmAppointment(ctx, booked.ID, "2025-03-10", "08:10"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	entries, err := svc.WaitingList(ctx)
	if err != nil {
		t.Fatalf("waiting list: %v", err)
	}

	want := []string{"buritis-priority", "buritis-1", "local"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, name := range want {
		if entries[i].FullName != name {
			t.Errorf("position %d: expected %s, got %s", i, name, entries[i].FullName)
		}
	}
}

func TestExpiringSoon(t *testing.T) {
	svc, _, clock := newTestService(t, 20)
	ctx := context.Background()
	start := clock.Now()

	mustCreate(t, svc, "old")
	clock.Set(start.Add(10 * 24 * time.Hour))
	mustCreate(t, svc, "recent")

	clock.Set(start.Add(26 * 24 * time.Hour))
	entries, err := svc.ExpiringSoon(ctx)
	if err != nil {
		t.Fatalf("expiring soon: %v", err)
	}
	if len(entries) != 1 || entries[0].FullName != "old" {
		t.Fatalf("expected only the old entry, got %+v", entries)
	}
	if entries[0].DaysUntilExpiry != 4 {
		t.Errorf("expected 4 days left, got %d", entries[0].DaysUntilExpiry)
	}

	// Waiting-list age alone never archives anything.
	clock.Set(start.Add(60 * 24 * time.Hour))
	if n, _ := svc.ArchivePastDue(ctx); n != 0 {
		t.Errorf("expected sweep to ignore waiting entries, archived %d", n)
	}
	all, _ := svc.WaitingList(ctx)
	if len(all) != 2 {
		t.Errorf("expected both entries still waiting, got %d", len(all))
	}
}
