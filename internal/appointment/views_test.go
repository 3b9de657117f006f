package appointment

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAgendaOrdersBySchedule(t *testing.T) {
	svc, _, _ := newTestService(t, 20)
	ctx := context.Background()

	slots := []struct{ name, date, time string }{
		{"third", "2025-03-11", "08:10"},
		{"first", "2025-03-10", "08:10"},
		{"second", "2025-03-10", "14:10"},
	}
	for _, s := range slots {
		a := mustCreate(t, svc, s.name)
		if _, err := svc.ConfirmAppointment(ctx, a.ID, s.date, s.time); err != nil {
			t.Fatalf("confirm %s: %v", s.name, err)
		}
	}
	mustCreate(t, svc, "waiting")

	agenda, err := svc.Agenda(ctx)
	if err != nil {
		t.Fatalf("agenda: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(agenda) != len(want) {
		t.Fatalf("expected %d, got %d", len(want), len(agenda))
	}
	for i, name := range want {
		if agenda[i].FullName != name {
			t.Errorf("position %d: expected %s, got %s", i, name, agenda[i].FullName)
		}
	}
}

func TestArchivedList(t *testing.T) {
	svc, _, _ := newTestService(t, 20)
	ctx := context.Background()

	a := mustCreate(t, svc, "Ana")
	mustCreate(t, svc, "Bruno")
	if _, err := svc.ArchiveAppointment(ctx, a.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	archived, err := svc.Archived(ctx)
	if err != nil {
		t.Fatalf("archived: %v", err)
	}
	if len(archived) != 1 || archived[0].ID != a.ID {
		t.Errorf("unexpected archived list: %+v", archived)
	}
}

func TestOtherCities(t *testing.T) {
	svc, _, _ := newTestService(t, 20)
	ctx := context.Background()

	create := func(name, city string) *Appointment {
		in := validIntake(name)
		in.City = city
		a, err := svc.CreateAppointment(ctx, in)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return a
	}

	create("home", "Buritis")
	create("alias", "Local")
	create("u1", "Unaí")
	create("u2", "Unaí")
	create("a1", "Arinos")
	gone := create("a2", "Arinos")
	if _, err := svc.ArchiveAppointment(ctx, gone.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	groups, err := svc.OtherCities(ctx)
	if err != nil {
		t.Fatalf("other cities: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 cities, got %d: %v", len(groups), groups)
	}
	if len(groups["Unaí"]) != 2 {
		t.Errorf("expected 2 for Unaí, got %d", len(groups["Unaí"]))
	}
	if len(groups["Arinos"]) != 1 {
		t.Errorf("expected archived entries excluded, got %d for Arinos", len(groups["Arinos"]))
	}
}

func TestSearch(t *testing.T) {
	svc, _, _ := newTestService(t, 20)
	ctx := context.Background()

	for _, in := range []Intake{
		{FullName: "Maria José", PrimaryContact: "38911110000", Address: "Rua das Flores, 1"},
		{FullName: "João Pedro", PrimaryContact: "38922220000", Address: "Av. Central, 99"},
		{FullName: "Ana", PrimaryContact: "38933330000", Address: "Rua MARIA Quitéria, 5"},
		{FullName: "Bia", PrimaryContact: "recado com a tia", Address: "Rua B, 2"},
	} {
		if _, err := svc.CreateAppointment(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tests := []struct {
		term string
		want int
	}{
		{"maria", 2},
		{"CENTRAL", 1},
		{"2222", 1},
		{"3893", 1},
		{"RECADO", 1},
		{"Com A Tia", 1},
		{"nobody", 0},
	}
	for _, tt := range tests {
		got, err := svc.Search(ctx, tt.term)
		if err != nil {
			t.Fatalf("search %q: %v", tt.term, err)
		}
		if len(got) != tt.want {
			t.Errorf("search %q: expected %d, got %d", tt.term, tt.want, len(got))
		}
	}
}

func TestQuery(t *testing.T) {
	svc, _, clock := newTestService(t, 20)
	ctx := context.Background()

	// Created 2025-03-01.
	mustCreate(t, svc, "waiting")
	booked := mustCreate(t, svc, "booked")
	if _, err := svc.ConfirmAppointment(ctx, booked.ID, "2025-03-20", "08:10"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	clock.Set(time.Date(2025, 3, 5, 9, 0, 0, 0, testLoc))
	mustCreate(t, svc, "later")

	tests := []struct {
		name string
		q    Query
		want int
	}{
		{"all", Query{}, 3},
		{"waiting", Query{Status: StatusWaiting}, 2},
		{"confirmed", Query{Status: StatusConfirmed}, 1},
		{"range by createdAt", Query{From: "2025-03-01", To: "2025-03-01"}, 1},
		{"range by scheduledAt", Query{From: "2025-03-20", To: "2025-03-20"}, 1},
		{"inclusive end", Query{From: "2025-03-02", To: "2025-03-05"}, 1},
		{"status and range", Query{Status: StatusWaiting, From: "2025-03-01", To: "2025-03-31"}, 2},
		{"empty range", Query{From: "2025-04-01", To: "2025-04-30"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Query(ctx, tt.q)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d, got %d", tt.want, len(got))
			}
		})
	}

	if _, err := svc.Query(ctx, Query{Status: "cancelled"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown status, got %v", err)
	}
	if _, err := svc.Query(ctx, Query{From: "01/03", To: "2025-03-05"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for bad date, got %v", err)
	}
}
