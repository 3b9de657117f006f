package appointment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusWaiting   AppointmentStatus = "waiting"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusArchived  AppointmentStatus = "archived"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusWaiting, StatusConfirmed, StatusArchived:
		return true
	}
	return false
}

// Attendance is the outcome recorded for an archived appointment.
// The zero value means the outcome is still pending review.
type Attendance string

const (
	AttendancePending Attendance = ""
	AttendanceDone    Attendance = "done"
	AttendanceNotDone Attendance = "not_done"
	AttendanceNoShow  Attendance = "no_show"
)

func (a Attendance) IsValid() bool {
	switch a {
	case AttendanceDone, AttendanceNotDone, AttendanceNoShow:
		return true
	}
	return false
}

// DefaultCity is used when intake leaves the city empty.
const DefaultCity = "Buritis"

// homeCities holds the office's own municipality plus its legacy alias.
var homeCities = map[string]struct{}{
	"Buritis": {},
	"Local":   {},
}

// IsHomeCity reports whether city names the office's own municipality.
func IsHomeCity(city string) bool {
	_, ok := homeCities[city]
	return ok
}

type Appointment struct {
	ID               uuid.UUID         `json:"id"`
	FullName         string            `json:"full_name"`
	PrimaryContact   string            `json:"primary_contact"`
	SecondaryContact string            `json:"secondary_contact,omitempty"`
	Address          string            `json:"address"`
	City             string            `json:"city"`
	Notes            string            `json:"notes,omitempty"`
	IsPriority       bool              `json:"is_priority"`
	Status           AppointmentStatus `json:"status"`
	ScheduledAt      *time.Time        `json:"scheduled_at,omitempty"`
	Attendance       Attendance        `json:"attendance,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	// Version is bumped by every successful Update; writers must present
	// the version they loaded.
	Version int64 `json:"version"`
}

// Intake carries the user-editable fields of an appointment.
type Intake struct {
	FullName         string `json:"full_name"`
	PrimaryContact   string `json:"primary_contact"`
	SecondaryContact string `json:"secondary_contact,omitempty"`
	Address          string `json:"address"`
	City             string `json:"city,omitempty"`
	Notes            string `json:"notes,omitempty"`
	IsPriority       bool   `json:"is_priority"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Actor         string
	Payload       json.RawMessage
	CreatedAt     time.Time
}

// WaitingEntry is a waiting-list row with its derived expiry information.
type WaitingEntry struct {
	Appointment
	DaysWaiting     int  `json:"days_waiting"`
	DaysUntilExpiry int  `json:"days_until_expiry"`
	ExpiringSoon    bool `json:"expiring_soon"`
	Expired         bool `json:"expired"`
}

func (a Appointment) clone() Appointment {
	if a.ScheduledAt != nil {
		t := *a.ScheduledAt
		a.ScheduledAt = &t
	}
	return a
}
