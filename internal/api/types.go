package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
)

type AppointmentRequest struct {
	FullName         string `json:"full_name"`
	PrimaryContact   string `json:"primary_contact"`
	SecondaryContact string `json:"secondary_contact"`
	Address          string `json:"address"`
	City             string `json:"city"`
	Notes            string `json:"notes"`
	IsPriority       bool   `json:"is_priority"`
}

func (r AppointmentRequest) intake() appointment.Intake {
	return appointment.Intake{
		FullName:         r.FullName,
		PrimaryContact:   r.PrimaryContact,
		SecondaryContact: r.SecondaryContact,
		Address:          r.Address,
		City:             r.City,
		Notes:            r.Notes,
		IsPriority:       r.IsPriority,
	}
}

type ConfirmRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

type AttendanceRequest struct {
	Attendance string `json:"attendance"`
}

type DailyLimitRequest struct {
	DailyLimit *int `json:"daily_limit"`
}

type AppointmentResponse struct {
	ID               uuid.UUID  `json:"id"`
	FullName         string     `json:"full_name"`
	PrimaryContact   string     `json:"primary_contact"`
	SecondaryContact string     `json:"secondary_contact,omitempty"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	Notes            string     `json:"notes,omitempty"`
	IsPriority       bool       `json:"is_priority"`
	Status           string     `json:"status"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	Attendance       *string    `json:"attendance"`
	CreatedAt        time.Time  `json:"created_at"`
}

type WaitingEntryResponse struct {
	AppointmentResponse
	DaysWaiting     int  `json:"days_waiting"`
	DaysUntilExpiry int  `json:"days_until_expiry"`
	ExpiringSoon    bool `json:"expiring_soon"`
	Expired         bool `json:"expired"`
}

type SweepResponse struct {
	Archived int `json:"archived"`
}

type SettingsResponse struct {
	DailyLimit int `json:"daily_limit"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:               a.ID,
		FullName:         a.FullName,
		PrimaryContact:   a.PrimaryContact,
		SecondaryContact: a.SecondaryContact,
		Address:          a.Address,
		City:             a.City,
		Notes:            a.Notes,
		IsPriority:       a.IsPriority,
		Status:           string(a.Status),
		ScheduledAt:      a.ScheduledAt,
		CreatedAt:        a.CreatedAt,
	}
	if a.Attendance != appointment.AttendancePending {
		v := string(a.Attendance)
		resp.Attendance = &v
	}
	return resp
}

func toResponses(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toResponse(&appts[i]))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
