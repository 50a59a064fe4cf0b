package queue

import (
	"time"

	"github.com/google/uuid"
)

// Appointment lifecycle states.
const (
	StatusBooked     = "booked"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var allStatuses = []string{StatusBooked, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled}

var validStatuses = func() map[string]bool {
	m := make(map[string]bool, len(allStatuses))
	for _, s := range allStatuses {
		m[s] = true
	}
	return m
}()

// ValidStatus reports whether s is a known appointment state.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// activeStatuses are the states that hold a place in a doctor's queue.
var activeStatuses = []string{StatusBooked, StatusConfirmed, StatusInProgress}

// waitingStatuses are the states still waiting to be seen.
var waitingStatuses = []string{StatusBooked, StatusConfirmed}

// MinutesPerPatient is the flat consultation estimate behind wait times.
const MinutesPerPatient = 15

// Appointment maps to the appointments table.
type Appointment struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	PatientID            uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID             uuid.UUID `db:"doctor_id" json:"doctor_id"`
	ScheduledTime        time.Time `db:"scheduled_time" json:"scheduled_time"`
	Status               string    `db:"status" json:"status"`
	QueuePosition        int       `db:"queue_position" json:"queue_position"`
	EstimatedWaitMinutes int       `db:"estimated_wait_minutes" json:"estimated_wait_minutes"`
	TriageSeverity       *int      `db:"triage_severity" json:"triage_severity,omitempty"`
	PrimarySymptom       *string   `db:"primary_symptom" json:"primary_symptom,omitempty"`
	Reason               *string   `db:"reason" json:"reason,omitempty"`
	IsWalkIn             bool      `db:"is_walk_in" json:"is_walk_in"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// NewAppointment carries the caller-supplied fields of a booking. A zero
// ScheduledTime means now.
type NewAppointment struct {
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	ScheduledTime  time.Time
	TriageSeverity *int
	PrimarySymptom *string
	Reason         *string
	IsWalkIn       bool
}

// ListFilter narrows ListAppointments. Zero values match everything.
type ListFilter struct {
	DoctorID *uuid.UUID
	Status   string
	Date     *time.Time
}

// Slot is one cell of the bookable grid.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// Stats summarises a doctor's day.
type Stats struct {
	TodayCompleted int `json:"todayCompleted"`
	TodayPending   int `json:"todayPending"`
	TotalPatients  int `json:"totalPatients"`
}

// -- Events --

// CreatedPayload is the QUEUE_UPDATED body sent when a ticket is issued.
type CreatedPayload struct {
	Appointment *Appointment `json:"appointment"`
}

// StatusPayload is the QUEUE_UPDATED body sent when a ticket changes state.
type StatusPayload struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	DoctorID      uuid.UUID `json:"doctorId"`
	Status        string    `json:"status"`
}
