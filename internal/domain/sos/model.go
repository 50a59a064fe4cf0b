package sos

import (
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/domain/identity"
)

// Alert states. An alert only moves forward.
const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

var validStatuses = map[string]bool{
	StatusActive: true, StatusAcknowledged: true, StatusResolved: true,
}

func ValidStatus(s string) bool {
	return validStatuses[s]
}

// ListLimit caps ListAlerts.
const ListLimit = 50

// Alert maps to the sos_alerts table.
type Alert struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	Severity       int        `db:"severity" json:"severity"`
	PrimarySymptom *string    `db:"primary_symptom" json:"primary_symptom,omitempty"`
	Symptoms       []string   `db:"symptoms" json:"symptoms"`
	IsAlone        bool       `db:"is_alone" json:"is_alone"`
	CanWalk        bool       `db:"can_walk" json:"can_walk"`
	Latitude       *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64   `db:"longitude" json:"longitude,omitempty"`
	Status         string     `db:"status" json:"status"`
	AcknowledgedBy *uuid.UUID `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	// Patient is filled on reads and on the SOS_ALERT broadcast.
	Patient *identity.PatientSummary `db:"-" json:"patient,omitempty"`
}

// NewAlert carries the caller-supplied fields of an emergency.
type NewAlert struct {
	PatientID      uuid.UUID
	Severity       int
	PrimarySymptom *string
	Symptoms       []string
	IsAlone        bool
	CanWalk        bool
	Latitude       *float64
	Longitude      *float64
}

// AcknowledgedPayload is the SOS_ACKNOWLEDGED event body.
type AcknowledgedPayload struct {
	AlertID        uuid.UUID `json:"alertId"`
	PatientID      uuid.UUID `json:"patientId"`
	AcknowledgedBy string    `json:"acknowledgedBy"`
}
