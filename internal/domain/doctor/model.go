package doctor

import (
	"time"

	"github.com/google/uuid"
)

// Availability states shown on the live doctor board.
const (
	StatusAvailable   = "available"
	StatusWithPatient = "with_patient"
	StatusBreak       = "break"
	StatusLunch       = "lunch"
	StatusMeeting     = "meeting"
	StatusLeave       = "leave"
)

var validStatuses = map[string]bool{
	StatusAvailable: true, StatusWithPatient: true, StatusBreak: true,
	StatusLunch: true, StatusMeeting: true, StatusLeave: true,
}

// ValidStatus reports whether s is a known availability state.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Name            string     `db:"name" json:"name"`
	Specialty       string     `db:"specialty" json:"specialty"`
	RoomNumber      *string    `db:"room_number" json:"room_number,omitempty"`
	Status          string     `db:"status" json:"status"`
	StatusUpdatedAt time.Time  `db:"status_updated_at" json:"status_updated_at"`
	LeaveReason     *string    `db:"leave_reason" json:"leave_reason,omitempty"`
	ExpectedReturn  *time.Time `db:"expected_return" json:"expected_return,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusChange is a requested transition. Leave fields only survive when
// Status is leave.
type StatusChange struct {
	Status         string
	LeaveReason    *string
	ExpectedReturn *time.Time
}

// normalize drops the leave fields for every state other than leave.
func (sc StatusChange) normalize() StatusChange {
	if sc.Status != StatusLeave {
		sc.LeaveReason = nil
		sc.ExpectedReturn = nil
	}
	return sc
}

// ListFilter narrows ListDoctors. Empty fields match everything.
type ListFilter struct {
	Specialty string
	Status    string
}

// StatusChangedPayload is the DOCTOR_STATUS_CHANGED event body.
type StatusChangedPayload struct {
	DoctorID       uuid.UUID  `json:"doctorId"`
	Name           string     `json:"name"`
	Specialty      string     `json:"specialty"`
	Status         string     `json:"status"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	LeaveReason    *string    `json:"leaveReason"`
	ExpectedReturn *time.Time `json:"expectedReturn"`
}

func (d *Doctor) statusChangedPayload() StatusChangedPayload {
	return StatusChangedPayload{
		DoctorID:       d.ID,
		Name:           d.Name,
		Specialty:      d.Specialty,
		Status:         d.Status,
		UpdatedAt:      d.StatusUpdatedAt,
		LeaveReason:    d.LeaveReason,
		ExpectedReturn: d.ExpectedReturn,
	}
}
