package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Roles known to the coordination core.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RolePharmacist   = "pharmacist"
	RoleReceptionist = "receptionist"
	RolePatient      = "patient"
)

// User maps to the users table.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Patient maps to the patients table.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	PatientCode string     `db:"patient_code" json:"patient_code"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	BloodGroup  *string    `db:"blood_group" json:"blood_group,omitempty"`
	Allergies   *string    `db:"allergies" json:"allergies,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// FullName joins first and last name.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PatientSummary is the patient block attached to broadcast events.
type PatientSummary struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Phone      *string   `json:"phone,omitempty"`
	BloodGroup *string   `json:"bloodGroup,omitempty"`
	Allergies  *string   `json:"allergies,omitempty"`
}

func (p *Patient) Summary() *PatientSummary {
	return &PatientSummary{
		ID:         p.ID,
		Code:       p.PatientCode,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Phone:      p.Phone,
		BloodGroup: p.BloodGroup,
		Allergies:  p.Allergies,
	}
}
