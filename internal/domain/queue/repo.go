package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) (*Appointment, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error)
	// CountByStatus counts a doctor's appointments in [from, to) whose status is in statuses.
	CountByStatus(ctx context.Context, doctorID uuid.UUID, from, to time.Time, statuses []string) (int, error)
	// ListByStatus returns a doctor's appointments in [from, to) ordered by
	// queue position then scheduled time.
	ListByStatus(ctx context.Context, doctorID uuid.UUID, from, to time.Time, statuses []string) ([]*Appointment, error)
	// BookedTimes returns the scheduled times of non-cancelled appointments in [from, to).
	BookedTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
}
