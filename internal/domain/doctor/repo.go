package doctor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDoctorNotFound = errors.New("doctor not found")

type DoctorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, filter ListFilter) ([]*Doctor, error)
	// UpdateStatus persists a normalized change and returns the stored row.
	UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange, at time.Time) (*Doctor, error)
}
