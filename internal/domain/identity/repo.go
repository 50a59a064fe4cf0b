package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrPatientNotFound = errors.New("patient not found")
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListActiveByRoles(ctx context.Context, roles []string) ([]*User, error)
}

type PatientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}
