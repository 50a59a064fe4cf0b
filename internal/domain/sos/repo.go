package sos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAlertNotFound = errors.New("sos alert not found")

// errNoTransition is returned by the repository when the guarded update
// matched no row in an eligible state.
var errNoTransition = errors.New("alert not in an eligible state")

type AlertRepository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	// List returns newest first, at most limit rows.
	List(ctx context.Context, status string, limit int) ([]*Alert, error)
	// Acknowledge updates an active alert only.
	Acknowledge(ctx context.Context, id, by uuid.UUID, at time.Time) (*Alert, error)
	// Resolve updates any alert that is not yet resolved.
	Resolve(ctx context.Context, id uuid.UUID, notes *string, at time.Time) (*Alert, error)
}
