package sos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/medicore/internal/domain/identity"
	"github.com/medicore/medicore/internal/platform/db"
)

type alertRepoPG struct {
	pool *pgxpool.Pool
}

func NewAlertRepo(pool *pgxpool.Pool) AlertRepository {
	return &alertRepoPG{pool: pool}
}

const alertCols = `id, patient_id, severity, primary_symptom, symptoms, is_alone, can_walk,
	latitude, longitude, status, acknowledged_by, acknowledged_at, resolved_at, notes, created_at, updated_at`

const alertWithPatient = `SELECT a.id, a.patient_id, a.severity, a.primary_symptom, a.symptoms, a.is_alone, a.can_walk,
	a.latitude, a.longitude, a.status, a.acknowledged_by, a.acknowledged_at, a.resolved_at, a.notes,
	a.created_at, a.updated_at,
	p.patient_code, p.first_name, p.last_name, p.phone, p.blood_group, p.allergies
	FROM sos_alerts a JOIN patients p ON p.id = a.patient_id`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(
		&a.ID, &a.PatientID, &a.Severity, &a.PrimarySymptom, &a.Symptoms, &a.IsAlone, &a.CanWalk,
		&a.Latitude, &a.Longitude, &a.Status, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.ResolvedAt, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAlertWithPatient(row pgx.Row) (*Alert, error) {
	var a Alert
	p := identity.PatientSummary{}
	err := row.Scan(
		&a.ID, &a.PatientID, &a.Severity, &a.PrimarySymptom, &a.Symptoms, &a.IsAlone, &a.CanWalk,
		&a.Latitude, &a.Longitude, &a.Status, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.ResolvedAt, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
		&p.Code, &p.FirstName, &p.LastName, &p.Phone, &p.BloodGroup, &p.Allergies,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sos alert: %w", err)
	}
	p.ID = a.PatientID
	a.Patient = &p
	return &a, nil
}

func (r *alertRepoPG) Create(ctx context.Context, a *Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Symptoms == nil {
		a.Symptoms = []string{}
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO sos_alerts (id, patient_id, severity, primary_symptom, symptoms, is_alone, can_walk,
			latitude, longitude, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.Severity, a.PrimarySymptom, a.Symptoms, a.IsAlone, a.CanWalk,
		a.Latitude, a.Longitude, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *alertRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return scanAlertWithPatient(db.Conn(ctx, r.pool).QueryRow(ctx, alertWithPatient+` WHERE a.id = $1`, id))
}

func (r *alertRepoPG) List(ctx context.Context, status string, limit int) ([]*Alert, error) {
	query := alertWithPatient
	args := []interface{}{limit}
	if status != "" {
		query += ` WHERE a.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY a.created_at DESC LIMIT $1`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sos alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a, err := scanAlertWithPatient(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (r *alertRepoPG) Acknowledge(ctx context.Context, id, by uuid.UUID, at time.Time) (*Alert, error) {
	a, err := scanAlert(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE sos_alerts SET status = $2, acknowledged_by = $3, acknowledged_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING `+alertCols,
		id, StatusAcknowledged, by, at, StatusActive,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoTransition
	}
	if err != nil {
		return nil, fmt.Errorf("acknowledge sos alert: %w", err)
	}
	return a, nil
}

func (r *alertRepoPG) Resolve(ctx context.Context, id uuid.UUID, notes *string, at time.Time) (*Alert, error) {
	a, err := scanAlert(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE sos_alerts SET status = $2, resolved_at = $3, notes = $4, updated_at = $3
		WHERE id = $1 AND status <> $2
		RETURNING `+alertCols,
		id, StatusResolved, at, notes,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoTransition
	}
	if err != nil {
		return nil, fmt.Errorf("resolve sos alert: %w", err)
	}
	return a, nil
}
