package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/medicore/internal/platform/db"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, doctor_id, scheduled_time, status, queue_position,
	estimated_wait_minutes, triage_severity, primary_symptom, reason, is_walk_in, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledTime, &a.Status, &a.QueuePosition,
		&a.EstimatedWaitMinutes, &a.TriageSeverity, &a.PrimarySymptom, &a.Reason, &a.IsWalkIn,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, scheduled_time, status, queue_position,
			estimated_wait_minutes, triage_severity, primary_symptom, reason, is_walk_in)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledTime, a.Status, a.QueuePosition,
		a.EstimatedWaitMinutes, a.TriageSeverity, a.PrimarySymptom, a.Reason, a.IsWalkIn,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) (*Appointment, error) {
	return r.scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+apptCols,
		id, status, at,
	))
}

func (r *appointmentRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	var where []string
	var args []interface{}
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Date != nil {
		from := *filter.Date
		args = append(args, from, from.AddDate(0, 0, 1))
		where = append(where, fmt.Sprintf("scheduled_time >= $%d AND scheduled_time < $%d", len(args)-1, len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM appointments%s ORDER BY scheduled_time DESC LIMIT $%d OFFSET $%d`,
		apptCols, clause, len(args)-1, len(args))
	appts, err := r.collect(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return appts, total, nil
}

func (r *appointmentRepoPG) CountByStatus(ctx context.Context, doctorID uuid.UUID, from, to time.Time, statuses []string) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3 AND status = ANY($4)`,
		doctorID, from, to, statuses,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

func (r *appointmentRepoPG) ListByStatus(ctx context.Context, doctorID uuid.UUID, from, to time.Time, statuses []string) ([]*Appointment, error) {
	return r.collect(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3 AND status = ANY($4)
		ORDER BY queue_position ASC, scheduled_time ASC`,
		doctorID, from, to, statuses,
	)
}

func (r *appointmentRepoPG) BookedTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT scheduled_time FROM appointments
		WHERE doctor_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3 AND status <> $4`,
		doctorID, from, to, StatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("booked times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan booked time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (r *appointmentRepoPG) collect(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}
