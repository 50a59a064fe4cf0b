package doctor

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

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `id, user_id, name, specialty, room_number, status, status_updated_at,
	leave_reason, expected_return, created_at, updated_at`

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *doctorRepoPG) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	query := `SELECT ` + doctorCols + ` FROM doctors`
	var where []string
	var args []interface{}
	if filter.Specialty != "" {
		args = append(args, filter.Specialty)
		where = append(where, fmt.Sprintf("specialty = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name ASC"

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (r *doctorRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange, at time.Time) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctors SET
			status = $2, status_updated_at = $3, leave_reason = $4, expected_return = $5, updated_at = $3
		WHERE id = $1
		RETURNING `+doctorCols,
		id, change.Status, at, change.LeaveReason, change.ExpectedReturn,
	))
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.UserID, &d.Name, &d.Specialty, &d.RoomNumber, &d.Status, &d.StatusUpdatedAt,
		&d.LeaveReason, &d.ExpectedReturn, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan doctor: %w", err)
	}
	return &d, nil
}
