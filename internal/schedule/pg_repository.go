package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const scheduleColumns = `id, doctor_id, patient_id, window_id, to_char(date, 'YYYY-MM-DD'), slot_minute, status, notes, created_at, updated_at`

// Helpers

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	var minute int

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.PatientID,
		&s.WindowID,
		&s.Date,
		&minute,
		&s.Status,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	s.SlotTime = availability.TimeOfDay(minute)
	return &s, nil
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, in NewSchedule) (*Schedule, error) {
	id := uuid.NewString()

	s, err := scanSchedule(r.pool.QueryRow(ctx, `
		INSERT INTO schedules (id, doctor_id, patient_id, window_id, date, slot_minute, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, 'SCHEDULED', $7, now(), now())
		RETURNING `+scheduleColumns,
		id, in.DoctorID, in.PatientID, in.WindowID, in.Date, int(in.SlotTime), in.Notes))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return s, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id string) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE id = $1
	`, id)
	return scanSchedule(row)
}

func (r *PgRepository) ListForUser(ctx context.Context, userID string, role auth.Role) ([]*Schedule, error) {
	column := "patient_id"
	if role == auth.RoleDoctor {
		column = "doctor_id"
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE `+column+` = $1
		ORDER BY seq
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	result := make([]*Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) SetStatus(ctx context.Context, id string, from, to Status) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedules
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+scheduleColumns,
		id, to, from)

	s, err := scanSchedule(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrScheduleNotFound) {
		return nil, fmt.Errorf("set schedule status: %w", err)
	}

	// No row matched: either the schedule is gone or its status moved on.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStatusChanged
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, schedule_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.ScheduleID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
