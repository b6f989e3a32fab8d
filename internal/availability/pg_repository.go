package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgLockNotAvailable = "55P03"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const windowColumns = `id, doctor_id, to_char(date, 'YYYY-MM-DD'), start_minute, end_minute, slot_minutes, created_at, updated_at`

// Helpers

func scanWindow(row pgx.Row) (*Window, error) {
	var w Window
	var start, end int

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&w.Date,
		&start,
		&end,
		&w.SlotMinutes,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return nil, ErrWindowLocked
		}
		return nil, err
	}

	w.StartTime = TimeOfDay(start)
	w.EndTime = TimeOfDay(end)
	return &w, nil
}

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadSlots fills the slot lists of windows with one round trip.
func loadSlots(ctx context.Context, q querier, windows []*Window, forUpdate bool) error {
	if len(windows) == 0 {
		return nil
	}

	byID := make(map[string]*Window, len(windows))
	ids := make([]string, 0, len(windows))
	for _, w := range windows {
		w.Slots = w.Slots[:0]
		byID[w.ID] = w
		ids = append(ids, w.ID)
	}

	sql := `
		SELECT window_id, slot_minute, booked
		FROM availability_slots
		WHERE window_id = ANY($1)
		ORDER BY window_id, slot_minute`
	if forUpdate {
		sql += ` FOR UPDATE NOWAIT`
	}

	rows, err := q.Query(ctx, sql, ids)
	if err != nil {
		if isLockNotAvailable(err) {
			return ErrWindowLocked
		}
		return fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var windowID string
		var minute int
		var booked bool
		if err := rows.Scan(&windowID, &minute, &booked); err != nil {
			return err
		}
		if w, ok := byID[windowID]; ok {
			w.Slots = append(w.Slots, Slot{Time: TimeOfDay(minute), Booked: booked})
		}
	}
	if err := rows.Err(); err != nil {
		if isLockNotAvailable(err) {
			return ErrWindowLocked
		}
		return err
	}
	return nil
}

// lockDoctorDate serializes window creation and resizing for one doctor and date
// so the overlap check cannot race with a concurrent insert. It does not wait:
// a held lock returns ErrWindowLocked.
func lockDoctorDate(ctx context.Context, tx pgx.Tx, doctorID, date string) error {
	var acquired bool
	err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtextextended($1, 0))`, doctorID+"|"+date).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("lock doctor date: %w", err)
	}
	if !acquired {
		return ErrWindowLocked
	}
	return nil
}

func hasOverlap(ctx context.Context, tx pgx.Tx, w *Window) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM availability_windows
			WHERE doctor_id = $1
			  AND date = $2::date
			  AND id <> $3
			  AND start_minute < $5
			  AND $4 < end_minute
		)
	`, w.DoctorID, w.Date, w.ID, int(w.StartTime), int(w.EndTime)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return exists, nil
}

func insertSlots(ctx context.Context, tx pgx.Tx, w *Window) error {
	rows := make([][]any, 0, len(w.Slots))
	for _, s := range w.Slots {
		rows = append(rows, []any{w.ID, int(s.Time), s.Booked})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"availability_slots"},
		[]string{"window_id", "slot_minute", "booked"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert slots: %w", err)
	}
	return nil
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, w *Window) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockDoctorDate(ctx, tx, w.DoctorID, w.Date); err != nil {
		return err
	}
	overlap, err := hasOverlap(ctx, tx, w)
	if err != nil {
		return err
	}
	if overlap {
		return ErrWindowOverlap
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO availability_windows (id, doctor_id, date, start_minute, end_minute, slot_minutes, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8)
	`, w.ID, w.DoctorID, w.Date, int(w.StartTime), int(w.EndTime), w.SlotMinutes, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert window: %w", err)
	}
	if err := insertSlots(ctx, tx, w); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) Get(ctx context.Context, id string) (*Window, error) {
	w, err := scanWindow(r.pool.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}
	if err := loadSlots(ctx, r.pool, []*Window{w}, false); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PgRepository) ListForDoctor(ctx context.Context, doctorID, date string) ([]*Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE doctor_id = $1
		  AND ($2 = '' OR date = NULLIF($2, '')::date)
		ORDER BY seq
	`, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()

	result := make([]*Window, 0)
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadSlots(ctx, r.pool, result, false); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CountForDoctor(ctx context.Context, doctorID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM availability_windows WHERE doctor_id = $1
	`, doctorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count windows: %w", err)
	}
	return n, nil
}

// lockOwned loads the window and its slots with row locks, failing fast when
// another transaction holds them.
func lockOwned(ctx context.Context, tx pgx.Tx, id, ownerID string) (*Window, error) {
	w, err := scanWindow(tx.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1 AND doctor_id = $2
		FOR UPDATE NOWAIT
	`, id, ownerID))
	if err != nil {
		return nil, err
	}
	if err := loadSlots(ctx, tx, []*Window{w}, true); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PgRepository) Update(ctx context.Context, id, ownerID string, mutate func(w *Window) error) (*Window, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockOwned(ctx, tx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := lockDoctorDate(ctx, tx, w.DoctorID, w.Date); err != nil {
		return nil, err
	}
	if err := mutate(w); err != nil {
		return nil, err
	}

	overlap, err := hasOverlap(ctx, tx, w)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, ErrWindowOverlap
	}

	_, err = tx.Exec(ctx, `
		UPDATE availability_windows
		SET start_minute = $2,
		    end_minute = $3,
		    slot_minutes = $4,
		    updated_at = $5
		WHERE id = $1
	`, w.ID, int(w.StartTime), int(w.EndTime), w.SlotMinutes, w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update window: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_slots WHERE window_id = $1`, w.ID); err != nil {
		return nil, fmt.Errorf("clear slots: %w", err)
	}
	if err := insertSlots(ctx, tx, w); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PgRepository) Delete(ctx context.Context, id, ownerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	w, err := lockOwned(ctx, tx, id, ownerID)
	if err != nil {
		return err
	}
	if w.bookedCount() > 0 {
		return ErrWindowHasBookings
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *PgRepository) FindFreeSlot(ctx context.Context, doctorID, date string, t TimeOfDay) (*SlotRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT w.id, s.booked
		FROM availability_windows w
		LEFT JOIN availability_slots s
		  ON s.window_id = w.id AND s.slot_minute = $3
		WHERE w.doctor_id = $1
		  AND w.date = $2::date
		ORDER BY w.seq
	`, doctorID, date, int(t))
	if err != nil {
		return nil, fmt.Errorf("find free slot: %w", err)
	}
	defer rows.Close()

	found := false
	var ref *SlotRef
	for rows.Next() {
		var windowID string
		var booked *bool
		if err := rows.Scan(&windowID, &booked); err != nil {
			return nil, err
		}
		found = true
		if ref == nil && booked != nil && !*booked {
			ref = &SlotRef{WindowID: windowID, DoctorID: doctorID, Date: date, Time: t}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case ref != nil:
		return ref, nil
	case !found:
		return nil, ErrNoWindowForDate
	default:
		return nil, ErrSlotNotFree
	}
}

func (r *PgRepository) MarkBooked(ctx context.Context, windowID string, t TimeOfDay) (bool, error) {
	return r.setBooked(ctx, windowID, t, true)
}

func (r *PgRepository) MarkFree(ctx context.Context, windowID string, t TimeOfDay) (bool, error) {
	return r.setBooked(ctx, windowID, t, false)
}

// setBooked is a compare-and-swap on the booked flag.
func (r *PgRepository) setBooked(ctx context.Context, windowID string, t TimeOfDay, booked bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_slots
		SET booked = $3
		WHERE window_id = $1
		  AND slot_minute = $2
		  AND booked <> $3
	`, windowID, int(t), booked)
	if err != nil {
		return false, fmt.Errorf("set slot booked=%t: %w", booked, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM availability_slots WHERE window_id = $1 AND slot_minute = $2)
	`, windowID, int(t)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	if !exists {
		return false, ErrSlotNotFound
	}
	return false, nil
}
