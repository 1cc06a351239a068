package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/schoollms/apiserver/types"
)

const timetableColumns = `id, user_id, week_start, week_end, lesson_ids`

// TimetableRepository handles persistence for timetables. Lesson references
// are stored as a JSONB array of ids.
type TimetableRepository struct {
	db *sql.DB
}

func NewTimetableRepository(db *sql.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) List(ctx context.Context) ([]types.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables ORDER BY id`
	return r.query(ctx, query)
}

func (r *TimetableRepository) ListByUser(ctx context.Context, userID int) ([]types.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE user_id = $1 ORDER BY week_start`
	return r.query(ctx, query, userID)
}

func (r *TimetableRepository) GetByUserWeek(ctx context.Context, userID int, weekStart types.Date) (types.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE user_id = $1 AND week_start = $2`
	return scanTimetable(r.db.QueryRowContext(ctx, query, userID, weekStart.String()))
}

func (r *TimetableRepository) Create(ctx context.Context, timetable types.Timetable) (types.Timetable, error) {
	idsJSON, err := marshalIDs(timetable.LessonIDs)
	if err != nil {
		return types.Timetable{}, err
	}

	const query = `
		INSERT INTO timetables (user_id, week_start, week_end, lesson_ids)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		timetable.UserID,
		timetable.WeekStart.String(),
		timetable.WeekEnd.String(),
		idsJSON,
	).Scan(&timetable.ID); err != nil {
		return types.Timetable{}, err
	}
	return timetable, nil
}

func (r *TimetableRepository) Update(ctx context.Context, timetable types.Timetable) (types.Timetable, error) {
	idsJSON, err := marshalIDs(timetable.LessonIDs)
	if err != nil {
		return types.Timetable{}, err
	}

	const query = `
		UPDATE timetables
		SET week_start = $1,
			week_end = $2,
			lesson_ids = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(
		ctx,
		query,
		timetable.WeekStart.String(),
		timetable.WeekEnd.String(),
		idsJSON,
		timetable.ID,
	)
	if err != nil {
		return types.Timetable{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Timetable{}, err
	}
	if affected == 0 {
		return types.Timetable{}, ErrNotFound
	}
	return timetable, nil
}

func (r *TimetableRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TimetableRepository) query(ctx context.Context, query string, args ...any) ([]types.Timetable, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timetables []types.Timetable
	for rows.Next() {
		timetable, err := scanTimetable(rows)
		if err != nil {
			return nil, err
		}
		timetables = append(timetables, timetable)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return timetables, nil
}

func scanTimetable(row rowScanner) (types.Timetable, error) {
	var timetable types.Timetable
	var idsJSON []byte
	err := row.Scan(
		&timetable.ID,
		&timetable.UserID,
		&timetable.WeekStart.Time,
		&timetable.WeekEnd.Time,
		&idsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Timetable{}, ErrNotFound
		}
		return types.Timetable{}, err
	}
	timetable.WeekStart = types.NewDate(timetable.WeekStart.Time)
	timetable.WeekEnd = types.NewDate(timetable.WeekEnd.Time)
	timetable.LessonIDs = []int{}
	_ = json.Unmarshal(idsJSON, &timetable.LessonIDs)
	return timetable, nil
}

func marshalIDs(ids []int) ([]byte, error) {
	if ids == nil {
		ids = []int{}
	}
	return json.Marshal(ids)
}
