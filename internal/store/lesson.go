package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/schoollms/apiserver/types"
)

const lessonColumns = `id, subject, teacher, classroom, day_of_week, start_time, end_time, year_group`

// LessonRepository handles persistence for lessons.
type LessonRepository struct {
	db *sql.DB
}

func NewLessonRepository(db *sql.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func (r *LessonRepository) List(ctx context.Context) ([]types.Lesson, error) {
	const query = `SELECT ` + lessonColumns + ` FROM lessons ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []types.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *LessonRepository) Get(ctx context.Context, id int) (types.Lesson, error) {
	const query = `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	return scanLesson(r.db.QueryRowContext(ctx, query, id))
}

func (r *LessonRepository) Create(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	const query = `
		INSERT INTO lessons (subject, teacher, classroom, day_of_week, start_time, end_time, year_group)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		lesson.Subject,
		lesson.Teacher,
		lesson.Classroom,
		lesson.DayOfWeek,
		lesson.StartTime,
		lesson.EndTime,
		lesson.YearGroup,
	).Scan(&lesson.ID); err != nil {
		return types.Lesson{}, err
	}
	return lesson, nil
}

func (r *LessonRepository) Update(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	const query = `
		UPDATE lessons
		SET subject = $1,
			teacher = $2,
			classroom = $3,
			day_of_week = $4,
			start_time = $5,
			end_time = $6,
			year_group = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		lesson.Subject,
		lesson.Teacher,
		lesson.Classroom,
		lesson.DayOfWeek,
		lesson.StartTime,
		lesson.EndTime,
		lesson.YearGroup,
		lesson.ID,
	)
	if err != nil {
		return types.Lesson{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Lesson{}, err
	}
	if affected == 0 {
		return types.Lesson{}, ErrNotFound
	}
	return lesson, nil
}

func (r *LessonRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM lessons WHERE id = $1`
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

func scanLesson(row rowScanner) (types.Lesson, error) {
	var lesson types.Lesson
	err := row.Scan(
		&lesson.ID,
		&lesson.Subject,
		&lesson.Teacher,
		&lesson.Classroom,
		&lesson.DayOfWeek,
		&lesson.StartTime,
		&lesson.EndTime,
		&lesson.YearGroup,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Lesson{}, ErrNotFound
		}
		return types.Lesson{}, err
	}
	return lesson, nil
}
