package memory

import (
	"context"
	"sync"

	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/types"
)

// TimetableRepository keeps timetables in insertion order.
type TimetableRepository struct {
	mu         sync.RWMutex
	timetables []types.Timetable
	nextID     int
}

func NewTimetableRepository() *TimetableRepository {
	return &TimetableRepository{nextID: 1}
}

func (r *TimetableRepository) List(ctx context.Context) ([]types.Timetable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	timetables := make([]types.Timetable, 0, len(r.timetables))
	for _, timetable := range r.timetables {
		timetables = append(timetables, cloneTimetable(timetable))
	}
	return timetables, nil
}

func (r *TimetableRepository) ListByUser(ctx context.Context, userID int) ([]types.Timetable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var timetables []types.Timetable
	for _, timetable := range r.timetables {
		if timetable.UserID == userID {
			timetables = append(timetables, cloneTimetable(timetable))
		}
	}
	return timetables, nil
}

func (r *TimetableRepository) GetByUserWeek(ctx context.Context, userID int, weekStart types.Date) (types.Timetable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, timetable := range r.timetables {
		if timetable.UserID == userID && timetable.WeekStart.Equal(weekStart) {
			return cloneTimetable(timetable), nil
		}
	}
	return types.Timetable{}, store.ErrNotFound
}

func (r *TimetableRepository) Create(ctx context.Context, timetable types.Timetable) (types.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timetable.ID = r.nextID
	r.nextID++
	timetable = cloneTimetable(timetable)
	r.timetables = append(r.timetables, timetable)
	return cloneTimetable(timetable), nil
}

func (r *TimetableRepository) Update(ctx context.Context, timetable types.Timetable) (types.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.timetables {
		if existing.ID == timetable.ID {
			r.timetables[i] = cloneTimetable(timetable)
			return cloneTimetable(timetable), nil
		}
	}
	return types.Timetable{}, store.ErrNotFound
}

func (r *TimetableRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.timetables {
		if existing.ID == id {
			r.timetables = append(r.timetables[:i], r.timetables[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func cloneTimetable(timetable types.Timetable) types.Timetable {
	ids := make([]int, len(timetable.LessonIDs))
	copy(ids, timetable.LessonIDs)
	timetable.LessonIDs = ids
	return timetable
}
