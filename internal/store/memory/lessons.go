package memory

import (
	"context"
	"sync"

	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/types"
)

// LessonRepository keeps lessons in insertion order. Ids are never reused.
type LessonRepository struct {
	mu      sync.RWMutex
	lessons []types.Lesson
	nextID  int
}

func NewLessonRepository() *LessonRepository {
	return &LessonRepository{nextID: 1}
}

func (r *LessonRepository) List(ctx context.Context) ([]types.Lesson, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.Lesson(nil), r.lessons...), nil
}

func (r *LessonRepository) Get(ctx context.Context, id int) (types.Lesson, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, lesson := range r.lessons {
		if lesson.ID == id {
			return lesson, nil
		}
	}
	return types.Lesson{}, store.ErrNotFound
}

func (r *LessonRepository) Create(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lesson.ID = r.nextID
	r.nextID++
	r.lessons = append(r.lessons, lesson)
	return lesson, nil
}

func (r *LessonRepository) Update(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.lessons {
		if existing.ID == lesson.ID {
			r.lessons[i] = lesson
			return lesson, nil
		}
	}
	return types.Lesson{}, store.ErrNotFound
}

func (r *LessonRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.lessons {
		if existing.ID == id {
			r.lessons = append(r.lessons[:i], r.lessons[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}
