package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/schoollms/apiserver/types"
	"go.uber.org/zap"
)

// LessonRepository defines persistence operations for lessons.
type LessonRepository interface {
	List(ctx context.Context) ([]types.Lesson, error)
	Get(ctx context.Context, id int) (types.Lesson, error)
	Create(ctx context.Context, lesson types.Lesson) (types.Lesson, error)
	Update(ctx context.Context, lesson types.Lesson) (types.Lesson, error)
	Delete(ctx context.Context, id int) error
}

// EventPublisher sends lesson events to a broker channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// LessonEventsChannel is the broker channel lesson events are published to.
const LessonEventsChannel = "lesson-events"

// LessonService encapsulates lesson use-cases.
type LessonService struct {
	repo       LessonRepository
	timetables *TimetableService
	events     EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewLessonService wires the lesson use-cases. events may be nil.
func NewLessonService(repo LessonRepository, timetables *TimetableService, events EventPublisher, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, timetables: timetables, events: events, logger: logger, now: time.Now}
}

// ListVisible returns the lessons user can see, ordered by day and time.
func (s *LessonService) ListVisible(ctx context.Context, user types.User) ([]types.Lesson, error) {
	lessons, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]types.Lesson, 0, len(lessons))
	for _, lesson := range lessons {
		if user.CanSee(lesson) {
			visible = append(visible, lesson)
		}
	}
	types.SortLessons(visible)
	return visible, nil
}

func (s *LessonService) Get(ctx context.Context, id int) (types.Lesson, error) {
	return s.repo.Get(ctx, id)
}

// GetVisible returns lesson id if actor can see it.
func (s *LessonService) GetVisible(ctx context.Context, actor types.User, id int) (types.Lesson, error) {
	lesson, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Lesson{}, err
	}
	if !actor.CanSee(lesson) {
		return types.Lesson{}, fmt.Errorf("%w: lesson is not on your schedule", ErrForbidden)
	}
	return lesson, nil
}

// Editable returns lesson id if actor may update it.
func (s *LessonService) Editable(ctx context.Context, actor types.User, id int) (types.Lesson, error) {
	if !actor.CanManageLessons() {
		return types.Lesson{}, fmt.Errorf("%w: only administrators and teachers can edit lessons", ErrForbidden)
	}
	lesson, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Lesson{}, err
	}
	if actor.IsTeacher() && lesson.Teacher != actor.Username {
		return types.Lesson{}, fmt.Errorf("%w: teachers can only update their own lessons", ErrForbidden)
	}
	return lesson, nil
}

// Create adds a lesson. Teachers may only schedule themselves.
func (s *LessonService) Create(ctx context.Context, actor types.User, lesson types.Lesson) (types.Lesson, error) {
	if !actor.CanManageLessons() {
		return types.Lesson{}, fmt.Errorf("%w: only administrators and teachers can create lessons", ErrForbidden)
	}
	lesson, err := lesson.Normalize()
	if err != nil {
		return types.Lesson{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if actor.IsTeacher() && lesson.Teacher != actor.Username {
		return types.Lesson{}, fmt.Errorf("%w: teachers can only create lessons for themselves", ErrForbidden)
	}
	if err := s.checkConflict(ctx, lesson, 0); err != nil {
		return types.Lesson{}, err
	}

	lesson.ID = 0
	created, err := s.repo.Create(ctx, lesson)
	if err != nil {
		return types.Lesson{}, err
	}
	if err := s.timetables.SyncLesson(ctx, created); err != nil {
		return types.Lesson{}, fmt.Errorf("update timetables: %w", err)
	}
	s.publish(ctx, types.LessonCreated, created, actor)
	return created, nil
}

// Update replaces lesson id. Teachers may only edit their own lessons and
// may not hand them to someone else.
func (s *LessonService) Update(ctx context.Context, actor types.User, id int, lesson types.Lesson) (types.Lesson, error) {
	if !actor.CanManageLessons() {
		return types.Lesson{}, fmt.Errorf("%w: only administrators and teachers can update lessons", ErrForbidden)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Lesson{}, err
	}
	if actor.IsTeacher() && current.Teacher != actor.Username {
		return types.Lesson{}, fmt.Errorf("%w: teachers can only update their own lessons", ErrForbidden)
	}
	lesson, err = lesson.Normalize()
	if err != nil {
		return types.Lesson{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if actor.IsTeacher() && lesson.Teacher != actor.Username {
		return types.Lesson{}, fmt.Errorf("%w: teachers can only assign lessons to themselves", ErrForbidden)
	}
	if err := s.checkConflict(ctx, lesson, id); err != nil {
		return types.Lesson{}, err
	}

	lesson.ID = id
	updated, err := s.repo.Update(ctx, lesson)
	if err != nil {
		return types.Lesson{}, err
	}
	if err := s.timetables.SyncLesson(ctx, updated); err != nil {
		return types.Lesson{}, fmt.Errorf("update timetables: %w", err)
	}
	s.publish(ctx, types.LessonUpdated, updated, actor)
	return updated, nil
}

// Delete removes lesson id from the catalogue and every timetable. Admin only.
func (s *LessonService) Delete(ctx context.Context, actor types.User, id int) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: only administrators can delete lessons", ErrForbidden)
	}
	lesson, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.timetables.RemoveLesson(ctx, id); err != nil {
		return fmt.Errorf("update timetables: %w", err)
	}
	s.publish(ctx, types.LessonDeleted, lesson, actor)
	return nil
}

func (s *LessonService) checkConflict(ctx context.Context, lesson types.Lesson, excludeID int) error {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == excludeID {
			continue
		}
		if lesson.Overlaps(other) {
			return ErrLessonConflict
		}
	}
	return nil
}

func (s *LessonService) publish(ctx context.Context, eventType string, lesson types.Lesson, actor types.User) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(types.LessonEvent{
		Type:       eventType,
		Lesson:     lesson,
		Actor:      actor.Username,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to encode lesson event", zap.Error(err))
		return
	}
	attrs := map[string]string{"type": eventType}
	if _, err := s.events.Publish(ctx, LessonEventsChannel, data, attrs); err != nil {
		s.logger.Warn("failed to publish lesson event",
			zap.String("type", eventType), zap.Int("lesson_id", lesson.ID), zap.Error(err))
	}
}
