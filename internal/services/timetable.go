package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/types"
)

// TimetableRepository defines persistence operations for timetables.
type TimetableRepository interface {
	List(ctx context.Context) ([]types.Timetable, error)
	ListByUser(ctx context.Context, userID int) ([]types.Timetable, error)
	GetByUserWeek(ctx context.Context, userID int, weekStart types.Date) (types.Timetable, error)
	Create(ctx context.Context, timetable types.Timetable) (types.Timetable, error)
	Update(ctx context.Context, timetable types.Timetable) (types.Timetable, error)
	Delete(ctx context.Context, id int) error
}

// TimetableFilter narrows the admin timetable listing. Zero values match all.
type TimetableFilter struct {
	Teacher   string
	YearGroup int
}

// TimetableService encapsulates timetable use-cases and keeps timetables
// in step with lesson changes.
type TimetableService struct {
	repo    TimetableRepository
	lessons LessonRepository
	users   UserRepository
	now     func() time.Time
}

func NewTimetableService(repo TimetableRepository, lessons LessonRepository, users UserRepository) *TimetableService {
	return &TimetableService{repo: repo, lessons: lessons, users: users, now: time.Now}
}

// CreateCurrentWeek creates a timetable for user covering the current week,
// filled with the lessons the user can see.
func (s *TimetableService) CreateCurrentWeek(ctx context.Context, user types.User) (types.Timetable, error) {
	start, end := types.CurrentWeek(s.now())
	return s.createFor(ctx, user, start, end)
}

// EnsureCurrentWeek returns the user's timetable for the current week,
// creating it when missing. The bool reports whether it was created.
func (s *TimetableService) EnsureCurrentWeek(ctx context.Context, user types.User) (types.Timetable, bool, error) {
	start, end := types.CurrentWeek(s.now())
	existing, err := s.repo.GetByUserWeek(ctx, user.ID, start)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Timetable{}, false, err
	}
	created, err := s.createFor(ctx, user, start, end)
	if err != nil {
		return types.Timetable{}, false, err
	}
	return created, true, nil
}

// Create adds a timetable for another user. Admins and teachers only.
func (s *TimetableService) Create(ctx context.Context, actor types.User, userID int, weekStart, weekEnd types.Date) (types.TimetableView, error) {
	if !actor.CanManageLessons() {
		return types.TimetableView{}, ErrForbidden
	}
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.TimetableView{}, err
	}
	if err := validateWeek(weekStart, weekEnd); err != nil {
		return types.TimetableView{}, err
	}
	if _, err := s.repo.GetByUserWeek(ctx, userID, weekStart); err == nil {
		return types.TimetableView{}, fmt.Errorf("%w: timetable already exists for that week", ErrInvalidInput)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.TimetableView{}, err
	}
	created, err := s.createFor(ctx, owner, weekStart, weekEnd)
	if err != nil {
		return types.TimetableView{}, err
	}
	return s.resolve(ctx, created)
}

// Get returns the timetable of userID for the week starting at weekStart.
func (s *TimetableService) Get(ctx context.Context, actor types.User, userID int, weekStart types.Date) (types.TimetableView, error) {
	if err := canRead(actor, userID); err != nil {
		return types.TimetableView{}, err
	}
	timetable, err := s.repo.GetByUserWeek(ctx, userID, weekStart)
	if err != nil {
		return types.TimetableView{}, err
	}
	return s.resolve(ctx, timetable)
}

// Latest returns the timetable of userID with the most recent week start.
func (s *TimetableService) Latest(ctx context.Context, actor types.User, userID int) (types.TimetableView, error) {
	if err := canRead(actor, userID); err != nil {
		return types.TimetableView{}, err
	}
	timetables, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return types.TimetableView{}, err
	}
	if len(timetables) == 0 {
		return types.TimetableView{}, store.ErrNotFound
	}
	latest := timetables[0]
	for _, timetable := range timetables[1:] {
		if timetable.WeekStart.After(latest.WeekStart.Time) {
			latest = timetable
		}
	}
	return s.resolve(ctx, latest)
}

// List returns every timetable for admins, narrowed by filter, and the
// actor's own timetables for everyone else.
func (s *TimetableService) List(ctx context.Context, actor types.User, filter TimetableFilter) ([]types.TimetableView, error) {
	var (
		timetables []types.Timetable
		err        error
	)
	if actor.IsAdmin() {
		timetables, err = s.repo.List(ctx)
	} else {
		timetables, err = s.repo.ListByUser(ctx, actor.ID)
	}
	if err != nil {
		return nil, err
	}

	views := make([]types.TimetableView, 0, len(timetables))
	for _, timetable := range timetables {
		view, err := s.resolve(ctx, timetable)
		if err != nil {
			return nil, err
		}
		if matchesFilter(view, filter) {
			views = append(views, view)
		}
	}
	return views, nil
}

// Update moves a timetable to a new week range and recomputes its lessons.
func (s *TimetableService) Update(ctx context.Context, actor types.User, userID int, weekStart, newStart, newEnd types.Date) (types.TimetableView, error) {
	if !actor.CanManageLessons() {
		return types.TimetableView{}, ErrForbidden
	}
	if err := validateWeek(newStart, newEnd); err != nil {
		return types.TimetableView{}, err
	}
	timetable, err := s.repo.GetByUserWeek(ctx, userID, weekStart)
	if err != nil {
		return types.TimetableView{}, err
	}
	if !newStart.Equal(weekStart) {
		if _, err := s.repo.GetByUserWeek(ctx, userID, newStart); err == nil {
			return types.TimetableView{}, fmt.Errorf("%w: timetable already exists for that week", ErrInvalidInput)
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.TimetableView{}, err
		}
	}
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.TimetableView{}, err
	}
	lessonIDs, err := s.visibleLessonIDs(ctx, owner)
	if err != nil {
		return types.TimetableView{}, err
	}

	timetable.WeekStart = newStart
	timetable.WeekEnd = newEnd
	timetable.LessonIDs = lessonIDs
	updated, err := s.repo.Update(ctx, timetable)
	if err != nil {
		return types.TimetableView{}, err
	}
	return s.resolve(ctx, updated)
}

// Delete removes a timetable. Admin only.
func (s *TimetableService) Delete(ctx context.Context, actor types.User, userID int, weekStart types.Date) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	timetable, err := s.repo.GetByUserWeek(ctx, userID, weekStart)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, timetable.ID)
}

// SyncLesson adds lesson to every timetable whose owner can see it and
// removes it from the ones whose owner no longer can.
func (s *TimetableService) SyncLesson(ctx context.Context, lesson types.Lesson) error {
	timetables, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	owners := make(map[int]types.User)
	for _, timetable := range timetables {
		owner, ok := owners[timetable.UserID]
		if !ok {
			owner, err = s.users.GetByID(ctx, timetable.UserID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			owners[timetable.UserID] = owner
		}

		visible := owner.CanSee(lesson)
		present := timetable.HasLesson(lesson.ID)
		switch {
		case visible && !present:
			timetable.LessonIDs = append(timetable.LessonIDs, lesson.ID)
		case !visible && present:
			timetable.LessonIDs = withoutID(timetable.LessonIDs, lesson.ID)
		default:
			continue
		}
		if _, err := s.repo.Update(ctx, timetable); err != nil {
			return err
		}
	}
	return nil
}

// RemoveLesson drops lessonID from every timetable.
func (s *TimetableService) RemoveLesson(ctx context.Context, lessonID int) error {
	timetables, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, timetable := range timetables {
		if !timetable.HasLesson(lessonID) {
			continue
		}
		timetable.LessonIDs = withoutID(timetable.LessonIDs, lessonID)
		if _, err := s.repo.Update(ctx, timetable); err != nil {
			return err
		}
	}
	return nil
}

func (s *TimetableService) createFor(ctx context.Context, owner types.User, start, end types.Date) (types.Timetable, error) {
	lessonIDs, err := s.visibleLessonIDs(ctx, owner)
	if err != nil {
		return types.Timetable{}, err
	}
	return s.repo.Create(ctx, types.Timetable{
		UserID:    owner.ID,
		WeekStart: start,
		WeekEnd:   end,
		LessonIDs: lessonIDs,
	})
}

func (s *TimetableService) visibleLessonIDs(ctx context.Context, owner types.User) ([]int, error) {
	lessons, err := s.lessons.List(ctx)
	if err != nil {
		return nil, err
	}
	types.SortLessons(lessons)
	ids := make([]int, 0)
	for _, lesson := range lessons {
		if owner.CanSee(lesson) {
			ids = append(ids, lesson.ID)
		}
	}
	return ids, nil
}

func (s *TimetableService) resolve(ctx context.Context, timetable types.Timetable) (types.TimetableView, error) {
	view := types.TimetableView{Timetable: timetable, Lessons: make([]types.Lesson, 0, len(timetable.LessonIDs))}
	for _, id := range timetable.LessonIDs {
		lesson, err := s.lessons.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return types.TimetableView{}, err
		}
		view.Lessons = append(view.Lessons, lesson)
	}
	types.SortLessons(view.Lessons)
	return view, nil
}

func canRead(actor types.User, userID int) error {
	if actor.IsStudent() && actor.ID != userID {
		return ErrForbidden
	}
	return nil
}

func validateWeek(start, end types.Date) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: week start and end are required", ErrInvalidInput)
	}
	if end.Before(start.Time) {
		return fmt.Errorf("%w: week end must not be before week start", ErrInvalidInput)
	}
	return nil
}

func matchesFilter(view types.TimetableView, filter TimetableFilter) bool {
	if filter.Teacher != "" && !anyLesson(view.Lessons, func(l types.Lesson) bool { return l.Teacher == filter.Teacher }) {
		return false
	}
	if filter.YearGroup != 0 && !anyLesson(view.Lessons, func(l types.Lesson) bool { return l.YearGroup == filter.YearGroup }) {
		return false
	}
	return true
}

func anyLesson(lessons []types.Lesson, match func(types.Lesson) bool) bool {
	for _, lesson := range lessons {
		if match(lesson) {
			return true
		}
	}
	return false
}

func withoutID(ids []int, id int) []int {
	kept := make([]int, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return kept
}

// Teachers returns the sorted set of teachers appearing on any timetable.
func Teachers(views []types.TimetableView) []string {
	seen := make(map[string]struct{})
	for _, view := range views {
		for _, lesson := range view.Lessons {
			seen[lesson.Teacher] = struct{}{}
		}
	}
	teachers := make([]string, 0, len(seen))
	for teacher := range seen {
		teachers = append(teachers, teacher)
	}
	sort.Strings(teachers)
	return teachers
}
