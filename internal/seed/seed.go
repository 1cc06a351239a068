package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/schoollms/apiserver/internal/services"
	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/types"
	"go.uber.org/zap"
)

// PasswordHasher hashes fixture passwords before they are stored.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// Result counts what Apply created.
type Result struct {
	Users      int
	Lessons    int
	Timetables int
}

// Seeder loads fixtures into the repositories.
type Seeder struct {
	users      services.UserRepository
	lessons    services.LessonRepository
	timetables *services.TimetableService
	hasher     PasswordHasher
	logger     *zap.Logger
}

func NewSeeder(
	users services.UserRepository,
	lessons services.LessonRepository,
	timetables *services.TimetableService,
	hasher PasswordHasher,
	logger *zap.Logger,
) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{users: users, lessons: lessons, timetables: timetables, hasher: hasher, logger: logger}
}

// Apply creates missing users, then the fixture lessons if the lesson
// catalogue is empty, then a current-week timetable for every user that
// lacks one. Running it twice creates nothing the second time.
func (s *Seeder) Apply(ctx context.Context, fixture Fixture) (Result, error) {
	var result Result

	for _, fu := range fixture.Users {
		created, err := s.createUser(ctx, fu)
		if err != nil {
			return result, fmt.Errorf("seed user %s: %w", fu.Username, err)
		}
		if created {
			result.Users++
		}
	}

	existing, err := s.lessons.List(ctx)
	if err != nil {
		return result, err
	}
	if len(existing) == 0 {
		for i, fl := range fixture.Lessons {
			lesson, err := fl.toLesson().Normalize()
			if err != nil {
				return result, fmt.Errorf("seed lesson %d: %w", i, err)
			}
			created, err := s.lessons.Create(ctx, lesson)
			if err != nil {
				return result, fmt.Errorf("seed lesson %d: %w", i, err)
			}
			s.logger.Debug("created lesson",
				zap.Int("id", created.ID),
				zap.String("subject", created.Subject),
				zap.String("day", created.DayOfWeek),
				zap.String("start", created.StartTime),
				zap.Int("year_group", created.YearGroup),
				zap.String("teacher", created.Teacher))
			result.Lessons++
		}
	} else {
		s.logger.Info("lessons already present, skipping lesson fixture", zap.Int("lessons", len(existing)))
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return result, err
	}
	for _, user := range users {
		_, created, err := s.timetables.EnsureCurrentWeek(ctx, user)
		if err != nil {
			return result, fmt.Errorf("seed timetable for %s: %w", user.Username, err)
		}
		if created {
			result.Timetables++
		}
	}

	s.logger.Info("seed applied",
		zap.Int("users", result.Users),
		zap.Int("lessons", result.Lessons),
		zap.Int("timetables", result.Timetables))
	return result, nil
}

func (s *Seeder) createUser(ctx context.Context, fu User) (bool, error) {
	if _, err := s.users.GetByUsername(ctx, fu.Username); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if !types.ValidRole(fu.Role) {
		return false, services.ErrInvalidRole
	}
	if fu.Role == types.RoleStudent && fu.YearGroup == nil {
		return false, services.ErrYearGroupRequired
	}

	hashed, err := s.hasher.HashPassword(fu.Password)
	if err != nil {
		return false, err
	}
	_, err = s.users.Create(ctx, types.User{
		Username:     fu.Username,
		Email:        fu.Email,
		Role:         fu.Role,
		YearGroup:    fu.YearGroup,
		Subjects:     fu.Subjects,
		PasswordHash: hashed,
	})
	if errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("created account", zap.String("username", fu.Username), zap.String("role", fu.Role))
	return true, nil
}
