package services

import (
	"context"
	"errors"
	"testing"

	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/types"
)

func mustDate(t *testing.T, value string) types.Date {
	t.Helper()
	d, err := types.ParseDate(value)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", value, err)
	}
	return d
}

func TestCreateTimetable(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "admin", types.RoleAdmin, 0)
	student := env.register(t, "sam", types.RoleStudent, 9)
	ctx := context.Background()
	env.addLesson(t, admin, "mr.smith", "Monday", "09:00", 9)
	env.addLesson(t, admin, "mr.smith", "Monday", "10:00", 11)

	start, end := mustDate(t, "2026-11-02"), mustDate(t, "2026-11-08")
	view, err := env.timetables.Create(ctx, admin, student.ID, start, end)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if view.UserID != student.ID || len(view.Lessons) != 1 {
		t.Fatalf("Create() = %+v", view)
	}

	if _, err := env.timetables.Create(ctx, admin, student.ID, start, end); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("duplicate week error = %v, want ErrInvalidInput", err)
	}
	if _, err := env.timetables.Create(ctx, student, student.ID, mustDate(t, "2026-11-09"), mustDate(t, "2026-11-15")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student create error = %v, want ErrForbidden", err)
	}
	if _, err := env.timetables.Create(ctx, admin, student.ID, end, start); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("reversed week error = %v, want ErrInvalidInput", err)
	}
	if _, err := env.timetables.Create(ctx, admin, 999, mustDate(t, "2026-11-09"), mustDate(t, "2026-11-15")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown user error = %v, want store.ErrNotFound", err)
	}
}

func TestTimetableReadAccess(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.register(t, "mr.smith", types.RoleTeacher, 0)
	sam := env.register(t, "sam", types.RoleStudent, 9)
	kim := env.register(t, "kim", types.RoleStudent, 10)
	ctx := context.Background()
	start, _ := types.CurrentWeek(env.clock.Now())

	if _, err := env.timetables.Get(ctx, sam, sam.ID, start); err != nil {
		t.Fatalf("own timetable error = %v", err)
	}
	if _, err := env.timetables.Get(ctx, kim, sam.ID, start); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other student's timetable error = %v, want ErrForbidden", err)
	}
	if _, err := env.timetables.Latest(ctx, teacher, sam.ID); err != nil {
		t.Fatalf("teacher reading student timetable error = %v", err)
	}
	if _, err := env.timetables.Get(ctx, sam, sam.ID, mustDate(t, "2020-01-06")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing week error = %v, want store.ErrNotFound", err)
	}
}

func TestLatestPicksMostRecentWeek(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "admin", types.RoleAdmin, 0)
	ctx := context.Background()

	later := mustDate(t, "2027-01-04")
	if _, err := env.timetables.Create(ctx, admin, admin.ID, later, mustDate(t, "2027-01-10")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := env.timetables.Create(ctx, admin, admin.ID, mustDate(t, "2025-01-06"), mustDate(t, "2025-01-12")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	view, err := env.timetables.Latest(ctx, admin, admin.ID)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if !view.WeekStart.Equal(later) {
		t.Fatalf("Latest() week = %s, want %s", view.WeekStart, later)
	}
}

func TestUpdateTimetableRecomputesLessons(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "admin", types.RoleAdmin, 0)
	teacher := env.register(t, "mr.smith", types.RoleTeacher, 0)
	ctx := context.Background()
	start, _ := types.CurrentWeek(env.clock.Now())

	lesson, err := env.lessonRepo.Create(ctx, types.Lesson{Subject: "Math", Teacher: "mr.smith", Classroom: "1", DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00", YearGroup: 9})
	if err != nil {
		t.Fatalf("seed lesson: %v", err)
	}

	newStart, newEnd := mustDate(t, "2026-11-02"), mustDate(t, "2026-11-08")
	if _, err := env.timetables.Update(ctx, teacher, admin.ID, mustDate(t, "2019-01-07"), newStart, newEnd); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing timetable error = %v", err)
	}

	view, err := env.timetables.Update(ctx, teacher, teacher.ID, start, newStart, newEnd)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !view.WeekStart.Equal(newStart) || !view.WeekEnd.Equal(newEnd) {
		t.Fatalf("Update() week = %s..%s", view.WeekStart, view.WeekEnd)
	}
	if !view.HasLesson(lesson.ID) {
		t.Fatalf("recomputed timetable missing lesson %d", lesson.ID)
	}
	if _, err := env.timetables.Get(ctx, teacher, teacher.ID, start); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old week still present: %v", err)
	}
}

func TestDeleteTimetableAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "admin", types.RoleAdmin, 0)
	teacher := env.register(t, "mr.smith", types.RoleTeacher, 0)
	ctx := context.Background()
	start, _ := types.CurrentWeek(env.clock.Now())

	if err := env.timetables.Delete(ctx, teacher, teacher.ID, start); !errors.Is(err, ErrForbidden) {
		t.Fatalf("teacher delete error = %v, want ErrForbidden", err)
	}
	if err := env.timetables.Delete(ctx, admin, teacher.ID, start); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.timetables.Latest(ctx, admin, teacher.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Latest() after delete error = %v", err)
	}
}

func TestListTimetablesFilter(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "admin", types.RoleAdmin, 0)
	env.addLesson(t, admin, "mr.smith", "Monday", "09:00", 9)
	env.addLesson(t, admin, "ms.jones", "Monday", "09:00", 10)
	sam := env.register(t, "sam", types.RoleStudent, 9)
	env.register(t, "kim", types.RoleStudent, 10)
	ctx := context.Background()

	all, err := env.timetables.List(ctx, admin, TimetableFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("admin List() = %d timetables, want 3", len(all))
	}

	byYear, _ := env.timetables.List(ctx, admin, TimetableFilter{YearGroup: 9})
	if len(byYear) != 2 {
		t.Fatalf("year 9 filter = %d timetables, want 2 (admin and sam)", len(byYear))
	}

	byTeacher, _ := env.timetables.List(ctx, admin, TimetableFilter{Teacher: "ms.jones"})
	if len(byTeacher) != 2 {
		t.Fatalf("teacher filter = %d timetables, want 2 (admin and kim)", len(byTeacher))
	}

	own, _ := env.timetables.List(ctx, sam, TimetableFilter{})
	if len(own) != 1 || own[0].UserID != sam.ID {
		t.Fatalf("student List() = %+v, want only own timetable", own)
	}

	if got := Teachers(all); len(got) != 2 || got[0] != "mr.smith" || got[1] != "ms.jones" {
		t.Fatalf("Teachers() = %v", got)
	}
}

func TestEnsureCurrentWeek(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, err := env.users.Create(ctx, types.User{Username: "quiet", Role: types.RoleTeacher})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	first, created, err := env.timetables.EnsureCurrentWeek(ctx, user)
	if err != nil || !created {
		t.Fatalf("EnsureCurrentWeek() created = %v, err = %v", created, err)
	}
	second, created, err := env.timetables.EnsureCurrentWeek(ctx, user)
	if err != nil || created {
		t.Fatalf("second EnsureCurrentWeek() created = %v, err = %v", created, err)
	}
	if first.ID != second.ID {
		t.Fatalf("EnsureCurrentWeek() returned %d then %d", first.ID, second.ID)
	}
}
