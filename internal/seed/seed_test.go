package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/schoollms/apiserver/internal/services"
	"github.com/schoollms/apiserver/internal/store/memory"
	"github.com/schoollms/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

func TestDemoNeverDoubleBooksYearGroupSlot(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		fixture := Demo(rand.New(rand.NewPCG(seed, seed*7)))
		if len(fixture.Lessons) == 0 {
			t.Fatalf("seed %d: expected lessons", seed)
		}

		yearSlots := make(map[string]bool)
		teacherSlots := make(map[string]bool)
		for _, fl := range fixture.Lessons {
			lesson, err := fl.toLesson().Normalize()
			if err != nil {
				t.Fatalf("seed %d: invalid lesson %+v: %v", seed, fl, err)
			}
			if lesson.YearGroup < minYearGroup || lesson.YearGroup > maxYearGroup {
				t.Fatalf("seed %d: year group %d out of range", seed, lesson.YearGroup)
			}

			yearKey := fmt.Sprintf("%s/%s/%d", lesson.DayOfWeek, lesson.StartTime, lesson.YearGroup)
			if yearSlots[yearKey] {
				t.Fatalf("seed %d: year group double-booked at %s", seed, yearKey)
			}
			yearSlots[yearKey] = true

			teacherKey := fmt.Sprintf("%s/%s/%s", lesson.DayOfWeek, lesson.StartTime, lesson.Teacher)
			if teacherSlots[teacherKey] {
				t.Fatalf("seed %d: teacher double-booked at %s", seed, teacherKey)
			}
			teacherSlots[teacherKey] = true
		}
	}
}

func TestDemoAccounts(t *testing.T) {
	fixture := Demo(rand.New(rand.NewPCG(1, 2)))

	byName := make(map[string]User)
	for _, u := range fixture.Users {
		if _, dup := byName[u.Username]; dup {
			t.Fatalf("duplicate username %q", u.Username)
		}
		byName[u.Username] = u
	}

	tests := []struct {
		username string
		password string
		role     string
	}{
		{"admin", "adminpass", types.RoleAdmin},
		{"teacher1", "teacherpass", types.RoleTeacher},
		{"student1", "studentpass", types.RoleStudent},
	}
	for _, tt := range tests {
		u, ok := byName[tt.username]
		if !ok {
			t.Fatalf("missing account %q", tt.username)
		}
		if u.Password != tt.password || u.Role != tt.role {
			t.Fatalf("account %q = %+v", tt.username, u)
		}
	}
	if y := byName["student1"].YearGroup; y == nil || *y != 9 {
		t.Fatalf("student1 year group = %v, want 9", y)
	}
	for _, u := range fixture.Users {
		if u.Role == types.RoleTeacher && len(u.Subjects) != 2 {
			t.Fatalf("teacher %q has %d subjects, want 2", u.Username, len(u.Subjects))
		}
		if u.Role == types.RoleTeacher && u.Subjects[0] == u.Subjects[1] {
			t.Fatalf("teacher %q has duplicate subjects", u.Username)
		}
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
users:
  - username: head
    password: secret
    email: head@school.com
    role: admin
  - username: pupil
    password: secret
    email: pupil@school.com
    role: student
    year_group: 8
lessons:
  - subject: Art
    teacher: head
    classroom: Room 101
    day_of_week: tuesday
    start_time: "10:00"
    year_group: 8
`)
	fixture, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(fixture.Users) != 2 || len(fixture.Lessons) != 1 {
		t.Fatalf("unexpected fixture %+v", fixture)
	}
	if fixture.Users[1].YearGroup == nil || *fixture.Users[1].YearGroup != 8 {
		t.Fatalf("year group not decoded: %+v", fixture.Users[1])
	}
	if fixture.Lessons[0].DayOfWeek != "tuesday" || fixture.Lessons[0].StartTime != "10:00" {
		t.Fatalf("lesson not decoded: %+v", fixture.Lessons[0])
	}

	if _, err := Parse([]byte("users: [")); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}

type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(hashed), err
}

func TestSeederApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	lessons := memory.NewLessonRepository()
	timetables := services.NewTimetableService(memory.NewTimetableRepository(), lessons, users)
	seeder := NewSeeder(users, lessons, timetables, plainHasher{}, nil)

	fixture := Demo(rand.New(rand.NewPCG(3, 4)))
	result, err := seeder.Apply(ctx, fixture)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Users != len(fixture.Users) || result.Lessons != len(fixture.Lessons) || result.Timetables != len(fixture.Users) {
		t.Fatalf("Apply() = %+v, fixture has %d users and %d lessons", result, len(fixture.Users), len(fixture.Lessons))
	}

	again, err := seeder.Apply(ctx, fixture)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if again != (Result{}) {
		t.Fatalf("second Apply() = %+v, want nothing created", again)
	}

	student, err := users.GetByUsername(ctx, "student1")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte("studentpass")) != nil {
		t.Fatalf("student1 password not hashed from fixture")
	}
	view, err := timetables.Latest(ctx, student, student.ID)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	for _, lesson := range view.Lessons {
		if lesson.YearGroup != 9 {
			t.Fatalf("student1 timetable has year %d lesson", lesson.YearGroup)
		}
	}
}

func TestSeederRejectsStudentWithoutYear(t *testing.T) {
	users := memory.NewUserRepository()
	lessons := memory.NewLessonRepository()
	timetables := services.NewTimetableService(memory.NewTimetableRepository(), lessons, users)
	seeder := NewSeeder(users, lessons, timetables, plainHasher{}, nil)

	_, err := seeder.Apply(context.Background(), Fixture{Users: []User{{Username: "x", Password: "p", Email: "x@x", Role: types.RoleStudent}}})
	if err == nil {
		t.Fatalf("expected error for student without year group")
	}
}
