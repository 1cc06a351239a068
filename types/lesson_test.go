package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLessonNormalize(t *testing.T) {
	lesson, err := Lesson{
		Subject:   " Math ",
		Teacher:   "teacher1",
		Classroom: "Room 101",
		DayOfWeek: "monday",
		StartTime: "9:00",
		YearGroup: 9,
	}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if lesson.Subject != "Math" {
		t.Fatalf("Subject = %q, want %q", lesson.Subject, "Math")
	}
	if lesson.DayOfWeek != "Monday" {
		t.Fatalf("DayOfWeek = %q, want Monday", lesson.DayOfWeek)
	}
	if lesson.StartTime != "09:00" || lesson.EndTime != "10:00" {
		t.Fatalf("times = %s-%s, want 09:00-10:00", lesson.StartTime, lesson.EndTime)
	}
}

func TestLessonNormalizeRejectsInvalid(t *testing.T) {
	valid := Lesson{Subject: "Art", Teacher: "t", Classroom: "R1", DayOfWeek: "Friday", StartTime: "10:00", YearGroup: 8}
	tests := []struct {
		name   string
		mutate func(*Lesson)
	}{
		{name: "missing subject", mutate: func(l *Lesson) { l.Subject = " " }},
		{name: "missing teacher", mutate: func(l *Lesson) { l.Teacher = "" }},
		{name: "missing classroom", mutate: func(l *Lesson) { l.Classroom = "" }},
		{name: "weekend", mutate: func(l *Lesson) { l.DayOfWeek = "Saturday" }},
		{name: "bad start", mutate: func(l *Lesson) { l.StartTime = "25:00" }},
		{name: "end before start", mutate: func(l *Lesson) { l.EndTime = "09:30" }},
		{name: "zero year group", mutate: func(l *Lesson) { l.YearGroup = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lesson := valid
			tt.mutate(&lesson)
			if _, err := lesson.Normalize(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLessonOverlaps(t *testing.T) {
	base := Lesson{Teacher: "t1", DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00"}
	tests := []struct {
		name  string
		other Lesson
		want  bool
	}{
		{name: "same slot", other: base, want: true},
		{name: "partial overlap", other: Lesson{Teacher: "t1", DayOfWeek: "Monday", StartTime: "09:30", EndTime: "10:30"}, want: true},
		{name: "back to back", other: Lesson{Teacher: "t1", DayOfWeek: "Monday", StartTime: "10:00", EndTime: "11:00"}, want: false},
		{name: "other teacher", other: Lesson{Teacher: "t2", DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00"}, want: false},
		{name: "other day", other: Lesson{Teacher: "t1", DayOfWeek: "Tuesday", StartTime: "09:00", EndTime: "10:00"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Fatalf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortLessons(t *testing.T) {
	lessons := []Lesson{
		{ID: 1, DayOfWeek: "Friday", StartTime: "09:00"},
		{ID: 2, DayOfWeek: "Monday", StartTime: "11:00"},
		{ID: 3, DayOfWeek: "Monday", StartTime: "09:00"},
	}
	SortLessons(lessons)
	want := []int{3, 2, 1}
	for i, id := range want {
		if lessons[i].ID != id {
			t.Fatalf("lessons[%d].ID = %d, want %d", i, lessons[i].ID, id)
		}
	}
}

func TestUserCanSee(t *testing.T) {
	year9 := 9
	lesson := Lesson{Teacher: "teacher1", YearGroup: 9}
	tests := []struct {
		name string
		user User
		want bool
	}{
		{name: "admin", user: User{Role: RoleAdmin}, want: true},
		{name: "own teacher", user: User{Role: RoleTeacher, Username: "teacher1"}, want: true},
		{name: "other teacher", user: User{Role: RoleTeacher, Username: "teacher2"}, want: false},
		{name: "student same year", user: User{Role: RoleStudent, YearGroup: &year9}, want: true},
		{name: "student without year", user: User{Role: RoleStudent}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.CanSee(lesson); got != tt.want {
				t.Fatalf("CanSee() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCurrentWeekAndDateJSON(t *testing.T) {
	wednesday := time.Date(2026, time.October, 14, 15, 4, 0, 0, time.UTC)
	start, end := CurrentWeek(wednesday)
	if start.String() != "2026-10-12" || end.String() != "2026-10-18" {
		t.Fatalf("CurrentWeek() = %s..%s", start, end)
	}

	data, err := json.Marshal(Timetable{WeekStart: start, WeekEnd: end})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded Timetable
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !decoded.WeekStart.Equal(start) {
		t.Fatalf("WeekStart = %s, want %s", decoded.WeekStart, start)
	}
}
