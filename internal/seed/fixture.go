package seed

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/schoollms/apiserver/types"
	"gopkg.in/yaml.v3"
)

// Subjects taught at the demo school.
var Subjects = []string{
	"Math",
	"English",
	"Science",
	"History",
	"Geography",
	"Art",
	"Music",
	"Physical Education",
}

const (
	mockTeachers  = 5
	mockStudents  = 2
	firstHour     = 9
	lastHour      = 15
	minYearGroup  = 7
	maxYearGroup  = 11
	lessonChance  = 0.7
	mockPassword  = "password"
	firstRoomName = 101
	roomCount     = 20
)

// Fixture is a set of accounts and lessons to load.
type Fixture struct {
	Users   []User   `yaml:"users"`
	Lessons []Lesson `yaml:"lessons"`
}

// User is an account in a fixture. Passwords are plain text and hashed on load.
type User struct {
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Email     string   `yaml:"email"`
	Role      string   `yaml:"role"`
	YearGroup *int     `yaml:"year_group,omitempty"`
	Subjects  []string `yaml:"subjects,omitempty"`
}

// Lesson is a lesson in a fixture.
type Lesson struct {
	Subject   string `yaml:"subject"`
	Teacher   string `yaml:"teacher"`
	Classroom string `yaml:"classroom"`
	DayOfWeek string `yaml:"day_of_week"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time,omitempty"`
	YearGroup int    `yaml:"year_group"`
}

func (l Lesson) toLesson() types.Lesson {
	return types.Lesson{
		Subject:   l.Subject,
		Teacher:   l.Teacher,
		Classroom: l.Classroom,
		DayOfWeek: l.DayOfWeek,
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
		YearGroup: l.YearGroup,
	}
}

// LoadFile reads a YAML fixture from path.
func LoadFile(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, err
	}
	return Parse(data)
}

// Parse decodes a YAML fixture.
func Parse(data []byte) (Fixture, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return fixture, nil
}

// Demo builds the demo school: the three test accounts, mock teachers and
// students, and a week of lessons in which no year group is booked twice
// in the same slot.
func Demo(rng *rand.Rand) Fixture {
	year9 := 9
	fixture := Fixture{
		Users: []User{
			{Username: "admin", Password: "adminpass", Email: "admin@school.com", Role: types.RoleAdmin},
			{Username: "teacher1", Password: "teacherpass", Email: "teacher1@school.com", Role: types.RoleTeacher, Subjects: pickSubjects(rng, 2)},
			{Username: "student1", Password: "studentpass", Email: "student1@school.com", Role: types.RoleStudent, YearGroup: &year9},
		},
	}

	teachers := []string{"teacher1"}
	for i := 2; i <= mockTeachers; i++ {
		username := fmt.Sprintf("teacher%d", i)
		teachers = append(teachers, username)
		fixture.Users = append(fixture.Users, User{
			Username: username,
			Password: mockPassword,
			Email:    username + "@school.com",
			Role:     types.RoleTeacher,
			Subjects: pickSubjects(rng, 2),
		})
	}
	for i := 2; i <= mockStudents+1; i++ {
		username := fmt.Sprintf("student%d", i)
		year := minYearGroup + rng.IntN(maxYearGroup-minYearGroup+1)
		fixture.Users = append(fixture.Users, User{
			Username:  username,
			Password:  mockPassword,
			Email:     username + "@school.com",
			Role:      types.RoleStudent,
			YearGroup: &year,
		})
	}

	// booked[day][hour] holds the year groups already taught in that slot.
	booked := make(map[string]map[int]map[int]bool, len(types.SchoolDays))
	for _, teacher := range teachers {
		for _, day := range types.SchoolDays {
			if booked[day] == nil {
				booked[day] = make(map[int]map[int]bool)
			}
			for hour := firstHour; hour < lastHour; hour++ {
				if rng.Float64() >= lessonChance {
					continue
				}
				if booked[day][hour] == nil {
					booked[day][hour] = make(map[int]bool)
				}
				free := freeYears(booked[day][hour])
				if len(free) == 0 {
					continue
				}
				year := free[rng.IntN(len(free))]
				booked[day][hour][year] = true
				fixture.Lessons = append(fixture.Lessons, Lesson{
					Subject:   Subjects[rng.IntN(len(Subjects))],
					Teacher:   teacher,
					Classroom: fmt.Sprintf("Room %d", firstRoomName+rng.IntN(roomCount)),
					DayOfWeek: day,
					StartTime: types.FormatClock(hour * 60),
					EndTime:   types.FormatClock((hour + 1) * 60),
					YearGroup: year,
				})
			}
		}
	}
	return fixture
}

func freeYears(taken map[int]bool) []int {
	var free []int
	for year := minYearGroup; year <= maxYearGroup; year++ {
		if !taken[year] {
			free = append(free, year)
		}
	}
	return free
}

func pickSubjects(rng *rand.Rand, n int) []string {
	perm := rng.Perm(len(Subjects))
	picked := make([]string, 0, n)
	for _, i := range perm[:n] {
		picked = append(picked, Subjects[i])
	}
	return picked
}
