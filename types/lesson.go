package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ClockLayout is the wire format for lesson start and end times.
const ClockLayout = "15:04"

// SchoolDays are the days a lesson may be scheduled on, in week order.
var SchoolDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// Lesson is a single weekly slot taught by one teacher to one year group.
type Lesson struct {
	// ID is the unique identifier of the lesson.
	ID int `json:"id" db:"id"`

	Subject   string `json:"subject" db:"subject"`
	Teacher   string `json:"teacher" db:"teacher"`
	Classroom string `json:"classroom" db:"classroom"`

	// DayOfWeek is one of SchoolDays.
	DayOfWeek string `json:"day_of_week" db:"day_of_week"`

	// StartTime and EndTime use ClockLayout ("09:00").
	StartTime string `json:"start_time" db:"start_time"`
	EndTime   string `json:"end_time" db:"end_time"`

	YearGroup int `json:"year_group" db:"year_group"`
}

// DayIndex returns the position of day in SchoolDays. Matching is case-insensitive.
func DayIndex(day string) (int, bool) {
	for i, d := range SchoolDays {
		if strings.EqualFold(d, strings.TrimSpace(day)) {
			return i, true
		}
	}
	return 0, false
}

// NormalizeDay returns the canonical spelling of day.
func NormalizeDay(day string) (string, bool) {
	i, ok := DayIndex(day)
	if !ok {
		return "", false
	}
	return SchoolDays[i], true
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes since midnight into "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Normalize trims fields, canonicalises the day and fills a missing end
// time with start plus one hour. It returns an error describing the first
// invalid field.
func (l Lesson) Normalize() (Lesson, error) {
	l.Subject = strings.TrimSpace(l.Subject)
	l.Teacher = strings.TrimSpace(l.Teacher)
	l.Classroom = strings.TrimSpace(l.Classroom)
	switch {
	case l.Subject == "":
		return Lesson{}, errors.New("subject is required")
	case l.Teacher == "":
		return Lesson{}, errors.New("teacher is required")
	case l.Classroom == "":
		return Lesson{}, errors.New("classroom is required")
	}

	day, ok := NormalizeDay(l.DayOfWeek)
	if !ok {
		return Lesson{}, fmt.Errorf("invalid day of week %q", l.DayOfWeek)
	}
	l.DayOfWeek = day

	start, err := ParseClock(l.StartTime)
	if err != nil {
		return Lesson{}, err
	}
	end := start + 60
	if strings.TrimSpace(l.EndTime) != "" {
		end, err = ParseClock(l.EndTime)
		if err != nil {
			return Lesson{}, err
		}
	}
	if end <= start {
		return Lesson{}, errors.New("end time must be after start time")
	}
	if end > 24*60 {
		return Lesson{}, errors.New("lesson must end before midnight")
	}
	l.StartTime = FormatClock(start)
	l.EndTime = FormatClock(end)

	if l.YearGroup < 1 {
		return Lesson{}, errors.New("year group must be positive")
	}
	return l, nil
}

// Overlaps reports whether both lessons are taught by the same teacher on
// the same day at overlapping times. Both lessons must be normalized.
func (l Lesson) Overlaps(other Lesson) bool {
	if l.Teacher != other.Teacher || l.DayOfWeek != other.DayOfWeek {
		return false
	}
	aStart, _ := ParseClock(l.StartTime)
	aEnd, _ := ParseClock(l.EndTime)
	bStart, _ := ParseClock(other.StartTime)
	bEnd, _ := ParseClock(other.EndTime)
	return aStart < bEnd && bStart < aEnd
}

// SortLessons orders lessons by weekday, then start time, then id.
func SortLessons(lessons []Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		di, _ := DayIndex(lessons[i].DayOfWeek)
		dj, _ := DayIndex(lessons[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		if lessons[i].StartTime != lessons[j].StartTime {
			return lessons[i].StartTime < lessons[j].StartTime
		}
		return lessons[i].ID < lessons[j].ID
	})
}

// GroupByDay buckets sorted lessons under each school day.
func GroupByDay(lessons []Lesson) map[string][]Lesson {
	grouped := make(map[string][]Lesson, len(SchoolDays))
	for _, day := range SchoolDays {
		grouped[day] = nil
	}
	for _, lesson := range lessons {
		grouped[lesson.DayOfWeek] = append(grouped[lesson.DayOfWeek], lesson)
	}
	return grouped
}
