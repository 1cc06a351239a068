package types

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for timetable week boundaries.
const DateLayout = "2006-01-02"

// Timetable is a user's weekly schedule. It stores lesson references
// rather than copies so that lesson edits are visible immediately.
type Timetable struct {
	// ID is the unique identifier of the timetable.
	ID int `json:"id" db:"id"`

	// UserID identifies the owner of the timetable.
	UserID int `json:"user_id" db:"user_id"`

	WeekStart Date `json:"week_start" db:"week_start"`
	WeekEnd   Date `json:"week_end" db:"week_end"`

	// LessonIDs is the ordered list of lessons on this timetable.
	LessonIDs []int `json:"lesson_ids" db:"lesson_ids"`
}

// HasLesson reports whether the lesson id is on the timetable.
func (t Timetable) HasLesson(id int) bool {
	for _, existing := range t.LessonIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// TimetableView is a timetable with its lesson references resolved.
type TimetableView struct {
	Timetable
	Lessons []Lesson `json:"lessons"`
}

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate truncates t to midnight UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a DateLayout string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", value)
	}
	return NewDate(t), nil
}

// String formats the date with DateLayout.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Equal reports whether both values denote the same day.
func (d Date) Equal(other Date) bool {
	return d.String() == other.String()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid date %s", data)
	}
	parsed, err := ParseDate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CurrentWeek returns the Monday of the week containing now, and that
// Monday plus six days.
func CurrentWeek(now time.Time) (Date, Date) {
	offset := (int(now.Weekday()) + 6) % 7
	start := NewDate(now.AddDate(0, 0, -offset))
	return start, NewDate(start.AddDate(0, 0, 6))
}
