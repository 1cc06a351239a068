package types

import "time"

// Lesson event types.
const (
	LessonCreated = "lesson.created"
	LessonUpdated = "lesson.updated"
	LessonDeleted = "lesson.deleted"
)

// LessonEvent is published whenever a lesson changes.
type LessonEvent struct {
	Type       string    `json:"type"`
	Lesson     Lesson    `json:"lesson"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}
