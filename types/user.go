package types

import (
	"strings"
	"time"
)

// Roles gate what a user may do with lessons and timetables.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User represents an account in the system.
// It contains identity, role, and the school metadata the role needs.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// Role is one of "admin", "teacher" or "student".
	Role string `json:"role" db:"role"`

	// YearGroup is set for students only.
	YearGroup *int `json:"year_group,omitempty" db:"year_group"`

	// Subjects lists what a teacher teaches. Empty for other roles.
	Subjects []string `json:"subjects,omitempty" db:"subjects"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool { return strings.EqualFold(u.Role, RoleAdmin) }

// IsTeacher reports whether the user has the teacher role.
func (u User) IsTeacher() bool { return strings.EqualFold(u.Role, RoleTeacher) }

// IsStudent reports whether the user has the student role.
func (u User) IsStudent() bool { return strings.EqualFold(u.Role, RoleStudent) }

// CanManageLessons reports whether the user may create or edit lessons.
func (u User) CanManageLessons() bool { return u.IsAdmin() || u.IsTeacher() }

// CanSee reports whether the lesson is visible to the user: admins see
// everything, teachers see what they teach and students see their year group.
func (u User) CanSee(lesson Lesson) bool {
	switch {
	case u.IsAdmin():
		return true
	case u.IsTeacher():
		return lesson.Teacher == u.Username
	case u.IsStudent():
		return u.YearGroup != nil && lesson.YearGroup == *u.YearGroup
	default:
		return false
	}
}
