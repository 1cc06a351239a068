package services

import "errors"

var (
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidRole        = errors.New("invalid role")
	ErrYearGroupRequired  = errors.New("year group is required for students")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrLoginLocked        = errors.New("too many failed login attempts")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrLessonConflict     = errors.New("lesson conflicts with an existing lesson")
	ErrStorageDisabled    = errors.New("object storage is not configured")
)
