package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/schoollms/apiserver/internal/storage"
	"github.com/schoollms/apiserver/internal/store/memory"
	"github.com/schoollms/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type publishedEvent struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, publishedEvent{channel: channel, data: data, attrs: attrs})
	return "msg", nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjects) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var objects []storage.ObjectInfo
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

type testEnv struct {
	clock      *fakeClock
	users      *memory.UserRepository
	lessonRepo *memory.LessonRepository
	auth       *AuthService
	attempts   *LoginAttempts
	lessons    *LessonService
	timetables *TimetableService
	events     *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	users := memory.NewUserRepository()
	lessonRepo := memory.NewLessonRepository()
	timetables := NewTimetableService(memory.NewTimetableRepository(), lessonRepo, users)
	timetables.now = clock.Now
	attempts := NewLoginAttempts(5)
	auth := NewAuthService(
		users,
		timetables,
		NewTokenIssuer([]byte("test-secret"), 30*time.Minute, clock.Now),
		attempts,
		NewTokenBlacklist(clock.Now),
		nil,
	).WithHashCost(bcrypt.MinCost)
	events := &fakePublisher{}
	lessons := NewLessonService(lessonRepo, timetables, events, nil)
	lessons.now = clock.Now

	return &testEnv{
		clock:      clock,
		users:      users,
		lessonRepo: lessonRepo,
		auth:       auth,
		attempts:   attempts,
		lessons:    lessons,
		timetables: timetables,
		events:     events,
	}
}

func (e *testEnv) register(t *testing.T, username, role string, yearGroup int) types.User {
	t.Helper()
	in := RegisterInput{
		Username: username,
		Password: username + "-pass",
		Email:    username + "@school.com",
		Role:     role,
	}
	if yearGroup > 0 {
		in.YearGroup = &yearGroup
	}
	user, err := e.auth.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return user
}

func (e *testEnv) addLesson(t *testing.T, actor types.User, teacher, day, start string, year int) types.Lesson {
	t.Helper()
	lesson, err := e.lessons.Create(context.Background(), actor, types.Lesson{
		Subject:   "Math",
		Teacher:   teacher,
		Classroom: "Room 101",
		DayOfWeek: day,
		StartTime: start,
		YearGroup: year,
	})
	if err != nil {
		t.Fatalf("Create lesson error = %v", err)
	}
	return lesson
}
