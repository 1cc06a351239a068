package server

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/schoollms/apiserver/config"
	"github.com/schoollms/apiserver/internal/db"
	"github.com/schoollms/apiserver/internal/seed"
	"github.com/schoollms/apiserver/internal/services"
	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/internal/store/memory"
	"go.uber.org/zap"
)

// Repositories is the persistence layer the services run on.
type Repositories struct {
	Users      services.UserRepository
	Lessons    services.LessonRepository
	Timetables services.TimetableRepository
}

// MemoryRepositories returns empty in-process repositories.
func MemoryRepositories() Repositories {
	return Repositories{
		Users:      memory.NewUserRepository(),
		Lessons:    memory.NewLessonRepository(),
		Timetables: memory.NewTimetableRepository(),
	}
}

// OpenRepositories returns the repositories selected by cfg.StoreDriver.
// The *sql.DB is nil for the memory driver.
func OpenRepositories(ctx context.Context, cfg config.Config) (Repositories, *sql.DB, error) {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return MemoryRepositories(), nil, nil
	}
	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return Repositories{}, nil, fmt.Errorf("open database: %w", err)
	}
	return Repositories{
		Users:      store.NewUserRepository(dbConn),
		Lessons:    store.NewLessonRepository(dbConn),
		Timetables: store.NewTimetableRepository(dbConn),
	}, dbConn, nil
}

// App holds the wired services.
type App struct {
	Users      *services.UserService
	Auth       *services.AuthService
	Lessons    *services.LessonService
	Timetables *services.TimetableService
	Exports    *services.ExportService
	Repos      Repositories
}

// Options carries the optional collaborators of an App.
type Options struct {
	// Events receives lesson events. Nil disables publishing.
	Events services.EventPublisher
	// Objects stores timetable exports. Nil disables exports.
	Objects services.ObjectStore
	// Now overrides the clock used for tokens and the blacklist.
	Now func() time.Time
	// HashCost overrides the bcrypt cost.
	HashCost int
}

// NewApp wires the services over repos.
func NewApp(cfg config.Config, repos Repositories, opts Options, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	timetables := services.NewTimetableService(repos.Timetables, repos.Lessons, repos.Users)
	auth := services.NewAuthService(
		repos.Users,
		timetables,
		services.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL, now),
		services.NewLoginAttempts(cfg.LoginMaxAttempts),
		services.NewTokenBlacklist(now),
		logger.Named("auth"),
	)
	if opts.HashCost > 0 {
		auth.WithHashCost(opts.HashCost)
	}

	return &App{
		Users:      services.NewUserService(repos.Users),
		Auth:       auth,
		Lessons:    services.NewLessonService(repos.Lessons, timetables, opts.Events, logger.Named("lessons")),
		Timetables: timetables,
		Exports:    services.NewExportService(timetables, opts.Objects),
		Repos:      repos,
	}
}

// Seed loads cfg.SeedFile, or the built-in demo school when it is unset.
func (a *App) Seed(ctx context.Context, cfg config.Config, logger *zap.Logger) (seed.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fixture, err := loadFixture(cfg)
	if err != nil {
		return seed.Result{}, err
	}
	seeder := seed.NewSeeder(a.Repos.Users, a.Repos.Lessons, a.Timetables, a.Auth, logger.Named("seed"))
	return seeder.Apply(ctx, fixture)
}

func loadFixture(cfg config.Config) (seed.Fixture, error) {
	if cfg.SeedFile != "" {
		fixture, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return seed.Fixture{}, fmt.Errorf("load seed file: %w", err)
		}
		return fixture, nil
	}
	now := uint64(time.Now().UnixNano())
	return seed.Demo(rand.New(rand.NewPCG(now, now>>1))), nil
}
