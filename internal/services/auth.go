package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoollms/apiserver/internal/store"
	"github.com/schoollms/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	Role      string
	YearGroup *int
	Subjects  []string
}

// AuthService owns credentials and sessions: registration, password
// checks with lockout, token issuance, current-user resolution and logout.
type AuthService struct {
	users      UserRepository
	timetables *TimetableService
	tokens     *TokenIssuer
	attempts   *LoginAttempts
	blacklist  *TokenBlacklist
	hashCost   int
	logger     *zap.Logger
}

// NewAuthService wires the auth use-cases. timetables may be nil, in which
// case registration does not create a timetable.
func NewAuthService(
	users UserRepository,
	timetables *TimetableService,
	tokens *TokenIssuer,
	attempts *LoginAttempts,
	blacklist *TokenBlacklist,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		timetables: timetables,
		tokens:     tokens,
		attempts:   attempts,
		blacklist:  blacklist,
		hashCost:   bcrypt.DefaultCost,
		logger:     logger,
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.hashCost = cost
	return s
}

// TokenTTL returns the lifetime of issued session tokens.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// Register validates input and stores a new user with a bcrypt hash.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Username == "" || in.Password == "" || in.Email == "" {
		return types.User{}, fmt.Errorf("%w: username, password and email are required", ErrInvalidInput)
	}
	if !types.ValidRole(in.Role) {
		return types.User{}, ErrInvalidRole
	}
	if in.Role == types.RoleStudent && (in.YearGroup == nil || *in.YearGroup < 1) {
		return types.User{}, ErrYearGroupRequired
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return types.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := types.User{
		Username:     in.Username,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: string(hashed),
	}
	switch in.Role {
	case types.RoleStudent:
		year := *in.YearGroup
		user.YearGroup = &year
	case types.RoleTeacher:
		user.Subjects = cleanSubjects(in.Subjects)
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrUsernameTaken
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.timetables != nil {
		if _, err := s.timetables.CreateCurrentWeek(ctx, created); err != nil {
			s.logger.Warn("failed to create timetable for new user",
				zap.String("username", created.Username), zap.Error(err))
		}
	}

	s.logger.Info("user registered", zap.String("username", created.Username), zap.String("role", created.Role))
	return created, nil
}

// Authenticate checks the password for username. Unknown users and wrong
// passwords both return ErrInvalidCredentials. A locked username returns
// ErrLoginLocked without looking at the password.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if !s.attempts.Begin(username) {
		s.logger.Warn("login rejected, account locked", zap.String("username", username))
		return types.User{}, ErrLoginLocked
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.attempts.Release(username)
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		failures := s.attempts.Fail(username)
		s.logger.Info("login failed", zap.String("username", username), zap.Int("failures", failures))
		return types.User{}, ErrInvalidCredentials
	}

	s.attempts.Succeed(username)
	return user, nil
}

// Login authenticates and issues a session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, types.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", types.User{}, err
	}
	token, _, err := s.IssueToken(user.Username, 0)
	if err != nil {
		return "", types.User{}, err
	}
	s.logger.Info("user logged in", zap.String("username", user.Username))
	return token, user, nil
}

// IssueToken signs a token for username. A non-positive ttl uses the
// configured default.
func (s *AuthService) IssueToken(username string, ttl time.Duration) (string, time.Time, error) {
	return s.tokens.Issue(username, ttl)
}

// ResolveCurrentUser maps a session token to its user.
func (s *AuthService) ResolveCurrentUser(ctx context.Context, token string) (types.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return types.User{}, ErrUnauthenticated
	}
	if s.blacklist.Contains(token) {
		return types.User{}, ErrUnauthenticated
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return types.User{}, ErrUnauthenticated
	}
	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Logout revokes token. Tokens that are already invalid need no revocation.
func (s *AuthService) Logout(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	s.blacklist.Add(token, claims.ExpiresAt.Time)
	s.logger.Info("user logged out", zap.String("username", claims.Subject))
}

// Unlock clears the failed-login counter for username. Admin only.
func (s *AuthService) Unlock(actor types.User, username string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	s.attempts.Reset(username)
	s.logger.Info("login lockout cleared", zap.String("username", username), zap.String("by", actor.Username))
	return nil
}

// HashPassword hashes password with the service's bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func cleanSubjects(subjects []string) []string {
	cleaned := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		if subject = strings.TrimSpace(subject); subject != "" {
			cleaned = append(cleaned, subject)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}
