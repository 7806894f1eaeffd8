package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"scams/internal/config"
	"scams/internal/database"
	"scams/internal/domain"
	"scams/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type SignUpRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserUpdate is what an administrator may change on an account. Nil fields are kept.
type UserUpdate struct {
	FullName   *string `json:"full_name"`
	Department *string `json:"department"`
	Role       *string `json:"role"`
	Status     *string `json:"status"`
}

type UserService struct {
	repo     domain.UserRepository
	sessions domain.SessionStore
	config   *config.Config
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, sessions domain.SessionStore, config *config.Config, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, sessions: sessions, config: config, now: time.Now, logger: logger}
}

const maxPasswordBytes = 72

// CheckPassword enforces the password policy and returns the first unmet rule.
func CheckPassword(password string) error {
	if len(password) < 8 {
		return invalid("Password must be at least 8 characters")
	}
	// bcrypt only hashes the first 72 bytes and refuses longer input.
	if len(password) > maxPasswordBytes {
		return invalid("Password must be at most 72 bytes")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return invalid("Password must contain an uppercase letter")
	case !lower:
		return invalid("Password must contain a lowercase letter")
	case !digit:
		return invalid("Password must contain a number")
	}
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	cost := s.config.Security.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// SignUp registers an employee account. Emails listed under admins become administrators.
func (s *UserService) SignUp(ctx context.Context, req SignUpRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		return nil, invalid("Full name is required")
	}
	if !emailRe.MatchString(req.Email) {
		return nil, invalid("Invalid email address")
	}
	if err := CheckPassword(req.Password); err != nil {
		return nil, err
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		FullName:       req.FullName,
		Email:          req.Email,
		Department:     strings.TrimSpace(req.Department),
		Role:           models.RoleEmployee,
		Status:         models.UserActive,
		HashedPassword: hashed,
	}
	if s.config.IsAdmin(req.Email) {
		user.Role = models.RoleAdmin
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("User signed up")
	return user, nil
}

// SignIn checks the credentials and opens a session.
func (s *UserService) SignIn(ctx context.Context, req SignInRequest) (*models.User, *models.Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	allowed, err := s.sessions.CheckRateLimit(ctx, "signin:"+email, models.SignInRateLimit, models.SignInRateWindow*time.Second)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sign-in rate limit check failed")
	} else if !allowed {
		return nil, nil, ErrRateLimited
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, nil, ErrInactiveAccount
	}

	now := s.now()
	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.config.API.Session.TTLSeconds) * time.Second),
	}
	if err := s.sessions.SetSession(ctx, session); err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

func (s *UserService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to its active user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Expired(s.now()) {
		return nil, ErrUnauthorized
	}
	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrInactiveAccount
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, actor *models.User, current, next string) error {
	if bcrypt.CompareHashAndPassword([]byte(actor.HashedPassword), []byte(current)) != nil {
		return invalid("Current password is incorrect")
	}
	if err := CheckPassword(next); err != nil {
		return err
	}
	hashed, err := s.hash(next)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, actor.ID, hashed); err != nil {
		return err
	}
	actor.HashedPassword = hashed
	return nil
}

func (s *UserService) ListUsers(ctx context.Context, actor *models.User) ([]*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.ListUsers(ctx)
}

// UpdateUser changes role, status or profile of an account. Admins cannot demote
// or deactivate themselves.
func (s *UserService) UpdateUser(ctx context.Context, actor *models.User, id int64, upd UserUpdate) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FullName != nil {
		if name := strings.TrimSpace(*upd.FullName); name != "" {
			user.FullName = name
		}
	}
	if upd.Department != nil {
		user.Department = strings.TrimSpace(*upd.Department)
	}
	if upd.Role != nil {
		if *upd.Role != models.RoleEmployee && *upd.Role != models.RoleAdmin {
			return nil, invalid("Unknown role %q", *upd.Role)
		}
		user.Role = *upd.Role
	}
	if upd.Status != nil {
		if *upd.Status != models.UserActive && *upd.Status != models.UserInactive {
			return nil, invalid("Unknown status %q", *upd.Status)
		}
		user.Status = *upd.Status
	}
	if user.ID == actor.ID && (!user.IsAdmin() || !user.IsActive()) {
		return nil, invalid("You cannot demote or deactivate your own account")
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", user.ID).Int64("admin_id", actor.ID).
		Str("role", user.Role).Str("status", user.Status).Msg("User updated")
	return user, nil
}
