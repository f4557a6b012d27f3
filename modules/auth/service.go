package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mneiter/nuro/domain/user"
)

var (
	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when the email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when the password is too short.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when the password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrInactiveUser is returned when a deactivated account authenticates.
	ErrInactiveUser = errors.New("inactive user")
)

// Service handles account registration and token-based authentication.
type Service struct {
	repo   *UserRepository
	hasher *PasswordHasher
	jwt    *JWTManager
}

// NewService creates an auth service.
func NewService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
	}
}

// Register creates an account and returns an access token for it.
func (s *Service) Register(_ context.Context, email, password string) (string, *user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return "", nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return "", nil, ErrPasswordTooLong
	}

	exists, err := s.repo.EmailExists(email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return "", nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	u := &user.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(u); err != nil {
		return "", nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.jwt.Generate(u.ID, u.Email)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Login authenticates credentials and returns an access token.
func (s *Service) Login(_ context.Context, email, password string) (string, error) {
	u, err := s.repo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	if !u.IsActive {
		return "", ErrInactiveUser
	}
	return s.jwt.Generate(u.ID, u.Email)
}

// ValidateToken resolves a bearer token to the authenticated identity.
// The user must still exist and be active: token validity alone is not
// enough to act as an owner.
func (s *Service) ValidateToken(_ context.Context, token string) (*user.Claims, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}
	return claims, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(_ context.Context, userID string) (*user.User, error) {
	return s.repo.FindByID(userID)
}

// TokenTTLSeconds returns the access token lifetime in seconds.
func (s *Service) TokenTTLSeconds() int64 {
	return int64(s.jwt.TokenTTL().Seconds())
}
