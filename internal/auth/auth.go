// Package auth issues and verifies bearer tokens for the game API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/domain"
)

// UserStore is the slice of the user directory auth needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	UserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Service registers accounts and issues signed tokens.
type Service struct {
	users  UserStore
	cfg    *config.AuthConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new auth service.
func NewService(users UserStore, cfg *config.AuthConfig, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the payload for credential login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

func (r RegisterRequest) validate() error {
	if len(r.Username) < 3 || len(r.Username) > 50 {
		return fmt.Errorf("%w: username must be 3-50 characters", domain.ErrInvalidRequest)
	}
	if len(r.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", domain.ErrInvalidRequest)
	}
	if len(r.Name) < 2 || len(r.Name) > 50 {
		return fmt.Errorf("%w: name must be 2-50 characters", domain.ErrInvalidRequest)
	}
	return nil
}

// Register creates an account with a bcrypt-hashed password and returns a
// token for the new user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "username", user.Username)
	return s.issueToken(user.Username)
}

// Login verifies credentials and returns a fresh token. Bad username and bad
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.users.UserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issueToken(user.Username)
}

func (s *Service) issueToken(username string) (*TokenResponse, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &TokenResponse{Token: signed}, nil
}

// VerifyToken parses and validates a bearer token, returning the username it
// was issued to.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", domain.ErrInvalidToken
	}
	return claims.Subject, nil
}
