// Package auth implements user registration, credential checks, and the
// HS256 bearer tokens that identify callers to the API. The store is behind
// the Registry interface so the same service runs against Postgres, the
// JSON user file, or the in-memory registry used in tests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lifelane/lifelane/internal/model"
)

var (
	// ErrEmailTaken reports a duplicate registration.
	ErrEmailTaken = errors.New("email already exists")
	// ErrUserNotFound reports an unknown email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// login responses do not reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingFields reports a registration whose name, email, or password
	// is empty after trimming.
	ErrMissingFields = errors.New("name, email, and password are required")
	// ErrInvalidToken reports a missing, malformed, or expired bearer token.
	ErrInvalidToken = errors.New("invalid token")
)

// Registry persists user accounts.
type Registry interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	SetAdmin(ctx context.Context, email string, admin bool) error
}

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID string
	Email  string
	Admin  bool
}

// Service issues and verifies tokens and manages accounts.
type Service struct {
	registry Registry
	secret   []byte
	tokenTTL time.Duration
}

// New constructs a Service.
func New(registry Registry, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{registry: registry, secret: secret, tokenTTL: tokenTTL}
}

// Register validates input, hashes the password with bcrypt, and stores the
// account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.registry.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.registry.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	claims := jwt.MapClaims{
		"id":    user.ID,
		"email": user.Email,
		"admin": user.Admin,
		"exp":   time.Now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Promote sets the admin flag on an existing account.
func (s *Service) Promote(ctx context.Context, email string) error {
	return s.registry.SetAdmin(ctx, strings.TrimSpace(strings.ToLower(email)), true)
}

// Parse verifies a compact token string and returns the caller identity.
func (s *Service) Parse(tokenString string) (*Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	admin, _ := claims["admin"].(bool)
	if id == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: id, Email: email, Admin: admin}, nil
}

// FromHeader extracts and verifies a "Bearer <token>" Authorization header.
func (s *Service) FromHeader(header string) (*Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrInvalidToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, ErrInvalidToken
	}
	return s.Parse(parts[1])
}
