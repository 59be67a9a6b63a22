// Package services – AuthService
//
// This file implements the AuthService, which owns user registration and
// login. Passwords are hashed with bcrypt before storage; successful logins
// are answered with a signed JWT carrying the user ID as subject. Token
// verification for inbound requests lives in the HTTP middleware; this
// service only issues tokens.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-chirper-backend/internal/domain"
	"github.com/tbourn/go-chirper-backend/internal/repo"
)

// AuthService provides registration and login on top of the users table.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// JWTSecret signs issued tokens (HMAC-SHA256).
	JWTSecret []byte
	// TokenTTL bounds the validity of issued tokens.
	TokenTTL time.Duration

	// MinPasswordLen rejects trivially short passwords. Zero means 8.
	MinPasswordLen int
}

// Register creates a new account with a bcrypt-hashed password.
//
// Validation:
//   - username, email, and password must be non-empty after trimming;
//     password must meet the minimum length. Violations return
//     ErrInvalidCredentials.
//   - A username or email already in use returns ErrUserExists (backed by
//     the unique indexes on the users table).
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	minLen := s.MinPasswordLen
	if minLen <= 0 {
		minLen = 8
	}
	if username == "" || email == "" || utf8.RuneCountInString(password) < minLen {
		return nil, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(ctx, s.DB, username, email, string(hash))
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// Login verifies the credentials and returns a signed bearer token.
//
// Unknown usernames and wrong passwords are indistinguishable to the caller:
// both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := repo.GetUserByUsername(ctx, s.DB, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.JWTSecret)
}
