package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"lunchly-backend/internal/models"
	"lunchly-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// Claims identifies the caller behind a validated token
type Claims struct {
	UserID    string
	SessionID string
}

// AuthResult is returned by sign up and sign in
type AuthResult struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService handles accounts, tokens and sessions.
// A token is only honoured while its session exists.
type AuthService struct {
	accounts  AccountStore
	sessions  SessionStore
	jwtSecret string
	ttl       time.Duration
	hashCost  int
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(accounts AccountStore, sessions SessionStore, jwtSecret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AuthService{
		accounts:  accounts,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

func normalizeCredentials(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return email, nil
}

// SignUp creates an account and opens a session for it
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeCredentials(email, password)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	log.Info().Str("user_id", account.ID).Msg("Account created")
	return s.openSession(ctx, account.ID)
}

// SignIn verifies credentials and opens a new session
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeCredentials(email, password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(ctx, account.ID)
}

// SignOut ends a session; its tokens stop working immediately
func (s *AuthService) SignOut(ctx context.Context, sid string) error {
	if err := s.sessions.Delete(ctx, sid); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

func (s *AuthService) openSession(ctx context.Context, userID string) (*AuthResult, error) {
	sid := uuid.New().String()
	token, expiresAt, err := s.GenerateJWT(userID, sid)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sid, userID, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	return &AuthResult{Token: token, UserID: userID, ExpiresAt: expiresAt}, nil
}

// GenerateJWT generates a JWT token for a user session
func (s *AuthService) GenerateJWT(userID, sid string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"user_id": userID,
		"sid":     sid,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateJWT checks the signature and expiry of a token and returns its claims
func (s *AuthService) ValidateJWT(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("user_id not found in token")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return nil, fmt.Errorf("sid not found in token")
	}

	return &Claims{UserID: userID, SessionID: sid}, nil
}

// Authenticate validates a token and requires its session to still be open
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token required", ErrUnauthorized)
	}
	claims, err := s.ValidateJWT(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	owner, err := s.sessions.UserID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: session ended", ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if owner != claims.UserID {
		return nil, fmt.Errorf("%w: session owner mismatch", ErrUnauthorized)
	}
	return claims, nil
}
