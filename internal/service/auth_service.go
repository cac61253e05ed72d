// Package service — AuthService handles login and JWT access token
// validation for the household API.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

// AuthService orchestrates authentication flows.
type AuthService struct {
	credentials port.CredentialStore
	store       port.LedgerStore
	jwtSecret   []byte
	accessTTL   time.Duration
	logger      *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(credentials port.CredentialStore, store port.LedgerStore, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		credentials: credentials,
		store:       store,
		jwtSecret:   []byte(jwtSecret),
		accessTTL:   accessTTL,
		logger:      logger,
	}
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if req.Email == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "email and password are required"}
	}

	cred, err := s.credentials.GetCredentialByEmail(ctx, req.Email)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			// Same response as a wrong password so account existence
			// doesn't leak.
			return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
		}
		return nil, fmt.Errorf("get credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: failed password attempt", zap.String("flatmate_id", cred.FlatmateID))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	flatmate, err := s.store.GetFlatmate(ctx, cred.FlatmateID)
	if err != nil {
		return nil, fmt.Errorf("get flatmate: %w", err)
	}
	if !flatmate.Active {
		s.logger.Warn("login: deactivated flatmate", zap.String("flatmate_id", flatmate.ID))
		return nil, &domain.ErrUnauthorized{Message: "account deactivated"}
	}

	accessToken, err := s.signAccessToken(flatmate.ID, flatmate.Role)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("flatmate logged in", zap.String("flatmate_id", flatmate.ID))

	return &domain.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		Flatmate:    flatmate,
	}, nil
}

// ============================================================
// ValidateToken — used by middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	return claims, nil
}

func (s *AuthService) signAccessToken(flatmateID string, role domain.Role) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:  flatmateID,
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "flatledger-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
