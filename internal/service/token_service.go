package service

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pomodoro/focus/internal/clock"
	apperrors "pomodoro/focus/internal/errors"
)

// TokenService mints and verifies the bearer tokens that identify a user.
// Accounts live elsewhere; the subject is taken as the user id verbatim.
type TokenService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	clock     clock.Clock
}

func NewTokenService(jwtSecret string, tokenTTL time.Duration, clk clock.Clock) *TokenService {
	if clk == nil {
		clk = clock.System()
	}
	return &TokenService{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		clock:     clk,
	}
}

type IssuedToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *TokenService) Issue(userID string) (*IssuedToken, *apperrors.APIError) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.BadRequest("invalid_subject", "user id is required")
	}

	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperrors.Internal("failed to sign token")
	}
	return &IssuedToken{Token: signed, UserID: userID, ExpiresAt: expiresAt}, nil
}

func (s *TokenService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.jwtSecret, nil
		},
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", apperrors.Unauthorized("invalid token")
	}
	if claims.Subject == "" {
		return "", apperrors.Unauthorized("invalid token subject")
	}
	return claims.Subject, nil
}
