package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
)

// TokenManager issues and validates short-lived admin session tokens so the
// long-lived admin token does not have to ride on every request.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Generate returns a signed session token and its expiry.
func (tm *TokenManager) Generate() (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(tm.ttl)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    "sitekeeper",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiry, nil
}

// Validate checks signature, expiry, and signing method.
func (tm *TokenManager) Validate(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperrors.New(apperrors.ErrCodeAuthRequired, "session expired")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeAuthRequired, "invalid session token")
	}
	if !token.Valid {
		return apperrors.New(apperrors.ErrCodeAuthRequired, "invalid session token")
	}
	return nil
}

// authorize accepts either the configured admin token or a valid session
// token in the Authorization header.
func (s *Server) authorize(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if header == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Auth.AdminToken)) == 1 {
		return true
	}
	return s.tokens.Validate(token) == nil
}

type loginRequest struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// handleLogin exchanges the admin token for a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondStatusError(w, status, err.Error())
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(s.cfg.Auth.AdminToken)) != 1 {
		s.recordAudit(r, "auth.login", "", false, "invalid admin token")
		respondError(w, apperrors.New(apperrors.ErrCodeAuthRequired, "invalid admin token"))
		return
	}
	token, expiry, err := s.tokens.Generate()
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.ErrCodeInternal, "issuing session token"))
		return
	}
	s.recordAudit(r, "auth.login", "", true, "")
	respondJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, ExpiresAt: expiry})
}
