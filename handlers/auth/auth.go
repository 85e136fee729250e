// Package auth issues and checks the bearer tokens that bind a client to
// its design session.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const tokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

var (
	mu        sync.RWMutex
	jwtSecret []byte
)

// SessionClaims are the claims of a session token. Subject is the session ID.
type SessionClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
}

// InitAuth sets the signing key. An empty secret gets a random key, so tokens
// only survive until the process restarts.
func InitAuth(secret string) {
	mu.Lock()
	defer mu.Unlock()

	if secret != "" {
		jwtSecret = []byte(secret)
		return
	}
	logrus.Warn("SESSION_SECRET is not set. Using a random key; session tokens will not survive a restart.")
	jwtSecret = make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		logrus.Fatalf("Failed to generate session secret: %v", err)
	}
}

func secret() []byte {
	mu.RLock()
	defer mu.RUnlock()
	return jwtSecret
}

// CreateToken signs a token for a session.
func CreateToken(sessionID, kind string) (string, error) {
	key := secret()
	if len(key) == 0 {
		return "", fmt.Errorf("auth not initialized")
	}
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Kind: kind,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ParseToken verifies a token and returns its claims.
func ParseToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Authorize checks that token grants access to sessionID.
func Authorize(token, sessionID string) error {
	claims, err := ParseToken(token)
	if err != nil {
		return err
	}
	if claims.Subject != sessionID {
		return fmt.Errorf("%w: token is for another session", ErrInvalidToken)
	}
	return nil
}
