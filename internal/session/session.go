// Package session issues and verifies the signed session cookie. The cookie
// wraps an opaque session key in a JWT so tampered cookies are rejected
// before any storage lookup.
package session

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/blake2b"

	"github.com/playshiri/backend/internal/game"
)

// CookieName is the session cookie issued to browsers.
const CookieName = "shiritori_session"

// cookieTTL keeps a session valid well past any single game.
const cookieTTL = 30 * 24 * time.Hour

// Issue mints a fresh session key and the signed cookie value carrying it.
func Issue(secret string) (token, sessionKey string, err error) {
	sessionKey = game.NewEntityID()
	claims := jwt.RegisteredClaims{
		Subject:   sessionKey,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(cookieTTL)),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}
	return token, sessionKey, nil
}

// Verify checks the cookie signature and returns the session key inside.
func Verify(secret, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid session token")
	}
	return claims.Subject, nil
}

// Digest returns a short hash of the session key, safe to log.
func Digest(sessionKey string) string {
	sum := blake2b.Sum256([]byte(sessionKey))
	return hex.EncodeToString(sum[:4])
}
