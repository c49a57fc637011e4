package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playshiri/backend/internal/config"
	"github.com/playshiri/backend/internal/game"
	"github.com/playshiri/backend/internal/session"
)

// ensureSession returns the caller's session key, issuing a fresh signed
// cookie when none (or a tampered one) is present.
func ensureSession(c *gin.Context, cfg *config.Config) (string, error) {
	if cookie, err := c.Cookie(session.CookieName); err == nil {
		if key, err := session.Verify(cfg.JWTSecret, cookie); err == nil {
			return key, nil
		}
	}
	token, key, err := session.Issue(cfg.JWTSecret)
	if err != nil {
		return "", err
	}
	secure := cfg.Environment == "production"
	c.SetCookie(session.CookieName, token, 60*60*24*30, "/", "", secure, true)
	return key, nil
}

// requireSession is like ensureSession but rejects callers without a valid
// cookie instead of minting one.
func requireSession(c *gin.Context, cfg *config.Config) (string, bool) {
	cookie, err := c.Cookie(session.CookieName)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "session cookie required"})
		return "", false
	}
	key, err := session.Verify(cfg.JWTSecret, cookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid session cookie"})
		return "", false
	}
	return key, true
}

// respondError maps a game error onto the HTTP contract. Rule violations
// are part of normal play and only logged in debug mode; everything else is
// logged with the game id and a hashed session key.
func respondError(c *gin.Context, cfg *config.Config, err error, gameID, sessionKey string) {
	kind := game.KindOf(err)
	detail := game.Detail(err)

	if kind == game.KindInvalid {
		if cfg.Debug {
			log.Printf("[API] invalid request for game %s (session %s): %s", gameID, session.Digest(sessionKey), detail)
		}
	} else {
		log.Printf("[API] %s error for game %s (session %s): %v", kind, gameID, session.Digest(sessionKey), err)
	}

	switch kind {
	case game.KindInvalid:
		c.JSON(http.StatusBadRequest, gin.H{"detail": detail})
	case game.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"detail": detail})
	case game.KindRetriable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "temporarily unavailable, try again"})
	case game.KindUnauthorized:
		c.JSON(http.StatusForbidden, gin.H{"detail": detail})
	case game.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"detail": detail})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}
