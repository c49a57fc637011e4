package game

import (
	"crypto/rand"
	"math/big"
)

const (
	gameIDLen   = 5
	entityIDLen = 21

	gameIDCharset   = "abcdefghijklmnopqrstuvwxyz0123456789"
	entityIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

func randomFrom(charset string, length int) string {
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// NewGameID generates a short human-shareable game id.
func NewGameID() string {
	return randomFrom(gameIDCharset, gameIDLen)
}

// NewEntityID generates a 21-char nano-id for players, words and settings.
func NewEntityID() string {
	return randomFrom(entityIDCharset, entityIDLen)
}

// RandomLetter returns a single lowercase letter used to seed last_word.
func RandomLetter() string {
	return randomFrom("abcdefghijklmnopqrstuvwxyz", 1)
}
