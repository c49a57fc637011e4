package models

import (
	"database/sql"
	"time"
)

// Game status values
const (
	StatusWaiting  = "WAITING"
	StatusPlaying  = "PLAYING"
	StatusFinished = "FINISHED"
)

// Player types
const (
	PlayerHost      = "HOST"
	PlayerHuman     = "HUMAN"
	PlayerBot       = "BOT"
	PlayerSpectator = "SPECTATOR"
	PlayerWinner    = "WINNER"
)

// Game is one shiritori session. The id is a short shareable 5-char nano-id.
type Game struct {
	ID              string         `db:"id" json:"id"`
	Status          string         `db:"status" json:"status"`
	CurrentTurn     int            `db:"current_turn" json:"currentTurn"`
	CurrentPlayerID sql.NullString `db:"current_player_id" json:"-"`
	WinnerID        sql.NullString `db:"winner_id" json:"-"`
	SettingsID      string         `db:"settings_id" json:"-"`
	TurnTimeLeft    int            `db:"turn_time_left" json:"turnTimeLeft"`
	LastWord        sql.NullString `db:"last_word" json:"-"`
	TaskID          sql.NullString `db:"task_id" json:"-"`
	Version         int            `db:"version" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

// GameSettings holds the per-game tunables.
type GameSettings struct {
	ID         string `db:"id" json:"-"`
	Locale     string `db:"locale" json:"locale"`
	WordLength int    `db:"word_length" json:"wordLength"`
	TurnTime   int    `db:"turn_time" json:"turnTime"`
	MaxTurns   int    `db:"max_turns" json:"maxTurns"`
}

// DefaultSettings returns the out-of-the-box game settings.
func DefaultSettings() GameSettings {
	return GameSettings{
		Locale:     "en",
		WordLength: 3,
		TurnTime:   60,
		MaxTurns:   10,
	}
}

// Player is a participant of a single game.
type Player struct {
	ID          string         `db:"id" json:"id"`
	GameID      sql.NullString `db:"game_id" json:"-"`
	Name        string         `db:"name" json:"name"`
	Type        string         `db:"type" json:"type"`
	SessionKey  sql.NullString `db:"session_key" json:"-"`
	IsConnected bool           `db:"is_connected" json:"isConnected"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// IsSpectator reports whether the player only watches the game.
func (p *Player) IsSpectator() bool {
	return p.Type == PlayerSpectator
}

// GameWord records one move. A NULL word encodes a timed-out turn.
type GameWord struct {
	ID        string         `db:"id" json:"id"`
	GameID    string         `db:"game_id" json:"-"`
	PlayerID  sql.NullString `db:"player_id" json:"playerId"`
	Word      sql.NullString `db:"word" json:"-"`
	Score     float64        `db:"score" json:"score"`
	Duration  float64        `db:"duration" json:"duration"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// Word is a dictionary entry.
type Word struct {
	ID     int64  `db:"id" json:"id"`
	Word   string `db:"word" json:"word"`
	Locale string `db:"locale" json:"locale"`
}

// LeaderboardRow is a player with the running sum of their word scores.
type LeaderboardRow struct {
	PlayerID  string    `db:"player_id" json:"playerId"`
	Name      string    `db:"name" json:"name"`
	Score     float64   `db:"score" json:"score"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}
