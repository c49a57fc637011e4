package models

import "database/sql"

// Wire representations pushed to clients. Keys are camelCase per the
// frontend contract; nullable columns flatten to pointer fields.

type PlayerView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	IsConnected bool    `json:"isConnected"`
	Score       float64 `json:"score"`
}

type GameWordView struct {
	ID       string  `json:"id"`
	PlayerID *string `json:"playerId"`
	Word     *string `json:"word"`
	Score    float64 `json:"score"`
	Duration float64 `json:"duration"`
}

type GameView struct {
	ID              string           `json:"id"`
	Status          string           `json:"status"`
	CurrentTurn     int              `json:"currentTurn"`
	CurrentPlayerID *string          `json:"currentPlayerId"`
	WinnerID        *string          `json:"winnerId"`
	LastWord        *string          `json:"lastWord"`
	TurnTimeLeft    int              `json:"turnTimeLeft"`
	Settings        GameSettings     `json:"settings"`
	Players         []PlayerView     `json:"players"`
	Words           []GameWordView   `json:"words"`
	Leaderboard     []LeaderboardRow `json:"leaderboard"`
}

// StringPtr converts a nullable column to a JSON-friendly pointer.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
