package game

import (
	"context"

	"github.com/playshiri/backend/internal/models"
)

// Tx is the view of a single game inside one serializable transaction.
// All reads and writes refer to the game the transaction was opened for.
type Tx interface {
	// Game returns the locked game row.
	Game() (*models.Game, error)
	Settings() (*models.GameSettings, error)
	UpdateSettings(s *models.GameSettings) error

	// Players returns the game's players ordered by created_at ascending.
	Players(excludeSpectators bool) ([]*models.Player, error)
	PlayerBySessionKey(sessionKey string) (*models.Player, error)
	CreatePlayer(p *models.Player) error
	UpdatePlayer(p *models.Player) error
	DeletePlayer(playerID string) error

	Words() ([]*models.GameWord, error)
	CreateWord(w *models.GameWord) error
	DeleteWords() error

	// Leaderboard orders players by descending score sum, ties broken by
	// earliest created_at. Spectators are excluded.
	Leaderboard() ([]models.LeaderboardRow, error)

	UpdateGame(g *models.Game) error
}

// Store persists games and serializes their mutations.
//
// Mutate runs fn inside a serializable transaction scoped to one game.
// Constraint violations surface as KindConflict, lost updates and lock
// contention as KindRetriable.
type Store interface {
	CreateGame(ctx context.Context, g *models.Game, s *models.GameSettings) error
	GetGame(ctx context.Context, gameID string) (*models.Game, error)
	View(ctx context.Context, gameID string) (*models.GameView, error)
	Mutate(ctx context.Context, gameID string, fn func(tx Tx) error) error

	// ClaimTask CASes game.task_id from NULL to taskID; false means another
	// driver owns the game.
	ClaimTask(ctx context.Context, gameID, taskID string) (bool, error)
	// ReleaseTask CASes game.task_id from taskID back to NULL.
	ReleaseTask(ctx context.Context, gameID, taskID string) error

	// PlayingGameIDs lists the games currently in the PLAYING state.
	PlayingGameIDs(ctx context.Context) ([]string, error)
	// ResetTask unconditionally clears the game's task_id. Only safe while no
	// driver for the game can be alive, i.e. during the boot sweep.
	ResetTask(ctx context.Context, gameID string) error
}

// Dictionary answers word membership checks for the engine.
type Dictionary interface {
	Contains(word, locale string) bool
}
