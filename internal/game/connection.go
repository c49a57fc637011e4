package game

import (
	"context"

	"github.com/playshiri/backend/internal/models"
)

// Connect resolves the player behind sessionKey and marks them connected.
func (e *Engine) Connect(ctx context.Context, gameID, sessionKey string) (*models.Player, error) {
	return e.setConnected(ctx, gameID, sessionKey, true)
}

// Disconnect marks the player disconnected. The caller schedules the grace
// job that eventually removes them if they never come back.
func (e *Engine) Disconnect(ctx context.Context, gameID, sessionKey string) (*models.Player, error) {
	return e.setConnected(ctx, gameID, sessionKey, false)
}

func (e *Engine) setConnected(ctx context.Context, gameID, sessionKey string, connected bool) (*models.Player, error) {
	var player *models.Player
	err := e.mutate(ctx, gameID, func(tx Tx) error {
		p, err := tx.PlayerBySessionKey(sessionKey)
		if err != nil {
			return err
		}
		if p.IsConnected != connected {
			p.IsConnected = connected
			if err := tx.UpdatePlayer(p); err != nil {
				return err
			}
		}
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}
