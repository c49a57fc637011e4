package store

import (
	"context"

	"github.com/playshiri/backend/internal/models"
)

// View assembles the full serialized state of a game: settings, players,
// words and leaderboard. It is what game_updated events carry.
func (s *Store) View(ctx context.Context, gameID string) (*models.GameView, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g models.Game
	if err := s.db.GetContext(ctx, &g, `SELECT * FROM game WHERE id = $1`, gameID); err != nil {
		return nil, translate(err)
	}
	var settings models.GameSettings
	if err := s.db.GetContext(ctx, &settings,
		`SELECT * FROM game_settings WHERE id = $1`, g.SettingsID); err != nil {
		return nil, translate(err)
	}

	rows, err := leaderboard(ctx, s.db, gameID)
	if err != nil {
		return nil, translate(err)
	}
	scores := make(map[string]float64, len(rows))
	for _, r := range rows {
		scores[r.PlayerID] = r.Score
	}

	var players []models.Player
	if err := s.db.SelectContext(ctx, &players,
		`SELECT * FROM player WHERE game_id = $1 ORDER BY created_at, id`, gameID); err != nil {
		return nil, translate(err)
	}
	var words []models.GameWord
	if err := s.db.SelectContext(ctx, &words,
		`SELECT * FROM game_word WHERE game_id = $1 ORDER BY created_at, id`, gameID); err != nil {
		return nil, translate(err)
	}

	view := &models.GameView{
		ID:              g.ID,
		Status:          g.Status,
		CurrentTurn:     g.CurrentTurn,
		CurrentPlayerID: models.StringPtr(g.CurrentPlayerID),
		WinnerID:        models.StringPtr(g.WinnerID),
		LastWord:        models.StringPtr(g.LastWord),
		TurnTimeLeft:    g.TurnTimeLeft,
		Settings:        settings,
		Players:         make([]models.PlayerView, 0, len(players)),
		Words:           make([]models.GameWordView, 0, len(words)),
		Leaderboard:     rows,
	}
	for _, p := range players {
		view.Players = append(view.Players, models.PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			Type:        p.Type,
			IsConnected: p.IsConnected,
			Score:       scores[p.ID],
		})
	}
	for _, w := range words {
		view.Words = append(view.Words, models.GameWordView{
			ID:       w.ID,
			PlayerID: models.StringPtr(w.PlayerID),
			Word:     models.StringPtr(w.Word),
			Score:    w.Score,
			Duration: w.Duration,
		})
	}
	return view, nil
}
