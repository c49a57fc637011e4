package game

import (
	"context"
	"database/sql"
	"math/rand"
	"strings"
	"time"

	"github.com/playshiri/backend/internal/models"
)

const (
	maxRetries       = 3
	retryJitterMinMS = 50
	retryJitterMaxMS = 200
)

// Engine is the authority over legal game state transitions. It is
// stateless and re-entrant; all game state lives in the Store.
type Engine struct {
	store Store
	dict  Dictionary
}

func NewEngine(store Store, dict Dictionary) *Engine {
	return &Engine{store: store, dict: dict}
}

// Store exposes the engine's backing store for read-side callers.
func (e *Engine) Store() Store { return e.store }

// SettingsOverrides carries optional per-game tunables supplied by the host
// before starting. Nil fields keep the current value.
type SettingsOverrides struct {
	Locale     *string `json:"locale"`
	WordLength *int    `json:"wordLength"`
	TurnTime   *int    `json:"turnTime"`
	MaxTurns   *int    `json:"maxTurns"`
}

func (o *SettingsOverrides) apply(s *models.GameSettings) error {
	if o == nil {
		return nil
	}
	if o.Locale != nil {
		if *o.Locale != "en" {
			return Errorf(KindInvalid, "unsupported locale %q", *o.Locale)
		}
		s.Locale = *o.Locale
	}
	if o.WordLength != nil {
		if *o.WordLength < 3 || *o.WordLength > 5 {
			return Errorf(KindInvalid, "word length must be between 3 and 5")
		}
		s.WordLength = *o.WordLength
	}
	if o.TurnTime != nil {
		if *o.TurnTime < 30 || *o.TurnTime > 120 {
			return Errorf(KindInvalid, "turn time must be between 30 and 120 seconds")
		}
		s.TurnTime = *o.TurnTime
	}
	if o.MaxTurns != nil {
		if *o.MaxTurns < 5 || *o.MaxTurns > 20 {
			return Errorf(KindInvalid, "max turns must be between 5 and 20")
		}
		s.MaxTurns = *o.MaxTurns
	}
	return nil
}

// TurnResult reports what a resolved turn did to the game.
type TurnResult struct {
	Finished     bool
	Winner       *models.LeaderboardRow
	TurnTimeLeft int
	CurrentTurn  int
}

// LeaveResult reports the fallout of a player leaving.
type LeaveResult struct {
	PlayerID string
	Name     string
	Finished bool
	Winner   *models.LeaderboardRow
}

// mutate wraps Store.Mutate with the retry policy for transient contention:
// up to 3 retries with 50-200ms jitter. Invalid and Conflict errors are
// never retried.
func (e *Engine) mutate(ctx context.Context, gameID string, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = e.store.Mutate(ctx, gameID, fn)
		if err == nil || !IsKind(err, KindRetriable) || attempt >= maxRetries {
			return err
		}
		jitter := retryJitterMinMS + rand.Intn(retryJitterMaxMS-retryJitterMinMS)
		select {
		case <-ctx.Done():
			return Wrap(KindFatal, ctx.Err(), "storage retry interrupted")
		case <-time.After(time.Duration(jitter) * time.Millisecond):
		}
	}
}

// CreateGame creates a new WAITING game with default settings and a random
// seed letter.
func (e *Engine) CreateGame(ctx context.Context) (*models.Game, error) {
	settings := models.DefaultSettings()
	settings.ID = NewEntityID()
	g := &models.Game{
		ID:         NewGameID(),
		Status:     models.StatusWaiting,
		SettingsID: settings.ID,
		LastWord:   sql.NullString{String: RandomLetter(), Valid: true},
	}
	if err := e.store.CreateGame(ctx, g, &settings); err != nil {
		return nil, err
	}
	return g, nil
}

// Join adds a player to a WAITING game. The first non-spectator becomes the
// host; everyone after that joins as a regular human player.
func (e *Engine) Join(ctx context.Context, gameID, name, sessionKey string) (*models.Player, error) {
	if name = strings.TrimSpace(name); name == "" || len(name) > 255 {
		return nil, Errorf(KindInvalid, "player name must be 1-255 characters")
	}
	var joined *models.Player
	err := e.mutate(ctx, gameID, func(tx Tx) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != models.StatusWaiting {
			return Errorf(KindInvalid, "game has already started or is finished")
		}
		players, err := tx.Players(true)
		if err != nil {
			return err
		}
		ptype := models.PlayerHuman
		if len(players) == 0 {
			ptype = models.PlayerHost
		}
		p := &models.Player{
			ID:         NewEntityID(),
			GameID:     sql.NullString{String: g.ID, Valid: true},
			Name:       name,
			Type:       ptype,
			SessionKey: sql.NullString{String: sessionKey, Valid: true},
		}
		if err := tx.CreatePlayer(p); err != nil {
			return err
		}
		joined = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// Leave removes the player identified by sessionKey from the game.
func (e *Engine) Leave(ctx context.Context, gameID, sessionKey string) (*LeaveResult, error) {
	var result *LeaveResult
	err := e.mutate(ctx, gameID, func(tx Tx) error {
		p, err := tx.PlayerBySessionKey(sessionKey)
		if err != nil {
			return err
		}
		r, err := e.removePlayer(tx, p)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireDisconnected removes playerID if they are still marked disconnected.
// Called by the grace worker after the disconnect window elapses; the
// is_connected check runs inside the same transaction as the removal so a
// reconnect can never race a deletion.
func (e *Engine) ExpireDisconnected(ctx context.Context, gameID, playerID string) (*LeaveResult, error) {
	var result *LeaveResult
	err := e.mutate(ctx, gameID, func(tx Tx) error {
		players, err := tx.Players(false)
		if err != nil {
			return err
		}
		var target *models.Player
		for _, p := range players {
			if p.ID == playerID {
				target = p
				break
			}
		}
		if target == nil || target.IsConnected {
			return nil // reconnected or already gone
		}
		r, err := e.removePlayer(tx, target)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// removePlayer deletes p and repairs the game: host re-election, quorum
// check, and current-player recomputation.
func (e *Engine) removePlayer(tx Tx, p *models.Player) (*LeaveResult, error) {
	g, err := tx.Game()
	if err != nil {
		return nil, err
	}
	if err := tx.DeletePlayer(p.ID); err != nil {
		return nil, err
	}
	result := &LeaveResult{PlayerID: p.ID, Name: p.Name}

	remaining, err := tx.Players(true)
	if err != nil {
		return nil, err
	}

	if p.Type == models.PlayerHost {
		if len(remaining) == 0 {
			if g.Status != models.StatusFinished {
				if err := e.finish(tx, g, false); err != nil {
					return nil, err
				}
				result.Finished = true
			}
			return result, tx.UpdateGame(g)
		}
		// earliest-created remaining player inherits the host seat
		remaining[0].Type = models.PlayerHost
		if err := tx.UpdatePlayer(remaining[0]); err != nil {
			return nil, err
		}
	}

	if g.Status == models.StatusPlaying {
		if len(remaining) < 2 {
			if err := e.finish(tx, g, true); err != nil {
				return nil, err
			}
			result.Finished = true
			result.Winner, err = e.winnerRow(tx)
			if err != nil {
				return nil, err
			}
		} else if g.CurrentPlayerID.Valid && g.CurrentPlayerID.String == p.ID {
			g.CurrentPlayerID = currentPlayerID(g.CurrentTurn, remaining)
		}
	}
	return result, tx.UpdateGame(g)
}

// PrepareStart validates that the caller may start the game and applies
// setting overrides. It does not change the game's status.
func (e *Engine) PrepareStart(ctx context.Context, gameID, sessionKey string, overrides *SettingsOverrides) error {
	return e.mutate(ctx, gameID, func(tx Tx) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != models.StatusWaiting {
			return Errorf(KindInvalid, "cannot start a game that is not waiting")
		}
		players, err := tx.Players(true)
		if err != nil {
			return err
		}
		if err := requireHost(players, sessionKey, "start"); err != nil {
			return err
		}
		if len(players) < 2 {
			return Errorf(KindInvalid, "cannot start a game with less than 2 players")
		}
		settings, err := tx.Settings()
		if err != nil {
			return err
		}
		if err := overrides.apply(settings); err != nil {
			return err
		}
		return tx.UpdateSettings(settings)
	})
}

// Start transitions a WAITING game to PLAYING. An empty sessionKey skips the
// host check (used by the task path after PrepareStart already verified it).
func (e *Engine) Start(ctx context.Context, gameID, sessionKey string) error {
	return e.mutate(ctx, gameID, func(tx Tx) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != models.StatusWaiting {
			return Errorf(KindInvalid, "cannot start a game that is not waiting")
		}
		players, err := tx.Players(true)
		if err != nil {
			return err
		}
		if sessionKey != "" {
			if err := requireHost(players, sessionKey, "start"); err != nil {
				return err
			}
		}
		if len(players) < 2 {
			return Errorf(KindInvalid, "cannot start a game with less than 2 players")
		}
		settings, err := tx.Settings()
		if err != nil {
			return err
		}
		g.Status = models.StatusPlaying
		g.CurrentTurn = 0
		g.CurrentPlayerID = currentPlayerID(0, players)
		g.TurnTimeLeft = settings.TurnTime
		return tx.UpdateGame(g)
	})
}

// SubmitTurn resolves a word submission by the current player.
func (e *Engine) SubmitTurn(ctx context.Context, gameID, sessionKey, word string, duration float64) (*TurnResult, error) {
	if strings.TrimSpace(word) == "" {
		return nil, Errorf(KindInvalid, "a word is required")
	}
	word = strings.ToLower(strings.TrimSpace(word))
	var result *TurnResult
	err := e.mutate(ctx, gameID, func(tx Tx) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		current, err := e.canTakeTurn(tx, g, sessionKey, false)
		if err != nil {
			return err
		}
		settings, err := tx.Settings()
		if err != nil {
			return err
		}
		if err := e.validateWord(tx, g, settings, word); err != nil {
			return err
		}
		gw := &models.GameWord{
			ID:       NewEntityID(),
			GameID:   g.ID,
			PlayerID: sql.NullString{String: current.ID, Valid: true},
			Word:     sql.NullString{String: word, Valid: true},
			Score:    Score(word, duration),
			Duration: duration,
		}
		if err := tx.CreateWord(gw); err != nil {
			return err
		}
		g.LastWord = sql.NullString{String: word, Valid: true}
		r, err := e.advanceTurn(tx, g, settings)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForceTimeout charges the current player with an expired turn. Only the
// turn driver holding the game's task_id may call it.
func (e *Engine) ForceTimeout(ctx context.Context, gameID, taskID string) (*TurnResult, error) {
	var result *TurnResult
	err := e.mutate(ctx, gameID, func(tx Tx) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if !g.TaskID.Valid || g.TaskID.String != taskID {
			return Errorf(KindUnauthorized, "driver does not own this game")
		}
		if g.Status != models.StatusPlaying {
			return Errorf(KindInvalid, "game is not in progress")
		}
		current, err := e.currentPlayer(tx, g)
		if err != nil {
			return err
		}
		settings, err := tx.Settings()
		if err != nil {
			return err
		}
		duration := float64(settings.TurnTime)
		gw := &models.GameWord{
			ID:       NewEntityID(),
			GameID:   g.ID,
			PlayerID: sql.NullString{String: current.ID, Valid: true},
			Score:    TimeoutScore(duration),
			Duration: duration,
		}
		if err := tx.CreateWord(gw); err != nil {
			return err
		}
		r, err := e.advanceTurn(tx, g, settings)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Restart resets a finished game back to the lobby, keeping its players.
func (e *Engine) Restart(ctx context.Context, gameID, sessionKey string) error {
	return e.mutate(ctx, gameID, func(tx Tx) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != models.StatusFinished {
			return Errorf(KindInvalid, "only a finished game can be restarted")
		}
		players, err := tx.Players(true)
		if err != nil {
			return err
		}
		if err := requireHost(players, sessionKey, "restart"); err != nil {
			return err
		}
		hasHost := false
		for _, p := range players {
			if p.Type == models.PlayerWinner {
				p.Type = models.PlayerHuman
				if err := tx.UpdatePlayer(p); err != nil {
					return err
				}
			}
			if p.Type == models.PlayerHost {
				hasHost = true
			}
		}
		if !hasHost && len(players) > 0 {
			players[0].Type = models.PlayerHost
			if err := tx.UpdatePlayer(players[0]); err != nil {
				return err
			}
		}
		if err := tx.DeleteWords(); err != nil {
			return err
		}
		g.Status = models.StatusWaiting
		g.CurrentTurn = 0
		g.CurrentPlayerID = sql.NullString{}
		g.WinnerID = sql.NullString{}
		g.TurnTimeLeft = 0
		g.LastWord = sql.NullString{String: RandomLetter(), Valid: true}
		return tx.UpdateGame(g)
	})
}

// Winner returns the leaderboard top of a finished game.
func (e *Engine) Winner(ctx context.Context, gameID string) (*models.LeaderboardRow, error) {
	var row *models.LeaderboardRow
	err := e.mutate(ctx, gameID, func(tx Tx) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != models.StatusFinished {
			return Errorf(KindInvalid, "cannot get winner of a game that is not finished")
		}
		row, err = e.winnerRow(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// canTakeTurn checks the submission gate: game in progress, caller is the
// current player, and time remains unless a timeout is being charged.
func (e *Engine) canTakeTurn(tx Tx, g *models.Game, sessionKey string, timeout bool) (*models.Player, error) {
	if g.Status != models.StatusPlaying {
		return nil, Errorf(KindInvalid, "game is not in progress")
	}
	current, err := e.currentPlayer(tx, g)
	if err != nil {
		return nil, err
	}
	if !current.SessionKey.Valid || current.SessionKey.String != sessionKey {
		return nil, Errorf(KindInvalid, "it is not your turn")
	}
	if !timeout && g.TurnTimeLeft <= 0 {
		return nil, Errorf(KindInvalid, "turn time has expired")
	}
	return current, nil
}

func (e *Engine) currentPlayer(tx Tx, g *models.Game) (*models.Player, error) {
	if !g.CurrentPlayerID.Valid {
		return nil, Errorf(KindFatal, "playing game has no current player")
	}
	players, err := tx.Players(true)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		if p.ID == g.CurrentPlayerID.String {
			return p, nil
		}
	}
	return nil, Errorf(KindFatal, "current player is not in the game")
}

// validateWord enforces the chain rule, uniqueness, minimum length and
// dictionary membership. The word is already lowercased.
func (e *Engine) validateWord(tx Tx, g *models.Game, settings *models.GameSettings, word string) error {
	if g.LastWord.Valid && g.LastWord.String != "" {
		last := []rune(g.LastWord.String)
		if []rune(word)[0] != last[len(last)-1] {
			return Errorf(KindInvalid, "word must start with %q", string(last[len(last)-1]))
		}
	}
	words, err := tx.Words()
	if err != nil {
		return err
	}
	for _, w := range words {
		if w.Word.Valid && w.Word.String == word {
			return Errorf(KindInvalid, "word %q has already been played", word)
		}
	}
	if len([]rune(word)) < settings.WordLength {
		return Errorf(KindInvalid, "word must be at least %d letters", settings.WordLength)
	}
	if !e.dict.Contains(word, settings.Locale) {
		return Errorf(KindInvalid, "word %q is not in the %s dictionary", word, settings.Locale)
	}
	return nil
}

// advanceTurn moves the game to the next turn, or finishes it once the turn
// cap is reached.
func (e *Engine) advanceTurn(tx Tx, g *models.Game, settings *models.GameSettings) (*TurnResult, error) {
	g.CurrentTurn++
	result := &TurnResult{CurrentTurn: g.CurrentTurn}
	if g.CurrentTurn >= settings.MaxTurns {
		if err := e.finish(tx, g, true); err != nil {
			return nil, err
		}
		result.Finished = true
		var err error
		result.Winner, err = e.winnerRow(tx)
		if err != nil {
			return nil, err
		}
		return result, tx.UpdateGame(g)
	}
	players, err := tx.Players(true)
	if err != nil {
		return nil, err
	}
	g.CurrentPlayerID = currentPlayerID(g.CurrentTurn, players)
	g.TurnTimeLeft = settings.TurnTime
	result.TurnTimeLeft = g.TurnTimeLeft
	return result, tx.UpdateGame(g)
}

// finish transitions g to FINISHED. With crownWinner the leaderboard top is
// recorded on the game and promoted to the WINNER type.
func (e *Engine) finish(tx Tx, g *models.Game, crownWinner bool) error {
	g.Status = models.StatusFinished
	g.CurrentPlayerID = sql.NullString{}
	g.TurnTimeLeft = 0
	if !crownWinner {
		return nil
	}
	row, err := e.winnerRow(tx)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}
	g.WinnerID = sql.NullString{String: row.PlayerID, Valid: true}
	players, err := tx.Players(true)
	if err != nil {
		return err
	}
	for _, p := range players {
		// the host keeps their seat so a restart still has a host
		if p.ID == row.PlayerID && p.Type != models.PlayerHost {
			p.Type = models.PlayerWinner
			return tx.UpdatePlayer(p)
		}
	}
	return nil
}

func (e *Engine) winnerRow(tx Tx) (*models.LeaderboardRow, error) {
	rows, err := tx.Leaderboard()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &row, nil
}

// currentPlayerID selects the player whose turn it is: the host opens the
// game, after that seats rotate by created_at order.
func currentPlayerID(turn int, players []*models.Player) sql.NullString {
	if len(players) == 0 {
		return sql.NullString{}
	}
	if turn == 0 {
		for _, p := range players {
			if p.Type == models.PlayerHost {
				return sql.NullString{String: p.ID, Valid: true}
			}
		}
	}
	return sql.NullString{String: players[turn%len(players)].ID, Valid: true}
}

func requireHost(players []*models.Player, sessionKey, action string) error {
	for _, p := range players {
		if p.Type == models.PlayerHost {
			if p.SessionKey.Valid && p.SessionKey.String == sessionKey {
				return nil
			}
			return Errorf(KindInvalid, "only the host can %s the game", action)
		}
	}
	return Errorf(KindInvalid, "game has no host")
}
