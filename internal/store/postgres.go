// Package store is the PostgreSQL persistence layer. All game mutations run
// inside serializable transactions; uniqueness violations and serialization
// failures are mapped onto the engine's error kinds.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/playshiri/backend/internal/game"
	"github.com/playshiri/backend/internal/models"
)

// pq error codes we translate.
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// queryTimeout bounds every storage round-trip.
const queryTimeout = 5 * time.Second

// Store implements game.Store on PostgreSQL via sqlx.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// translate maps driver errors onto the engine's taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var ge *game.Error
	if errors.As(err, &ge) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return game.Wrap(game.KindNotFound, err, "not found")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return game.Wrap(game.KindConflict, err, "already taken")
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return game.Wrap(game.KindRetriable, err, "storage contention")
		}
	}
	return game.Wrap(game.KindFatal, err, "storage failure")
}

func (s *Store) CreateGame(ctx context.Context, g *models.Game, settings *models.GameSettings) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_settings (id, locale, word_length, turn_time, max_turns)
		 VALUES ($1, $2, $3, $4, $5)`,
		settings.ID, settings.Locale, settings.WordLength, settings.TurnTime, settings.MaxTurns,
	); err != nil {
		return translate(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game (id, status, current_turn, settings_id, turn_time_left, last_word, version)
		 VALUES ($1, $2, 0, $3, 0, $4, 1)`,
		g.ID, g.Status, settings.ID, g.LastWord,
	); err != nil {
		return translate(err)
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	g.Version = 1
	return nil
}

func (s *Store) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g models.Game
	if err := s.db.GetContext(ctx, &g, `SELECT * FROM game WHERE id = $1`, gameID); err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

// Mutate runs fn in a serializable transaction scoped to gameID.
func (s *Store) Mutate(ctx context.Context, gameID string, fn func(tx game.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback()

	if err := fn(&gameTx{ctx: ctx, tx: tx, gameID: gameID}); err != nil {
		return translate(err)
	}
	return translate(tx.Commit())
}

func (s *Store) ClaimTask(ctx context.Context, gameID, taskID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE game SET task_id = $2 WHERE id = $1 AND task_id IS NULL`, gameID, taskID)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *Store) ReleaseTask(ctx context.Context, gameID, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`UPDATE game SET task_id = NULL WHERE id = $1 AND task_id = $2`, gameID, taskID)
	return translate(err)
}

func (s *Store) PlayingGameIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM game WHERE status = 'PLAYING' ORDER BY id`); err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

// ResetTask drops whatever claim is on the game, stale or not. Callers must
// guarantee no live driver owns it.
func (s *Store) ResetTask(ctx context.Context, gameID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`UPDATE game SET task_id = NULL WHERE id = $1`, gameID)
	return translate(err)
}

// gameTx implements game.Tx on one open transaction.
type gameTx struct {
	ctx    context.Context
	tx     *sqlx.Tx
	gameID string
}

func (t *gameTx) Game() (*models.Game, error) {
	var g models.Game
	if err := t.tx.GetContext(t.ctx, &g,
		`SELECT * FROM game WHERE id = $1 FOR UPDATE`, t.gameID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.Errorf(game.KindNotFound, "game %s not found", t.gameID)
		}
		return nil, err
	}
	return &g, nil
}

func (t *gameTx) Settings() (*models.GameSettings, error) {
	var s models.GameSettings
	err := t.tx.GetContext(t.ctx, &s,
		`SELECT gs.* FROM game_settings gs JOIN game g ON g.settings_id = gs.id WHERE g.id = $1`,
		t.gameID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *gameTx) UpdateSettings(s *models.GameSettings) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE game_settings SET locale = $2, word_length = $3, turn_time = $4, max_turns = $5
		 WHERE id = $1`,
		s.ID, s.Locale, s.WordLength, s.TurnTime, s.MaxTurns)
	return err
}

func (t *gameTx) Players(excludeSpectators bool) ([]*models.Player, error) {
	query := `SELECT * FROM player WHERE game_id = $1 ORDER BY created_at, id`
	if excludeSpectators {
		query = `SELECT * FROM player WHERE game_id = $1 AND type <> 'SPECTATOR' ORDER BY created_at, id`
	}
	var players []*models.Player
	if err := t.tx.SelectContext(t.ctx, &players, query, t.gameID); err != nil {
		return nil, err
	}
	return players, nil
}

func (t *gameTx) PlayerBySessionKey(sessionKey string) (*models.Player, error) {
	var p models.Player
	err := t.tx.GetContext(t.ctx, &p,
		`SELECT * FROM player WHERE game_id = $1 AND session_key = $2`, t.gameID, sessionKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.Errorf(game.KindNotFound, "no player with this session in game %s", t.gameID)
		}
		return nil, err
	}
	return &p, nil
}

func (t *gameTx) CreatePlayer(p *models.Player) error {
	return t.tx.QueryRowContext(t.ctx,
		`INSERT INTO player (id, game_id, name, type, session_key, is_connected)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		p.ID, p.GameID, p.Name, p.Type, p.SessionKey, p.IsConnected,
	).Scan(&p.CreatedAt)
}

func (t *gameTx) UpdatePlayer(p *models.Player) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE player SET name = $2, type = $3, session_key = $4, is_connected = $5
		 WHERE id = $1`,
		p.ID, p.Name, p.Type, p.SessionKey, p.IsConnected)
	return err
}

func (t *gameTx) DeletePlayer(playerID string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM player WHERE id = $1`, playerID)
	return err
}

func (t *gameTx) Words() ([]*models.GameWord, error) {
	var words []*models.GameWord
	err := t.tx.SelectContext(t.ctx, &words,
		`SELECT * FROM game_word WHERE game_id = $1 ORDER BY created_at, id`, t.gameID)
	if err != nil {
		return nil, err
	}
	return words, nil
}

func (t *gameTx) CreateWord(w *models.GameWord) error {
	return t.tx.QueryRowContext(t.ctx,
		`INSERT INTO game_word (id, game_id, player_id, word, score, duration)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		w.ID, w.GameID, w.PlayerID, w.Word, w.Score, w.Duration,
	).Scan(&w.CreatedAt)
}

func (t *gameTx) DeleteWords() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM game_word WHERE game_id = $1`, t.gameID)
	return err
}

func (t *gameTx) Leaderboard() ([]models.LeaderboardRow, error) {
	return leaderboard(t.ctx, t.tx, t.gameID)
}

// UpdateGame writes the game row back with an optimistic version check; a
// concurrent writer surfaces as Retriable.
func (t *gameTx) UpdateGame(g *models.Game) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE game
		 SET status = $2, current_turn = $3, current_player_id = $4, winner_id = $5,
		     turn_time_left = $6, last_word = $7, task_id = $8, version = version + 1
		 WHERE id = $1 AND version = $9`,
		g.ID, g.Status, g.CurrentTurn, g.CurrentPlayerID, g.WinnerID,
		g.TurnTimeLeft, g.LastWord, g.TaskID, g.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return game.Errorf(game.KindRetriable, "game %s was modified concurrently", g.ID)
	}
	g.Version++
	return nil
}

type queryer interface {
	sqlx.QueryerContext
}

func leaderboard(ctx context.Context, q queryer, gameID string) ([]models.LeaderboardRow, error) {
	var rows []models.LeaderboardRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT p.id AS player_id, p.name, COALESCE(SUM(gw.score), 0) AS score, p.created_at
		 FROM player p
		 LEFT JOIN game_word gw ON gw.player_id = p.id
		 WHERE p.game_id = $1 AND p.type <> 'SPECTATOR'
		 GROUP BY p.id, p.name, p.created_at
		 ORDER BY score DESC, p.created_at, p.id`,
		gameID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
