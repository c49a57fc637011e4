package game

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/playshiri/backend/internal/models"
)

// memStore is an in-memory Store used to exercise the engine and driver
// without PostgreSQL. It enforces the same uniqueness rules the schema does.
type memStore struct {
	mu       sync.Mutex
	games    map[string]*models.Game
	settings map[string]*models.GameSettings
	players  map[string]*models.Player
	words    map[string][]*models.GameWord // gameID -> ordered moves
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		games:    make(map[string]*models.Game),
		settings: make(map[string]*models.GameSettings),
		players:  make(map[string]*models.Player),
		words:    make(map[string][]*models.GameWord),
		clock:    time.Unix(1700000000, 0),
	}
}

func (m *memStore) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateGame(_ context.Context, g *models.Game, s *models.GameSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.Version = 1
	g.CreatedAt = m.now()
	m.games[g.ID] = g
	m.settings[s.ID] = s
	return nil
}

func (m *memStore) GetGame(_ context.Context, gameID string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, Errorf(KindNotFound, "game %s not found", gameID)
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) View(ctx context.Context, gameID string) (*models.GameView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, Errorf(KindNotFound, "game %s not found", gameID)
	}
	tx := &memTx{store: m, gameID: gameID}
	rows, err := tx.Leaderboard()
	if err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(rows))
	for _, r := range rows {
		scores[r.PlayerID] = r.Score
	}
	players, err := tx.Players(false)
	if err != nil {
		return nil, err
	}
	words, err := tx.Words()
	if err != nil {
		return nil, err
	}
	view := &models.GameView{
		ID:              g.ID,
		Status:          g.Status,
		CurrentTurn:     g.CurrentTurn,
		CurrentPlayerID: models.StringPtr(g.CurrentPlayerID),
		WinnerID:        models.StringPtr(g.WinnerID),
		LastWord:        models.StringPtr(g.LastWord),
		TurnTimeLeft:    g.TurnTimeLeft,
		Settings:        *m.settings[g.SettingsID],
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

func (m *memStore) Mutate(_ context.Context, gameID string, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{store: m, gameID: gameID})
}

func (m *memStore) ClaimTask(_ context.Context, gameID, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return false, Errorf(KindNotFound, "game %s not found", gameID)
	}
	if g.TaskID.Valid {
		return false, nil
	}
	g.TaskID.String = taskID
	g.TaskID.Valid = true
	return true, nil
}

func (m *memStore) ReleaseTask(_ context.Context, gameID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok && g.TaskID.Valid && g.TaskID.String == taskID {
		g.TaskID.Valid = false
		g.TaskID.String = ""
	}
	return nil
}

func (m *memStore) PlayingGameIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, g := range m.games {
		if g.Status == models.StatusPlaying {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) ResetTask(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return Errorf(KindNotFound, "game %s not found", gameID)
	}
	g.TaskID = sql.NullString{}
	return nil
}

type memTx struct {
	store  *memStore
	gameID string
}

func (t *memTx) Game() (*models.Game, error) {
	g, ok := t.store.games[t.gameID]
	if !ok {
		return nil, Errorf(KindNotFound, "game %s not found", t.gameID)
	}
	cp := *g
	return &cp, nil
}

func (t *memTx) Settings() (*models.GameSettings, error) {
	g, ok := t.store.games[t.gameID]
	if !ok {
		return nil, Errorf(KindNotFound, "game %s not found", t.gameID)
	}
	cp := *t.store.settings[g.SettingsID]
	return &cp, nil
}

func (t *memTx) UpdateSettings(s *models.GameSettings) error {
	cp := *s
	t.store.settings[s.ID] = &cp
	return nil
}

func (t *memTx) Players(excludeSpectators bool) ([]*models.Player, error) {
	var players []*models.Player
	for _, p := range t.store.players {
		if !p.GameID.Valid || p.GameID.String != t.gameID {
			continue
		}
		if excludeSpectators && p.IsSpectator() {
			continue
		}
		cp := *p
		players = append(players, &cp)
	}
	sort.Slice(players, func(i, j int) bool {
		if !players[i].CreatedAt.Equal(players[j].CreatedAt) {
			return players[i].CreatedAt.Before(players[j].CreatedAt)
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

func (t *memTx) PlayerBySessionKey(sessionKey string) (*models.Player, error) {
	for _, p := range t.store.players {
		if p.GameID.Valid && p.GameID.String == t.gameID &&
			p.SessionKey.Valid && p.SessionKey.String == sessionKey {
			cp := *p
			return &cp, nil
		}
	}
	return nil, Errorf(KindNotFound, "no player with this session in game %s", t.gameID)
}

func (t *memTx) CreatePlayer(p *models.Player) error {
	for _, other := range t.store.players {
		if !other.GameID.Valid || other.GameID.String != t.gameID {
			continue
		}
		if other.Name == p.Name {
			return Errorf(KindConflict, "name already taken")
		}
		if other.SessionKey.Valid && p.SessionKey.Valid && other.SessionKey.String == p.SessionKey.String {
			return Errorf(KindConflict, "session already joined")
		}
		if other.Type == models.PlayerHost && p.Type == models.PlayerHost {
			return Errorf(KindConflict, "game already has a host")
		}
	}
	p.CreatedAt = t.store.now()
	cp := *p
	t.store.players[p.ID] = &cp
	return nil
}

func (t *memTx) UpdatePlayer(p *models.Player) error {
	cp := *p
	t.store.players[p.ID] = &cp
	return nil
}

func (t *memTx) DeletePlayer(playerID string) error {
	delete(t.store.players, playerID)
	for _, words := range t.store.words {
		for _, w := range words {
			if w.PlayerID.Valid && w.PlayerID.String == playerID {
				w.PlayerID.Valid = false
				w.PlayerID.String = ""
			}
		}
	}
	return nil
}

func (t *memTx) Words() ([]*models.GameWord, error) {
	var words []*models.GameWord
	for _, w := range t.store.words[t.gameID] {
		cp := *w
		words = append(words, &cp)
	}
	return words, nil
}

func (t *memTx) CreateWord(w *models.GameWord) error {
	for _, other := range t.store.words[t.gameID] {
		if other.Word.Valid && w.Word.Valid && other.Word.String == w.Word.String {
			return Errorf(KindConflict, "word already played")
		}
	}
	w.CreatedAt = t.store.now()
	cp := *w
	t.store.words[t.gameID] = append(t.store.words[t.gameID], &cp)
	return nil
}

func (t *memTx) DeleteWords() error {
	delete(t.store.words, t.gameID)
	return nil
}

func (t *memTx) Leaderboard() ([]models.LeaderboardRow, error) {
	players, err := t.Players(true)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]float64)
	for _, w := range t.store.words[t.gameID] {
		if w.PlayerID.Valid {
			sums[w.PlayerID.String] += w.Score
		}
	}
	rows := make([]models.LeaderboardRow, 0, len(players))
	for _, p := range players {
		rows = append(rows, models.LeaderboardRow{
			PlayerID:  p.ID,
			Name:      p.Name,
			Score:     sums[p.ID],
			CreatedAt: p.CreatedAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows, nil
}

func (t *memTx) UpdateGame(g *models.Game) error {
	g.Version++
	cp := *g
	t.store.games[g.ID] = &cp
	return nil
}

// fixedDict is a Dictionary backed by a plain word list.
type fixedDict map[string]bool

func (d fixedDict) Contains(word, locale string) bool {
	return locale == "en" && d[word]
}
