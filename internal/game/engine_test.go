package game

import (
	"context"
	"database/sql"
	"testing"

	"github.com/playshiri/backend/internal/models"
)

func sessionFor(name string) string { return "sess-" + name }

// newTestGame creates a game, joins the named players in order (the first
// becomes host) and pins the seed letter so word chains are predictable.
func newTestGame(t *testing.T, e *Engine, st *memStore, seed string, names ...string) (string, map[string]*models.Player) {
	t.Helper()
	ctx := context.Background()
	g, err := e.CreateGame(ctx)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	st.games[g.ID].LastWord = sql.NullString{String: seed, Valid: true}
	players := make(map[string]*models.Player, len(names))
	for _, name := range names {
		p, err := e.Join(ctx, g.ID, name, sessionFor(name))
		if err != nil {
			t.Fatalf("Join(%s): %v", name, err)
		}
		players[name] = p
	}
	return g.ID, players
}

func startGame(t *testing.T, e *Engine, gameID, hostSession string, overrides *SettingsOverrides) {
	t.Helper()
	ctx := context.Background()
	if err := e.PrepareStart(ctx, gameID, hostSession, overrides); err != nil {
		t.Fatalf("PrepareStart: %v", err)
	}
	if err := e.Start(ctx, gameID, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if KindOf(err) != kind {
		t.Fatalf("expected %v error, got %v (%v)", kind, KindOf(err), err)
	}
}

func TestJoinAssignsHostThenHumans(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob", "carol")

	if players["alice"].Type != models.PlayerHost {
		t.Errorf("first joiner type = %s, want HOST", players["alice"].Type)
	}
	if players["bob"].Type != models.PlayerHuman || players["carol"].Type != models.PlayerHuman {
		t.Errorf("later joiners should be HUMAN, got %s and %s", players["bob"].Type, players["carol"].Type)
	}

	g, err := st.GetGame(context.Background(), gameID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.Status != models.StatusWaiting {
		t.Errorf("status = %s, want WAITING", g.Status)
	}
}

func TestJoinValidation(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, _ := newTestGame(t, e, st, "a", "alice", "bob")
	ctx := context.Background()

	_, err := e.Join(ctx, gameID, "   ", sessionFor("carol"))
	wantKind(t, err, KindInvalid)

	_, err = e.Join(ctx, gameID, "alice", sessionFor("imposter"))
	wantKind(t, err, KindConflict)

	startGame(t, e, gameID, sessionFor("alice"), nil)
	_, err = e.Join(ctx, gameID, "carol", sessionFor("carol"))
	wantKind(t, err, KindInvalid)

	_, err = e.Join(ctx, "zzzzz", "carol", sessionFor("carol"))
	wantKind(t, err, KindNotFound)
}

func TestStartRequiresHostAndQuorum(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, _ := newTestGame(t, e, st, "a", "alice")
	ctx := context.Background()

	err := e.PrepareStart(ctx, gameID, sessionFor("alice"), nil)
	wantKind(t, err, KindInvalid) // one player is not enough

	if _, err := e.Join(ctx, gameID, "bob", sessionFor("bob")); err != nil {
		t.Fatalf("Join(bob): %v", err)
	}
	err = e.PrepareStart(ctx, gameID, sessionFor("bob"), nil)
	wantKind(t, err, KindInvalid) // bob is not the host

	startGame(t, e, gameID, sessionFor("alice"), nil)

	g, _ := st.GetGame(ctx, gameID)
	if g.Status != models.StatusPlaying {
		t.Fatalf("status = %s, want PLAYING", g.Status)
	}
	if g.CurrentTurn != 0 {
		t.Errorf("current turn = %d, want 0", g.CurrentTurn)
	}

	// starting twice is rejected
	err = e.Start(ctx, gameID, "")
	wantKind(t, err, KindInvalid)
}

func TestStartOpensWithHostTurn(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob")
	startGame(t, e, gameID, sessionFor("alice"), nil)

	g, _ := st.GetGame(context.Background(), gameID)
	if !g.CurrentPlayerID.Valid || g.CurrentPlayerID.String != players["alice"].ID {
		t.Errorf("current player = %v, want host %s", g.CurrentPlayerID, players["alice"].ID)
	}
	if g.TurnTimeLeft != 60 {
		t.Errorf("turn time left = %d, want 60", g.TurnTimeLeft)
	}
}

func TestSettingsOverrides(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, _ := newTestGame(t, e, st, "a", "alice", "bob")
	ctx := context.Background()

	bad := 6
	err := e.PrepareStart(ctx, gameID, sessionFor("alice"), &SettingsOverrides{WordLength: &bad})
	wantKind(t, err, KindInvalid)

	badTime := 10
	err = e.PrepareStart(ctx, gameID, sessionFor("alice"), &SettingsOverrides{TurnTime: &badTime})
	wantKind(t, err, KindInvalid)

	wl, tt, mt := 4, 30, 5
	startGame(t, e, gameID, sessionFor("alice"), &SettingsOverrides{WordLength: &wl, TurnTime: &tt, MaxTurns: &mt})

	g, _ := st.GetGame(ctx, gameID)
	s := st.settings[g.SettingsID]
	if s.WordLength != 4 || s.TurnTime != 30 || s.MaxTurns != 5 {
		t.Errorf("settings = %+v, want wordLength 4 turnTime 30 maxTurns 5", s)
	}
	if g.TurnTimeLeft != 30 {
		t.Errorf("turn time left = %d, want 30", g.TurnTimeLeft)
	}
}

func TestSubmitTurnHappyPath(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{"apple": true, "elephant": true})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob")
	startGame(t, e, gameID, sessionFor("alice"), nil)
	ctx := context.Background()

	res, err := e.SubmitTurn(ctx, gameID, sessionFor("alice"), "Apple", 5)
	if err != nil {
		t.Fatalf("SubmitTurn(apple): %v", err)
	}
	if res.Finished {
		t.Fatal("game finished after one turn")
	}
	if res.CurrentTurn != 1 {
		t.Errorf("current turn = %d, want 1", res.CurrentTurn)
	}

	g, _ := st.GetGame(ctx, gameID)
	if g.LastWord.String != "apple" {
		t.Errorf("last word = %q, want apple (lowercased)", g.LastWord.String)
	}
	if g.CurrentPlayerID.String != players["bob"].ID {
		t.Errorf("turn did not pass to bob")
	}

	if _, err := e.SubmitTurn(ctx, gameID, sessionFor("bob"), "elephant", 5); err != nil {
		t.Fatalf("SubmitTurn(elephant): %v", err)
	}

	words := st.words[gameID]
	if len(words) != 2 {
		t.Fatalf("recorded %d words, want 2", len(words))
	}
	if words[0].Score != 9 || words[1].Score != 22 {
		t.Errorf("scores = %v, %v, want 9, 22", words[0].Score, words[1].Score)
	}

	view, err := st.View(ctx, gameID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(view.Leaderboard) != 2 || view.Leaderboard[0].Name != "bob" {
		t.Errorf("leaderboard top = %+v, want bob with 22", view.Leaderboard)
	}
}

func TestSubmitTurnRejections(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{"apple": true, "eye": true, "ear": true})
	gameID, _ := newTestGame(t, e, st, "a", "alice", "bob")
	ctx := context.Background()

	// game not started yet
	_, err := e.SubmitTurn(ctx, gameID, sessionFor("alice"), "apple", 1)
	wantKind(t, err, KindInvalid)

	startGame(t, e, gameID, sessionFor("alice"), nil)

	_, err = e.SubmitTurn(ctx, gameID, sessionFor("alice"), "  ", 1)
	wantKind(t, err, KindInvalid)

	// bob tries to play out of turn
	_, err = e.SubmitTurn(ctx, gameID, sessionFor("bob"), "apple", 1)
	wantKind(t, err, KindInvalid)

	// chain rule: must start with the seed letter
	_, err = e.SubmitTurn(ctx, gameID, sessionFor("alice"), "eye", 1)
	wantKind(t, err, KindInvalid)

	// too short for the default minimum of 3
	_, err = e.SubmitTurn(ctx, gameID, sessionFor("alice"), "ax", 1)
	wantKind(t, err, KindInvalid)

	// not a dictionary word
	_, err = e.SubmitTurn(ctx, gameID, sessionFor("alice"), "aqz", 1)
	wantKind(t, err, KindInvalid)

	// rejected turns leave the game untouched
	g, _ := st.GetGame(ctx, gameID)
	if g.CurrentTurn != 0 || len(st.words[gameID]) != 0 {
		t.Errorf("rejected submissions mutated the game: turn %d, %d words", g.CurrentTurn, len(st.words[gameID]))
	}
}

func TestSubmitTurnRejectsDuplicates(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{"eye": true})
	gameID, _ := newTestGame(t, e, st, "e", "alice", "bob")
	startGame(t, e, gameID, sessionFor("alice"), nil)
	ctx := context.Background()

	if _, err := e.SubmitTurn(ctx, gameID, sessionFor("alice"), "eye", 1); err != nil {
		t.Fatalf("SubmitTurn(eye): %v", err)
	}
	_, err := e.SubmitTurn(ctx, gameID, sessionFor("bob"), "eye", 1)
	wantKind(t, err, KindInvalid)
}

func TestForceTimeout(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob")
	tt := 30
	startGame(t, e, gameID, sessionFor("alice"), &SettingsOverrides{TurnTime: &tt})
	ctx := context.Background()

	// only the claimed driver may force a timeout
	_, err := e.ForceTimeout(ctx, gameID, "task-1")
	wantKind(t, err, KindUnauthorized)

	ok, err := st.ClaimTask(ctx, gameID, "task-1")
	if err != nil || !ok {
		t.Fatalf("ClaimTask: ok=%v err=%v", ok, err)
	}
	res, err := e.ForceTimeout(ctx, gameID, "task-1")
	if err != nil {
		t.Fatalf("ForceTimeout: %v", err)
	}
	if res.CurrentTurn != 1 {
		t.Errorf("current turn = %d, want 1", res.CurrentTurn)
	}

	words := st.words[gameID]
	if len(words) != 1 {
		t.Fatalf("recorded %d words, want 1", len(words))
	}
	if words[0].Word.Valid {
		t.Errorf("timed-out move should have a null word, got %q", words[0].Word.String)
	}
	if words[0].Score != -7.5 {
		t.Errorf("timeout score = %v, want -7.5", words[0].Score)
	}
	if words[0].PlayerID.String != players["alice"].ID {
		t.Errorf("timeout charged to wrong player")
	}

	g, _ := st.GetGame(ctx, gameID)
	if g.CurrentPlayerID.String != players["bob"].ID {
		t.Errorf("turn did not pass to bob after timeout")
	}
	if g.TurnTimeLeft != 30 {
		t.Errorf("turn time left = %d, want reset to 30", g.TurnTimeLeft)
	}
	if g.LastWord.String != "a" {
		t.Errorf("timeout changed the last word to %q", g.LastWord.String)
	}
}

func TestGameFinishesAtMaxTurns(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{
		"apple": true, "elephant": true, "tee": true, "ear": true, "rat": true,
	})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob")
	mt := 5
	startGame(t, e, gameID, sessionFor("alice"), &SettingsOverrides{MaxTurns: &mt})
	ctx := context.Background()

	moves := []struct{ session, word string }{
		{sessionFor("alice"), "apple"},
		{sessionFor("bob"), "elephant"},
		{sessionFor("alice"), "tee"},
		{sessionFor("bob"), "ear"},
		{sessionFor("alice"), "rat"},
	}
	var last *TurnResult
	for i, m := range moves {
		res, err := e.SubmitTurn(ctx, gameID, m.session, m.word, 0)
		if err != nil {
			t.Fatalf("move %d (%s): %v", i, m.word, err)
		}
		last = res
	}
	if !last.Finished {
		t.Fatal("game did not finish at the turn cap")
	}
	if len(st.words[gameID]) != 5 {
		t.Errorf("recorded %d words, want exactly maxTurns", len(st.words[gameID]))
	}

	g, _ := st.GetGame(ctx, gameID)
	if g.Status != models.StatusFinished {
		t.Fatalf("status = %s, want FINISHED", g.Status)
	}
	if g.CurrentPlayerID.Valid {
		t.Errorf("finished game still has a current player")
	}

	// bob scored 22+3=25 against alice's 9+3+3=15
	if last.Winner == nil || last.Winner.PlayerID != players["bob"].ID {
		t.Fatalf("winner = %+v, want bob", last.Winner)
	}
	if g.WinnerID.String != players["bob"].ID {
		t.Errorf("game.winner_id = %v, want bob", g.WinnerID)
	}
	if st.players[players["bob"].ID].Type != models.PlayerWinner {
		t.Errorf("bob type = %s, want WINNER", st.players[players["bob"].ID].Type)
	}
	if st.players[players["alice"].ID].Type != models.PlayerHost {
		t.Errorf("alice type = %s, host must keep the seat", st.players[players["alice"].ID].Type)
	}

	row, err := e.Winner(ctx, gameID)
	if err != nil {
		t.Fatalf("Winner: %v", err)
	}
	if row.PlayerID != players["bob"].ID || row.Score != 25 {
		t.Errorf("Winner = %+v, want bob with 25", row)
	}

	// no more moves once finished
	_, err = e.SubmitTurn(ctx, gameID, sessionFor("alice"), "tee", 0)
	wantKind(t, err, KindInvalid)
}

func TestHostLeavingReelectsAndRotates(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob", "carol")
	startGame(t, e, gameID, sessionFor("alice"), nil)
	ctx := context.Background()

	res, err := e.Leave(ctx, gameID, sessionFor("alice"))
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if res.Finished {
		t.Fatal("game finished with two players remaining")
	}
	if res.PlayerID != players["alice"].ID {
		t.Errorf("leave result names %s, want alice", res.PlayerID)
	}

	if st.players[players["bob"].ID].Type != models.PlayerHost {
		t.Errorf("bob type = %s, want HOST after re-election", st.players[players["bob"].ID].Type)
	}
	g, _ := st.GetGame(ctx, gameID)
	if g.Status != models.StatusPlaying {
		t.Errorf("status = %s, want still PLAYING", g.Status)
	}
	if g.CurrentPlayerID.String != players["bob"].ID {
		t.Errorf("current player = %v, want re-elected host bob", g.CurrentPlayerID)
	}
}

func TestHostLeavingKeepsAnotherPlayersTurn(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{"apple": true})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob", "carol")
	startGame(t, e, gameID, sessionFor("alice"), nil)
	ctx := context.Background()

	// alice hands the turn to bob before leaving
	if _, err := e.SubmitTurn(ctx, gameID, sessionFor("alice"), "apple", 1); err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	res, err := e.Leave(ctx, gameID, sessionFor("alice"))
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if res.Finished {
		t.Fatal("game finished with two players remaining")
	}
	if st.players[players["bob"].ID].Type != models.PlayerHost {
		t.Errorf("bob type = %s, want HOST", st.players[players["bob"].ID].Type)
	}
	g, _ := st.GetGame(ctx, gameID)
	if g.CurrentPlayerID.String != players["bob"].ID {
		t.Errorf("current player changed away from bob")
	}
	if g.CurrentTurn != 1 {
		t.Errorf("current turn = %d, want 1", g.CurrentTurn)
	}
}

func TestLeaveUnderQuorumFinishesWithWinner(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{"apple": true})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob")
	startGame(t, e, gameID, sessionFor("alice"), nil)
	ctx := context.Background()

	if _, err := e.SubmitTurn(ctx, gameID, sessionFor("alice"), "apple", 5); err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	res, err := e.Leave(ctx, gameID, sessionFor("bob"))
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !res.Finished {
		t.Fatal("game should finish when fewer than two players remain")
	}
	if res.Winner == nil || res.Winner.PlayerID != players["alice"].ID {
		t.Fatalf("winner = %+v, want alice", res.Winner)
	}
	g, _ := st.GetGame(ctx, gameID)
	if g.Status != models.StatusFinished {
		t.Errorf("status = %s, want FINISHED", g.Status)
	}
	if g.WinnerID.String != players["alice"].ID {
		t.Errorf("game.winner_id = %v, want alice", g.WinnerID)
	}
}

func TestLastPlayerLeavingFinishesWithoutWinner(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, _ := newTestGame(t, e, st, "a", "alice")
	ctx := context.Background()

	res, err := e.Leave(ctx, gameID, sessionFor("alice"))
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !res.Finished {
		t.Fatal("empty game should be finished")
	}
	if res.Winner != nil {
		t.Errorf("winner = %+v, want none", res.Winner)
	}
}

func TestExpireDisconnected(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob", "carol")
	ctx := context.Background()

	// a reconnect before expiry keeps the player
	if _, err := e.Connect(ctx, gameID, sessionFor("bob")); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	res, err := e.ExpireDisconnected(ctx, gameID, players["bob"].ID)
	if err != nil {
		t.Fatalf("ExpireDisconnected: %v", err)
	}
	if res != nil {
		t.Fatal("connected player was removed")
	}

	if _, err := e.Disconnect(ctx, gameID, sessionFor("bob")); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	res, err = e.ExpireDisconnected(ctx, gameID, players["bob"].ID)
	if err != nil {
		t.Fatalf("ExpireDisconnected: %v", err)
	}
	if res == nil || res.PlayerID != players["bob"].ID {
		t.Fatalf("expected bob removed, got %+v", res)
	}
	if _, ok := st.players[players["bob"].ID]; ok {
		t.Error("bob still present after expiry")
	}

	// expiring an unknown player is a no-op
	res, err = e.ExpireDisconnected(ctx, gameID, "nope")
	if err != nil || res != nil {
		t.Errorf("unknown player expiry = %+v, %v, want nil, nil", res, err)
	}
}

func TestRestart(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{"apple": true})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob")
	startGame(t, e, gameID, sessionFor("alice"), nil)
	ctx := context.Background()

	// a running game cannot be restarted
	err := e.Restart(ctx, gameID, sessionFor("alice"))
	wantKind(t, err, KindInvalid)

	if _, err := e.SubmitTurn(ctx, gameID, sessionFor("alice"), "apple", 5); err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	// bob's departure ends the game with alice as winner
	if _, err := e.Leave(ctx, gameID, sessionFor("bob")); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, err := e.Join(ctx, gameID, "carol", sessionFor("carol")); err == nil {
		t.Fatal("joined a finished game")
	}

	err = e.Restart(ctx, gameID, sessionFor("missing"))
	wantKind(t, err, KindInvalid)

	if err := e.Restart(ctx, gameID, sessionFor("alice")); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	g, _ := st.GetGame(ctx, gameID)
	if g.Status != models.StatusWaiting {
		t.Fatalf("status = %s, want WAITING", g.Status)
	}
	if g.CurrentTurn != 0 || g.WinnerID.Valid || g.CurrentPlayerID.Valid {
		t.Errorf("restart left stale state: %+v", g)
	}
	if len(st.words[gameID]) != 0 {
		t.Errorf("restart kept %d words", len(st.words[gameID]))
	}
	if n := len([]rune(g.LastWord.String)); n != 1 {
		t.Errorf("restart seed = %q, want a single letter", g.LastWord.String)
	}
	if st.players[players["alice"].ID].Type != models.PlayerHost {
		t.Errorf("alice type = %s, want HOST", st.players[players["alice"].ID].Type)
	}

	// the lobby accepts new players again
	if _, err := e.Join(ctx, gameID, "carol", sessionFor("carol")); err != nil {
		t.Fatalf("Join after restart: %v", err)
	}
}

func TestRestartRevertsWinnerType(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, fixedDict{
		"apple": true, "elephant": true, "tee": true, "ear": true, "rat": true,
	})
	gameID, players := newTestGame(t, e, st, "a", "alice", "bob")
	mt := 5
	startGame(t, e, gameID, sessionFor("alice"), &SettingsOverrides{MaxTurns: &mt})
	ctx := context.Background()

	for _, m := range []struct{ session, word string }{
		{sessionFor("alice"), "apple"},
		{sessionFor("bob"), "elephant"},
		{sessionFor("alice"), "tee"},
		{sessionFor("bob"), "ear"},
		{sessionFor("alice"), "rat"},
	} {
		if _, err := e.SubmitTurn(ctx, gameID, m.session, m.word, 0); err != nil {
			t.Fatalf("SubmitTurn(%s): %v", m.word, err)
		}
	}
	if st.players[players["bob"].ID].Type != models.PlayerWinner {
		t.Fatalf("bob type = %s, want WINNER before restart", st.players[players["bob"].ID].Type)
	}
	if err := e.Restart(ctx, gameID, sessionFor("alice")); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if st.players[players["bob"].ID].Type != models.PlayerHuman {
		t.Errorf("bob type = %s, want HUMAN after restart", st.players[players["bob"].ID].Type)
	}
}
