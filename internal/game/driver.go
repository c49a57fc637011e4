package game

import (
	"context"
	"log"
	"time"

	"github.com/playshiri/backend/internal/bus"
	"github.com/playshiri/backend/internal/models"
)

const (
	tickInterval       = 1 * time.Second
	driverRestartDelay = 2 * time.Second
	driverMaxRestarts  = 3
)

// Driver is the authoritative per-game timer loop: one instance per PLAYING
// game, decrementing turn_time_left every second and forcing a timeout when
// it reaches zero. Ownership is claimed through a task_id CAS on the game
// row so that at most one driver ever ticks a game.
type Driver struct {
	engine *Engine
	bus    *bus.Bus
	gameID string
	taskID string
}

// StartDriver launches a supervised driver goroutine for the game. Transient
// exits are restarted with a short delay; a lost claim exits silently.
func StartDriver(ctx context.Context, engine *Engine, b *bus.Bus, gameID string) {
	go func() {
		for attempt := 0; attempt <= driverMaxRestarts; attempt++ {
			d := &Driver{engine: engine, bus: b, gameID: gameID, taskID: NewEntityID()}
			retriable, err := d.run(ctx)
			if err == nil || !retriable {
				return
			}
			log.Printf("[DRIVER] game %s: transient failure (attempt %d): %v", gameID, attempt+1, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(driverRestartDelay):
			}
		}
		log.Printf("[DRIVER] game %s: giving up after %d restarts", gameID, driverMaxRestarts)
	}()
}

// ResumeDrivers relaunches a driver for every PLAYING game. Run once at
// boot: a process death strands each running game's task_id and the deferred
// release never fires, so the stale claim is cleared before relaunching. It
// returns the number of games resumed.
func ResumeDrivers(ctx context.Context, engine *Engine, b *bus.Bus) (int, error) {
	store := engine.Store()
	ids, err := store.PlayingGameIDs(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, gameID := range ids {
		if err := store.ResetTask(ctx, gameID); err != nil {
			log.Printf("[DRIVER] game %s: clearing stale claim failed: %v", gameID, err)
			continue
		}
		log.Printf("[DRIVER] game %s: resuming after restart", gameID)
		StartDriver(ctx, engine, b, gameID)
		resumed++
	}
	return resumed, nil
}

// run claims the game and ticks it until it finishes. The second return
// reports whether the exit is worth a supervisor retry.
func (d *Driver) run(ctx context.Context) (bool, error) {
	store := d.engine.Store()
	claimed, err := store.ClaimTask(ctx, d.gameID, d.taskID)
	if err != nil {
		return true, err
	}
	if !claimed {
		log.Printf("[DRIVER] game %s: already owned by another driver", d.gameID)
		return false, nil
	}
	log.Printf("[DRIVER] game %s: claimed (task %s)", d.gameID, d.taskID)
	defer func() {
		if err := store.ReleaseTask(context.Background(), d.gameID, d.taskID); err != nil {
			log.Printf("[DRIVER] game %s: release failed: %v", d.gameID, err)
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
			done, err := d.tick(ctx)
			if err != nil {
				if IsKind(err, KindInvalid) {
					// the game moved under us (finished via leave); stop quietly
					return false, nil
				}
				return true, err
			}
			if done {
				return false, nil
			}
		}
	}
}

// tick decrements the stored countdown by one second and publishes the new
// remainder. Reaching zero charges the current player with a timeout.
func (d *Driver) tick(ctx context.Context) (bool, error) {
	var remaining int
	var playing bool
	err := d.engine.mutate(ctx, d.gameID, func(tx Tx) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		playing = g.Status == models.StatusPlaying
		if !playing {
			return nil
		}
		if g.TurnTimeLeft > 0 {
			g.TurnTimeLeft--
		}
		remaining = g.TurnTimeLeft
		return tx.UpdateGame(g)
	})
	if err != nil {
		return false, err
	}
	if !playing {
		return true, nil
	}

	d.bus.Publish(d.gameID, bus.EventTurnTick, map[string]int{"turnTimeLeft": remaining})
	if remaining > 0 {
		return false, nil
	}

	result, err := d.engine.ForceTimeout(ctx, d.gameID, d.taskID)
	if err != nil {
		return false, err
	}
	PublishGameUpdated(ctx, d.engine.Store(), d.bus, d.gameID)
	if result.Finished {
		PublishGameFinished(ctx, d.engine.Store(), d.bus, d.gameID, result.Winner)
		return true, nil
	}
	return false, nil
}

// PublishGameUpdated pushes a full state snapshot to the game's topic.
func PublishGameUpdated(ctx context.Context, store Store, b *bus.Bus, gameID string) {
	view, err := store.View(ctx, gameID)
	if err != nil {
		log.Printf("[BUS] game %s: snapshot for game_updated failed: %v", gameID, err)
		return
	}
	b.Publish(gameID, bus.EventGameUpdated, view)
}

// PublishGameFinished pushes the terminal event and retires the topic; it is
// the last message any subscriber of the game receives.
func PublishGameFinished(ctx context.Context, store Store, b *bus.Bus, gameID string, winner *models.LeaderboardRow) {
	view, err := store.View(ctx, gameID)
	if err != nil {
		log.Printf("[BUS] game %s: snapshot for game_finished failed: %v", gameID, err)
		return
	}
	b.Publish(gameID, bus.EventGameFinished, map[string]interface{}{
		"winner":      winner,
		"leaderboard": view.Leaderboard,
	})
	b.Retire(gameID)
}
