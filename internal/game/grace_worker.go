package game

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playshiri/backend/internal/bus"
	"github.com/playshiri/backend/internal/config"
)

// graceSet is the redis sorted set holding pending disconnect-grace jobs,
// scored by the unix time at which the player may be removed.
const graceSet = "disconnect_grace"

func graceMember(gameID, playerID string) string {
	return fmt.Sprintf("g:%s:p:%s", gameID, playerID)
}

// parseGraceMember expects member format g:<gameID>:p:<playerID>.
func parseGraceMember(m string) (string, string) {
	parts := strings.Split(m, ":")
	if len(parts) == 4 && parts[0] == "g" && parts[2] == "p" {
		return parts[1], parts[3]
	}
	return "", ""
}

// ScheduleGraceRemoval enqueues a delayed removal for a disconnected player.
// A reconnect within the window cancels it.
func ScheduleGraceRemoval(ctx context.Context, rdb *redis.Client, cfg *config.Config, gameID, playerID string) {
	if rdb == nil {
		return
	}
	deadline := time.Now().Add(time.Duration(cfg.DisconnectGraceSecs()) * time.Second)
	member := graceMember(gameID, playerID)
	if err := rdb.ZAdd(ctx, graceSet, redis.Z{Score: float64(deadline.Unix()), Member: member}).Err(); err != nil {
		log.Printf("[GRACE] schedule failed for %s: %v", member, err)
		return
	}
	log.Printf("[GRACE] scheduled removal of player %s in game %s at %s", playerID, gameID, deadline.Format(time.RFC3339))
}

// CancelGraceRemoval drops a pending removal after a reconnect. Losing the
// race is harmless: the expiry re-checks is_connected before deleting.
func CancelGraceRemoval(ctx context.Context, rdb *redis.Client, gameID, playerID string) {
	if rdb == nil {
		return
	}
	if err := rdb.ZRem(ctx, graceSet, graceMember(gameID, playerID)).Err(); err != nil {
		log.Printf("[GRACE] cancel failed for player %s in game %s: %v", playerID, gameID, err)
	}
}

// StartGraceWorker polls the grace set and removes players whose disconnect
// window has elapsed and who never reconnected.
func StartGraceWorker(ctx context.Context, engine *Engine, b *bus.Bus, rdb *redis.Client, cfg *config.Config) {
	if rdb == nil || cfg == nil {
		log.Println("[GRACE] redis or config missing; grace worker not started")
		return
	}

	log.Println("[GRACE] grace worker started")
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.GraceWorkerPollSecs) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[GRACE] grace worker stopping")
				return
			case <-ticker.C:
				processGraceExpirations(ctx, engine, b, rdb)
			}
		}
	}()
}

func processGraceExpirations(ctx context.Context, engine *Engine, b *bus.Bus, rdb *redis.Client) {
	now := time.Now().Unix()
	members, err := rdb.ZRangeByScore(ctx, graceSet, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		log.Printf("[GRACE] fetch failed: %v", err)
		return
	}

	for _, m := range members {
		// claim the job; losing the ZRem race means another worker has it
		if removed, _ := rdb.ZRem(ctx, graceSet, m).Result(); removed == 0 {
			continue
		}
		gameID, playerID := parseGraceMember(m)
		if gameID == "" || playerID == "" {
			continue
		}
		result, err := engine.ExpireDisconnected(ctx, gameID, playerID)
		if err != nil {
			log.Printf("[GRACE] expire failed for player %s in game %s: %v", playerID, gameID, err)
			continue
		}
		if result == nil {
			continue // reconnected in time or already gone
		}
		log.Printf("[GRACE] removed player %s (%s) from game %s", result.PlayerID, result.Name, gameID)
		b.Publish(gameID, bus.EventPlayerLeft, map[string]string{
			"id":   result.PlayerID,
			"name": result.Name,
		})
		PublishGameUpdated(ctx, engine.Store(), b, gameID)
		if result.Finished {
			PublishGameFinished(ctx, engine.Store(), b, gameID, result.Winner)
		}
	}
}
