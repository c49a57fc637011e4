package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/playshiri/backend/internal/bus"
	"github.com/playshiri/backend/internal/config"
	"github.com/playshiri/backend/internal/game"
	"github.com/playshiri/backend/internal/models"
	"github.com/playshiri/backend/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Gateway adapts websocket connections to the game core: it authenticates
// the session cookie, subscribes the client to the game's bus topic and
// relays events outward. Inbound messages are ignored; commands go through
// the HTTP API.
type Gateway struct {
	engine *game.Engine
	bus    *bus.Bus
	hub    *Hub
	rdb    *redis.Client
	cfg    *config.Config
}

func NewGateway(engine *game.Engine, b *bus.Bus, rdb *redis.Client, cfg *config.Config) *Gateway {
	return &Gateway{engine: engine, bus: b, hub: NewHub(), rdb: rdb, cfg: cfg}
}

// HandleWebSocket upgrades GET /games/:id/ws.
func (gw *Gateway) HandleWebSocket(c *gin.Context) {
	gameID := c.Param("id")
	ctx := c.Request.Context()

	g, err := gw.engine.Store().GetGame(ctx, gameID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "game not found"})
		return
	}

	var player *models.Player
	sessionKey := gw.sessionKey(c)
	if sessionKey != "" {
		player, err = gw.engine.Connect(ctx, gameID, sessionKey)
		if err != nil && !game.IsKind(err, game.KindNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "connection failed"})
			return
		}
	}
	// whoever has no seat may still watch a lobby that is open for joining
	if player == nil && g.Status != models.StatusWaiting {
		c.JSON(http.StatusForbidden, gin.H{"detail": "game is not open for spectating"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] upgrade error for game %s: %v", gameID, err)
		return
	}

	client := &Client{
		transport: newWSTransport(conn),
		gameID:    gameID,
		sub:       gw.bus.Subscribe(gameID),
		done:      make(chan struct{}),
	}
	if player != nil {
		client.playerID = player.ID
		log.Printf("[WS] player %s connected to game %s (session %s)",
			player.ID, gameID, session.Digest(sessionKey))
	} else {
		log.Printf("[WS] anonymous watcher connected to game %s", gameID)
	}
	gw.hub.register(client)
	gw.confirmSeat(ctx, client, sessionKey)

	gw.sendSnapshot(ctx, client)
	go gw.writePump(client)
	go gw.readPump(client, sessionKey)
}

// confirmSeat re-marks the player connected and cancels any pending grace
// removal once the client is registered. The teardown of a connection this
// one replaced can interleave with the handshake and flip the player to
// disconnected in between; re-asserting after registration means that
// bookkeeping cannot stick.
func (gw *Gateway) confirmSeat(ctx context.Context, client *Client, sessionKey string) {
	if client.playerID == "" {
		return
	}
	if _, err := gw.engine.Connect(ctx, client.gameID, sessionKey); err != nil && !game.IsKind(err, game.KindNotFound) {
		log.Printf("[WS] reconnect confirm failed for player %s in game %s: %v", client.playerID, client.gameID, err)
	}
	game.CancelGraceRemoval(ctx, gw.rdb, client.gameID, client.playerID)
}

// sessionKey extracts and verifies the session cookie; empty when absent or
// tampered with.
func (gw *Gateway) sessionKey(c *gin.Context) string {
	cookie, err := c.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	key, err := session.Verify(gw.cfg.JWTSecret, cookie)
	if err != nil {
		log.Printf("[WS] rejected session cookie: %v", err)
		return ""
	}
	return key
}

// sendSnapshot pushes the current full game state to a newly attached
// client so it does not have to wait for the next event.
func (gw *Gateway) sendSnapshot(ctx context.Context, client *Client) {
	view, err := gw.engine.Store().View(ctx, client.gameID)
	if err != nil {
		log.Printf("[WS] snapshot for game %s failed: %v", client.gameID, err)
		return
	}
	data, err := json.Marshal(map[string]interface{}{"type": bus.EventGameUpdated, "data": view})
	if err != nil {
		return
	}
	client.transport.Send(data)
}

// writePump relays bus events to the transport and keeps the connection
// alive with pings. It exits when the subscription or the transport closes.
func (gw *Gateway) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.close()
	}()

	for {
		select {
		case <-client.done:
			return
		case msg, ok := <-client.sub.C:
			if !ok {
				// topic retired; the final event has been delivered
				return
			}
			if err := client.transport.Send(msg); err != nil {
				log.Printf("[WS] write error for player %s in game %s: %v", client.playerID, client.gameID, err)
				return
			}
		case <-ticker.C:
			if err := client.transport.Ping(); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames (the core ignores them) and detects the
// close. On close it marks the player disconnected and schedules the grace
// removal job.
func (gw *Gateway) readPump(client *Client, sessionKey string) {
	defer gw.teardown(client, sessionKey)
	for {
		if _, err := client.transport.Recv(); err != nil {
			return
		}
	}
}

func (gw *Gateway) teardown(client *Client, sessionKey string) {
	gw.bus.Unsubscribe(client.sub)
	client.close()

	current := gw.hub.unregister(client)
	if client.playerID == "" || !current {
		// replaced by a reconnect; the new connection owns the player now
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := gw.engine.Disconnect(ctx, client.gameID, sessionKey); err != nil {
		if !game.IsKind(err, game.KindNotFound) {
			log.Printf("[WS] disconnect update failed for player %s: %v", client.playerID, err)
		}
		return
	}
	log.Printf("[WS] player %s disconnected from game %s", client.playerID, client.gameID)
	game.ScheduleGraceRemoval(ctx, gw.rdb, gw.cfg, client.gameID, client.playerID)
	game.PublishGameUpdated(ctx, gw.engine.Store(), gw.bus, client.gameID)
}
