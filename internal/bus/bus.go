// Package bus is the in-process fan-out fabric for game events. Topics are
// keyed by game id; delivery is best-effort at-most-once per subscriber and
// ordered per (game, subscriber). A slow subscriber never blocks publishers:
// when a subscriber's queue is full the oldest queued event is dropped to
// make room for the new one.
package bus

import (
	"encoding/json"
	"log"
	"sync"
)

// Event kinds pushed to clients.
const (
	EventGameUpdated  = "game_updated"
	EventTurnTick     = "turn_tick"
	EventPlayerJoined = "player_joined"
	EventPlayerLeft   = "player_left"
	EventGameFinished = "game_finished"
)

// subscriberBuffer is the per-subscriber queue depth.
const subscriberBuffer = 64

// envelope is the wire framing for every pushed message.
type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Subscription receives marshaled events for one game until Unsubscribe or
// topic retirement closes C.
type Subscription struct {
	C      chan []byte
	gameID string
	closed bool
}

// Bus fans game events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

func New() *Bus {
	return &Bus{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe attaches a new subscriber to the game's topic.
func (b *Bus) Subscribe(gameID string) *Subscription {
	sub := &Subscription{C: make(chan []byte, subscriberBuffer), gameID: gameID}
	b.mu.Lock()
	defer b.mu.Unlock()
	topic, ok := b.topics[gameID]
	if !ok {
		topic = make(map[*Subscription]struct{})
		b.topics[gameID] = topic
	}
	topic[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches sub and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Bus) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	if topic, ok := b.topics[sub.gameID]; ok {
		delete(topic, sub)
		if len(topic) == 0 {
			delete(b.topics, sub.gameID)
		}
	}
	sub.closed = true
	close(sub.C)
}

// Publish marshals the event once and enqueues it to every subscriber of
// the game. On a full queue the oldest event is dropped.
func (b *Bus) Publish(gameID, kind string, payload interface{}) {
	data, err := json.Marshal(envelope{Type: kind, Data: payload})
	if err != nil {
		log.Printf("[BUS] marshal %s for game %s failed: %v", kind, gameID, err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[gameID] {
		for {
			select {
			case sub.C <- data:
			default:
				// queue full: drop the oldest and retry
				select {
				case <-sub.C:
					continue
				default:
				}
			}
			break
		}
	}
}

// Retire closes the game's topic after its final event. Subscribers drain
// their queues and see the channel close.
func (b *Bus) Retire(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.topics[gameID] {
		b.removeLocked(sub)
	}
}

// Subscribers reports the topic's current subscriber count.
func (b *Bus) Subscribers(gameID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[gameID])
}
