package http

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

const (
	defaultBatchSize  = 50
	defaultBatchPause = 10 * time.Millisecond
	dispatchQueue     = 1024
	dispatcherIdle    = time.Minute
)

func gameRoom(gameID string) string     { return "game:" + gameID }
func hostRoom(gameID string) string     { return "host:" + gameID }
func playerRoom(playerID string) string { return "player:" + playerID }

type delivery struct {
	room  string
	data  []byte
	close string // connection to close after delivery
}

// dispatcher delivers the events of one game in order.
type dispatcher struct {
	key  string
	jobs chan delivery
}

// Hub is the connection directory. Rooms hold connection ids; recipients are
// resolved when an event is delivered, not when it is emitted, so a client
// that joined in between still receives it. Each game has its own dispatcher
// goroutine that fans large rooms out in batches.
type Hub struct {
	batchSize  int
	batchPause time.Duration

	mu          sync.RWMutex
	conns       map[string]*Client
	rooms       map[string]map[string]struct{}
	playerGame  map[string]string
	dispatchers map[string]*dispatcher
	closed      bool
	wg          sync.WaitGroup
}

func NewHub(batchSize int, batchPause time.Duration) *Hub {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchPause < 0 {
		batchPause = defaultBatchPause
	}
	return &Hub{
		batchSize:   batchSize,
		batchPause:  batchPause,
		conns:       make(map[string]*Client),
		rooms:       make(map[string]map[string]struct{}),
		playerGame:  make(map[string]string),
		dispatchers: make(map[string]*dispatcher),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	_, playerID, _ := c.binding()
	h.mu.Lock()
	delete(h.conns, c.id)
	if playerID != "" && len(h.rooms[playerRoom(playerID)]) <= 1 {
		delete(h.playerGame, playerID)
	}
	for name, members := range h.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, name)
		}
	}
	h.mu.Unlock()
	c.shutdown()
}

// bind moves c into the rooms of gameID for its role.
func (h *Hub) bind(c *Client, gameID string, r role, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, members := range h.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, name)
		}
	}
	h.joinLocked(gameRoom(gameID), c.id)
	switch r {
	case roleHost:
		h.joinLocked(hostRoom(gameID), c.id)
	case rolePlayer:
		if playerID != "" {
			h.joinLocked(playerRoom(playerID), c.id)
			h.playerGame[playerID] = gameID
		}
	}
	c.mu.Lock()
	c.gameID, c.playerID, c.role = gameID, playerID, r
	c.mu.Unlock()
}

func (h *Hub) joinLocked(room, connID string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[connID] = struct{}{}
}

// RoomSize reports how many connections are in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ToGame(gameID, event string, payload any) {
	h.emit(gameID, gameRoom(gameID), event, payload)
}

func (h *Hub) ToHost(gameID, event string, payload any) {
	h.emit(gameID, hostRoom(gameID), event, payload)
}

func (h *Hub) ToPlayer(playerID, event string, payload any) {
	h.mu.RLock()
	key := h.playerGame[playerID]
	h.mu.RUnlock()
	if key == "" {
		key = playerRoom(playerID)
	}
	h.emit(key, playerRoom(playerID), event, payload)
}

// CloseAfter closes connID once everything queued for gameID before it went out.
func (h *Hub) CloseAfter(gameID, connID string) {
	if connID == "" {
		return
	}
	h.enqueue(gameID, delivery{close: connID})
}

func (h *Hub) emit(key, room, event string, payload any) {
	data, err := json.Marshal(outboundMessage[any]{Type: event, Payload: payload})
	if err != nil {
		log.Printf("hub marshal %s: %v", event, err)
		return
	}
	h.enqueue(key, delivery{room: room, data: data})
}

func (h *Hub) enqueue(key string, d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	disp, ok := h.dispatchers[key]
	if !ok {
		disp = &dispatcher{key: key, jobs: make(chan delivery, dispatchQueue)}
		h.dispatchers[key] = disp
		h.wg.Add(1)
		go h.run(disp)
	}
	select {
	case disp.jobs <- d:
	default:
		log.Printf("hub queue full key=%s room=%s, dropping", key, d.room)
	}
}

func (h *Hub) run(d *dispatcher) {
	defer h.wg.Done()
	idle := time.NewTimer(dispatcherIdle)
	defer idle.Stop()
	for {
		select {
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			h.deliver(job)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(dispatcherIdle)
		case <-idle.C:
			h.mu.Lock()
			if len(d.jobs) == 0 && h.dispatchers[d.key] == d {
				delete(h.dispatchers, d.key)
				h.mu.Unlock()
				return
			}
			h.mu.Unlock()
			idle.Reset(dispatcherIdle)
		}
	}
}

func (h *Hub) recipients(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[room]
	out := make([]*Client, 0, len(members))
	for id := range members {
		if c, ok := h.conns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) deliver(d delivery) {
	if d.close != "" {
		h.mu.RLock()
		c := h.conns[d.close]
		h.mu.RUnlock()
		if c != nil {
			c.shutdown()
		}
		return
	}
	targets := h.recipients(d.room)
	for i, c := range targets {
		if i > 0 && i%h.batchSize == 0 && h.batchPause > 0 {
			time.Sleep(h.batchPause)
		}
		c.enqueue(d.data)
	}
}

// Close stops every dispatcher after its queue drains and closes all connections.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for key, d := range h.dispatchers {
		close(d.jobs)
		delete(h.dispatchers, key)
	}
	h.mu.Unlock()
	h.wg.Wait()

	h.mu.RLock()
	conns := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.shutdown()
	}
}
