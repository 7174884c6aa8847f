package realtime

import "sync"

// Frame is one serialized event on its way to a channel's subscribers.
type Frame struct {
	Channel   string `json:"channel"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type Room struct {
	Channel string
	Clients map[string]*Client
}

// Hub fans frames out to the clients of each room. Room membership is
// mutated only by the Run loop; the Rooms map itself is also written by
// request goroutines creating rooms on join, so it is guarded by mu.
type Hub struct {
	mu         sync.RWMutex
	Rooms      map[string]*Room
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *Frame
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *Frame),
	}
}

func (h *Hub) room(channel string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.Rooms[channel]
	return room, ok
}

// ensureRoom creates the room for a channel if it does not exist yet.
// Concurrent joins race on creation; it reports whether this caller won.
func (h *Hub) ensureRoom(channel string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.Rooms[channel]; ok {
		return room, false
	}
	room := &Room{
		Channel: channel,
		Clients: make(map[string]*Client),
	}
	h.Rooms[channel] = room
	setRooms(len(h.Rooms))
	return room, true
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			room, ok := h.room(client.Channel)
			if !ok {
				continue
			}
			room.Clients[client.ID] = client
			incConnections()

		case client := <-h.Unregister:
			room, ok := h.room(client.Channel)
			if !ok {
				continue
			}
			if _, ok := room.Clients[client.ID]; ok {
				delete(room.Clients, client.ID)
				close(client.Send)
				decConnections()
			}

		case frame := <-h.Broadcast:
			room, ok := h.room(frame.Channel)
			if !ok {
				continue
			}
			delivered := 0
			for _, client := range room.Clients {
				select {
				case client.Send <- frame:
					delivered++
				default:
					// Slow consumer: drop it rather than block the room.
					close(client.Send)
					delete(room.Clients, client.ID)
					decConnections()
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}
