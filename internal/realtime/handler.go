package realtime

import (
	"context"
	"log"
	"net/http"
	"time"

	"widget-chat-backend/internal/env"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced upstream against the site's allow-list before the
	// upgrade is attempted.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func newRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     env.Get(env.ChatRedisURL),
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	})
}

type Handler struct {
	hub         *Hub
	redisClient *redis.Client
}

func NewHandler(h *Hub) *Handler {
	return &Handler{
		hub:         h,
		redisClient: newRedisClient(),
	}
}

// subscribeToChannel bridges a Redis channel into the hub so publishes
// from any server instance reach subscribers held by this one.
func (h *Handler) subscribeToChannel(channel string) {
	if _, exists := h.hub.room(channel); !exists {
		log.Printf("channel %s not found for subscription", channel)
		return
	}

	subscriber := h.redisClient.Subscribe(context.Background(), channel)
	defer subscriber.Close()

	ch := subscriber.Channel()
	for msg := range ch {
		h.hub.Broadcast <- &Frame{
			Channel:   channel,
			Content:   msg.Payload,
			Timestamp: time.Now().Unix(),
		}
	}
	log.Printf("unsubscribed from channel %s", channel)
}

// EnsureChannel creates the in-process room for a channel and starts its
// Redis subscription, once. Joins for the same thread can land on
// concurrent request goroutines; the hub arbitrates which one creates.
func (h *Handler) EnsureChannel(channel string) {
	if _, created := h.hub.ensureRoom(channel); !created {
		return
	}

	go h.subscribeToChannel(channel)
}

// JoinThread upgrades the request and attaches the subscriber to the
// thread's channel. Token or operator checks happen in the router before
// this is called.
func (h *Handler) JoinThread(w http.ResponseWriter, r *http.Request, threadID, subscriberID string) {
	channel := ThreadChannel(threadID)
	h.EnsureChannel(channel)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}

	cl := &Client{
		Conn:    conn,
		Send:    make(chan *Frame, 10),
		ID:      subscriberID,
		Channel: channel,
		done:    make(chan struct{}),
	}

	h.hub.Register <- cl

	go cl.keepAlive()
	go cl.writePump()
	go cl.readPump(h.hub)
}
