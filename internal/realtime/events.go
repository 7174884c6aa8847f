// Package realtime fans chat events out to connected widgets and operator
// consoles. Events travel over Redis pub/sub channels, one per thread, so
// every server instance sees every publish regardless of which instance
// holds the socket.
package realtime

import (
	"fmt"

	"widget-chat-backend/internal/model"
)

const (
	EventMessageNew    = "message.new"
	EventMessageStatus = "message.status"
)

// ThreadChannel is the canonical channel for a thread's events.
func ThreadChannel(threadID string) string {
	return fmt.Sprintf("thread.%s", threadID)
}

// ClientChannel is the legacy per-visitor channel kept for consumers not
// yet migrated to thread-scoped channels. It carries message.new only.
func ClientChannel(clientID string) string {
	return fmt.Sprintf("client.%s", clientID)
}

type MessageBody struct {
	ID          string            `json:"id"`
	Direction   model.Direction   `json:"direction"`
	Text        string            `json:"text"`
	Payload     map[string]string `json:"payload,omitempty"`
	CreatedAt   string            `json:"created_at"`
	DeliveredAt string            `json:"delivered_at,omitempty"`
	ReadAt      string            `json:"read_at,omitempty"`
}

type MessageEvent struct {
	Event    string      `json:"event"`
	ThreadID string      `json:"thread_id"`
	Message  MessageBody `json:"message"`
}

type StatusEvent struct {
	Event     string   `json:"event"`
	ThreadID  string   `json:"thread_id"`
	Messages  []string `json:"messages"`
	Status    string   `json:"status"`
	Timestamp int64    `json:"timestamp"`
}

// LegacyMessage is the compact shape published on the client channel.
type LegacyMessage struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"clientId"`
	Text      string          `json:"text"`
	Direction model.Direction `json:"direction"`
	CreatedAt string          `json:"createdAt"`
}

func newMessageEvent(message model.MessageItem) MessageEvent {
	return MessageEvent{
		Event:    EventMessageNew,
		ThreadID: message.ThreadID,
		Message: MessageBody{
			ID:          message.MessageID,
			Direction:   message.Direction,
			Text:        message.Text,
			Payload:     message.Payload,
			CreatedAt:   message.CreatedAt,
			DeliveredAt: message.DeliveredAt,
			ReadAt:      message.ReadAt,
		},
	}
}
