package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"widget-chat-backend/internal/model"

	"github.com/go-redis/redis/v8"
)

// Publisher pushes chat events onto Redis channels. Publishing is
// best-effort: failures are logged and never propagated, the persisted
// message or ack stays authoritative and consumers resynchronize through
// the list endpoint.
type Publisher struct {
	redisClient *redis.Client
	now         func() time.Time
}

func NewPublisher() *Publisher {
	return &Publisher{
		redisClient: newRedisClient(),
		now:         time.Now,
	}
}

func (p *Publisher) PublishMessage(thread model.ThreadItem, message model.MessageItem) {
	p.publish(ThreadChannel(thread.ThreadID), newMessageEvent(message))

	p.publish(ClientChannel(model.ClientPK(thread.SiteKey, thread.VisitorID)), LegacyMessage{
		ID:        message.MessageID,
		ClientID:  model.ClientPK(thread.SiteKey, thread.VisitorID),
		Text:      message.Text,
		Direction: message.Direction,
		CreatedAt: message.CreatedAt,
	})
}

func (p *Publisher) PublishStatus(thread model.ThreadItem, messageIDs []string, status string) {
	if len(messageIDs) == 0 {
		return
	}
	p.publish(ThreadChannel(thread.ThreadID), StatusEvent{
		Event:     EventMessageStatus,
		ThreadID:  thread.ThreadID,
		Messages:  messageIDs,
		Status:    status,
		Timestamp: p.now().Unix(),
	})
}

func (p *Publisher) publish(channel string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("realtime publish: marshal payload for %s: %v", channel, err)
		incPublishErrors()
		return
	}

	if err := p.redisClient.Publish(context.Background(), channel, string(body)).Err(); err != nil {
		log.Printf("realtime publish: channel %s: %v", channel, err)
		incPublishErrors()
		return
	}
	addPublished(1)
}
