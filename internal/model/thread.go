package model

import "fmt"

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func ThreadPK(siteKey, threadID string) string {
	return fmt.Sprintf("%s#%s", siteKey, threadID)
}

func MessagePK(threadID, messageID string) string {
	return fmt.Sprintf("%s#%s", threadID, messageID)
}

func DedupePK(threadID, dedupeKey string) string {
	return fmt.Sprintf("%s#%s", threadID, dedupeKey)
}

// ThreadItem is one conversation lifeline between a visitor and a site.
// Threads are never deleted, only closed and later reopened.
type ThreadItem struct {
	PK string `dynamodbav:"pk"`
	// VisitorPK mirrors ClientPK(siteKey, visitorId) as the byVisitor GSI
	// hash key.
	VisitorPK     string `dynamodbav:"visitorPk"`
	ThreadID      string `dynamodbav:"threadId"`
	SiteKey       string `dynamodbav:"siteKey"`
	VisitorID     string `dynamodbav:"visitorId"`
	Open          bool   `dynamodbav:"open"`
	ClosedAt      string `dynamodbav:"closedAt,omitempty"`
	ReopenedCount int    `dynamodbav:"reopenedCount"`
	CreatedAt     string `dynamodbav:"createdAt"`
	UpdatedAt     string `dynamodbav:"updatedAt"`
	LastMessageAt string `dynamodbav:"lastMessageAt,omitempty"`
}

type MessageItem struct {
	PK          string            `dynamodbav:"pk"`
	MessageID   string            `dynamodbav:"messageId"`
	ThreadID    string            `dynamodbav:"threadId"`
	SiteKey     string            `dynamodbav:"siteKey"`
	Direction   Direction         `dynamodbav:"direction"`
	Text        string            `dynamodbav:"text"`
	DedupeKey   string            `dynamodbav:"dedupeKey,omitempty"`
	SourceID    string            `dynamodbav:"sourceId,omitempty"`
	Payload     map[string]string `dynamodbav:"payload,omitempty"`
	DeliveredAt string            `dynamodbav:"deliveredAt,omitempty"`
	ReadAt      string            `dynamodbav:"readAt,omitempty"`
	CreatedAt   string            `dynamodbav:"createdAt"`
}

// DedupeItem backstops the check-then-write dedupe sequence with a
// storage-level uniqueness constraint: it is written with a conditional
// put on attribute_not_exists(pk).
type DedupeItem struct {
	PK        string `dynamodbav:"pk"`
	ThreadID  string `dynamodbav:"threadId"`
	DedupeKey string `dynamodbav:"dedupeKey"`
	MessageID string `dynamodbav:"messageId"`
	CreatedAt string `dynamodbav:"createdAt"`
}
