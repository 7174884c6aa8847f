package message

import (
	"context"
	"errors"
	"sort"
	"strings"

	"widget-chat-backend/internal/database"
	"widget-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound     = errors.New("message repository: not found")
	ErrDuplicateKey = errors.New("message repository: dedupe key already claimed")
)

type Repository interface {
	GetThread(ctx context.Context, siteKey, threadID string) (model.ThreadItem, error)
	CreateMessage(ctx context.Context, message model.MessageItem) error
	GetMessage(ctx context.Context, threadID, messageID string) (model.MessageItem, error)
	GetMessageByDedupeKey(ctx context.Context, threadID, dedupeKey string) (model.MessageItem, error)
	ClaimDedupeKey(ctx context.Context, claim model.DedupeItem) error
	ListThreadMessages(ctx context.Context, threadID string) ([]model.MessageItem, error)
	StampMessage(ctx context.Context, threadID, messageID, status, stamp string) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetThread(ctx context.Context, siteKey, threadID string) (model.ThreadItem, error) {
	var thread model.ThreadItem
	err := r.db.Client.GetItem(
		ctx,
		model.ThreadsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ThreadPK(siteKey, threadID)},
		},
		&thread,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ThreadItem{}, ErrNotFound
		}
		return model.ThreadItem{}, err
	}
	return thread, nil
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) GetMessage(ctx context.Context, threadID, messageID string) (model.MessageItem, error) {
	var message model.MessageItem
	err := r.db.Client.GetItem(
		ctx,
		model.MessagesTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.MessagePK(threadID, messageID)},
		},
		&message,
	)
	if err != nil {
		if isNotFound(err) {
			return model.MessageItem{}, ErrNotFound
		}
		return model.MessageItem{}, err
	}
	return message, nil
}

// GetMessageByDedupeKey resolves the dedupe claim first and follows it to
// the message row, so the claim stays the single source of truth for which
// message owns a key.
func (r *DynamoRepository) GetMessageByDedupeKey(ctx context.Context, threadID, dedupeKey string) (model.MessageItem, error) {
	var claim model.DedupeItem
	err := r.db.Client.GetItem(
		ctx,
		model.MessageDedupeTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.DedupePK(threadID, dedupeKey)},
		},
		&claim,
	)
	if err != nil {
		if isNotFound(err) {
			return model.MessageItem{}, ErrNotFound
		}
		return model.MessageItem{}, err
	}
	return r.GetMessage(ctx, threadID, claim.MessageID)
}

func (r *DynamoRepository) ClaimDedupeKey(ctx context.Context, claim model.DedupeItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.MessageDedupeTable, claim, "pk")
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrDuplicateKey
	}
	return err
}

// ListThreadMessages returns the full thread history in ascending creation
// order, querying the byThread index with a scan fallback for environments
// where the GSI has not been provisioned.
func (r *DynamoRepository) ListThreadMessages(ctx context.Context, threadID string) ([]model.MessageItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		aws.String("byThread"),
		"threadId = :threadId",
		map[string]types.AttributeValue{
			":threadId": &types.AttributeValueMemberS{Value: threadID},
		},
		nil,
		nil,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.MessagesTable,
			"threadId = :threadId",
			map[string]types.AttributeValue{
				":threadId": &types.AttributeValueMemberS{Value: threadID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt != messages[j].CreatedAt {
			return messages[i].CreatedAt < messages[j].CreatedAt
		}
		return messages[i].MessageID < messages[j].MessageID
	})

	return messages, nil
}

func (r *DynamoRepository) StampMessage(ctx context.Context, threadID, messageID, status, stamp string) error {
	attr := "deliveredAt"
	if status == StatusRead {
		attr = "readAt"
	}
	return r.db.Client.UpdateItem(
		ctx,
		model.MessagesTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.MessagePK(threadID, messageID)},
		},
		"SET #stamp = :stamp",
		map[string]types.AttributeValue{
			":stamp": &types.AttributeValueMemberS{Value: stamp},
		},
		map[string]string{
			"#stamp": attr,
		},
		nil,
	)
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}

func isIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found")
}
