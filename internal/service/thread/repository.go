package thread

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

var ErrNotFound = errors.New("thread repository: not found")

type Repository interface {
	GetThread(ctx context.Context, siteKey, threadID string) (model.ThreadItem, error)
	GetOpenThread(ctx context.Context, siteKey, visitorID string) (model.ThreadItem, error)
	GetLatestThread(ctx context.Context, siteKey, visitorID string) (model.ThreadItem, error)
	CreateThread(ctx context.Context, thread model.ThreadItem) error
	ReopenThread(ctx context.Context, siteKey, threadID, nowStr string) (model.ThreadItem, error)
	CloseThread(ctx context.Context, siteKey, threadID, nowStr string) (model.ThreadItem, error)
	TouchThread(ctx context.Context, siteKey, threadID, nowStr string) error
	ListThreads(ctx context.Context, siteKey string, limit int) ([]model.ThreadItem, error)
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

func (r *DynamoRepository) GetOpenThread(ctx context.Context, siteKey, visitorID string) (model.ThreadItem, error) {
	threads, err := r.visitorThreads(ctx, siteKey, visitorID)
	if err != nil {
		return model.ThreadItem{}, err
	}
	for _, thread := range threads {
		if thread.Open {
			return thread, nil
		}
	}
	return model.ThreadItem{}, ErrNotFound
}

func (r *DynamoRepository) GetLatestThread(ctx context.Context, siteKey, visitorID string) (model.ThreadItem, error) {
	threads, err := r.visitorThreads(ctx, siteKey, visitorID)
	if err != nil {
		return model.ThreadItem{}, err
	}
	if len(threads) == 0 {
		return model.ThreadItem{}, ErrNotFound
	}
	return threads[0], nil
}

// visitorThreads returns a visitor's threads sorted most recent first,
// querying the byVisitor index with a scan fallback for environments where
// the GSI has not been provisioned.
func (r *DynamoRepository) visitorThreads(ctx context.Context, siteKey, visitorID string) ([]model.ThreadItem, error) {
	clientPK := model.ClientPK(siteKey, visitorID)
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ThreadsTable,
		aws.String("byVisitor"),
		"visitorPk = :visitorPk",
		map[string]types.AttributeValue{
			":visitorPk": &types.AttributeValueMemberS{Value: clientPK},
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
			model.ThreadsTable,
			"siteKey = :siteKey AND visitorId = :visitorId",
			map[string]types.AttributeValue{
				":siteKey":   &types.AttributeValueMemberS{Value: siteKey},
				":visitorId": &types.AttributeValueMemberS{Value: visitorID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	threads := make([]model.ThreadItem, 0, len(items))
	for _, item := range items {
		var thread model.ThreadItem
		if err := attributevalue.UnmarshalMap(item, &thread); err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}

	sort.Slice(threads, func(i, j int) bool {
		return activityStamp(threads[i]) > activityStamp(threads[j])
	})

	return threads, nil
}

func (r *DynamoRepository) CreateThread(ctx context.Context, thread model.ThreadItem) error {
	return r.db.Client.PutItem(ctx, model.ThreadsTable, thread)
}

func (r *DynamoRepository) ReopenThread(ctx context.Context, siteKey, threadID, nowStr string) (model.ThreadItem, error) {
	var updated model.ThreadItem
	err := r.db.Client.UpdateItem(
		ctx,
		model.ThreadsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ThreadPK(siteKey, threadID)},
		},
		"SET #open = :open, #updatedAt = :updatedAt, #reopenedCount = #reopenedCount + :one REMOVE #closedAt",
		map[string]types.AttributeValue{
			":open":      &types.AttributeValueMemberBOOL{Value: true},
			":updatedAt": &types.AttributeValueMemberS{Value: nowStr},
			":one":       &types.AttributeValueMemberN{Value: "1"},
		},
		map[string]string{
			"#open":          "open",
			"#updatedAt":     "updatedAt",
			"#reopenedCount": "reopenedCount",
			"#closedAt":      "closedAt",
		},
		&updated,
	)
	if err != nil {
		return model.ThreadItem{}, err
	}
	return updated, nil
}

func (r *DynamoRepository) CloseThread(ctx context.Context, siteKey, threadID, nowStr string) (model.ThreadItem, error) {
	var updated model.ThreadItem
	err := r.db.Client.UpdateItem(
		ctx,
		model.ThreadsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ThreadPK(siteKey, threadID)},
		},
		"SET #open = :open, #closedAt = :closedAt, #updatedAt = :updatedAt",
		map[string]types.AttributeValue{
			":open":      &types.AttributeValueMemberBOOL{Value: false},
			":closedAt":  &types.AttributeValueMemberS{Value: nowStr},
			":updatedAt": &types.AttributeValueMemberS{Value: nowStr},
		},
		map[string]string{
			"#open":      "open",
			"#closedAt":  "closedAt",
			"#updatedAt": "updatedAt",
		},
		&updated,
	)
	if err != nil {
		return model.ThreadItem{}, err
	}
	return updated, nil
}

func (r *DynamoRepository) TouchThread(ctx context.Context, siteKey, threadID, nowStr string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.ThreadsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ThreadPK(siteKey, threadID)},
		},
		"SET #lastMessageAt = :now, #updatedAt = :now",
		map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: nowStr},
		},
		map[string]string{
			"#lastMessageAt": "lastMessageAt",
			"#updatedAt":     "updatedAt",
		},
		nil,
	)
}

func (r *DynamoRepository) ListThreads(ctx context.Context, siteKey string, limit int) ([]model.ThreadItem, error) {
	items, err := r.db.Client.ScanItems(
		ctx,
		model.ThreadsTable,
		"siteKey = :siteKey",
		map[string]types.AttributeValue{
			":siteKey": &types.AttributeValueMemberS{Value: siteKey},
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	threads := make([]model.ThreadItem, 0, len(items))
	for _, item := range items {
		var thread model.ThreadItem
		if err := attributevalue.UnmarshalMap(item, &thread); err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}

	sort.Slice(threads, func(i, j int) bool {
		return activityStamp(threads[i]) > activityStamp(threads[j])
	})

	if limit > 0 && len(threads) > limit {
		threads = threads[:limit]
	}

	return threads, nil
}

func activityStamp(thread model.ThreadItem) string {
	if thread.LastMessageAt != "" {
		return thread.LastMessageAt
	}
	if thread.UpdatedAt != "" {
		return thread.UpdatedAt
	}
	return thread.CreatedAt
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
