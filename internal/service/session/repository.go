package session

import (
	"context"
	"errors"
	"strings"

	"widget-chat-backend/internal/database"
	"widget-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("session repository: not found")

type Repository interface {
	GetClient(ctx context.Context, siteKey, visitorID string) (model.ClientItem, error)
	PutClient(ctx context.Context, client model.ClientItem) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetClient(ctx context.Context, siteKey, visitorID string) (model.ClientItem, error) {
	var client model.ClientItem
	err := r.db.Client.GetItem(
		ctx,
		model.ClientsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ClientPK(siteKey, visitorID)},
		},
		&client,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ClientItem{}, ErrNotFound
		}
		return model.ClientItem{}, err
	}
	return client, nil
}

func (r *DynamoRepository) PutClient(ctx context.Context, client model.ClientItem) error {
	return r.db.Client.PutItem(ctx, model.ClientsTable, client)
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
