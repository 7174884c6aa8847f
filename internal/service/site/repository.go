package site

import (
	"context"
	"errors"
	"strings"

	"widget-chat-backend/internal/database"
	"widget-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("site repository: not found")

type Repository interface {
	GetSiteByKey(ctx context.Context, siteKey string) (model.SiteItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetSiteByKey(ctx context.Context, siteKey string) (model.SiteItem, error) {
	var site model.SiteItem
	err := r.db.Client.GetItem(
		ctx,
		model.SitesTable,
		map[string]types.AttributeValue{
			"siteKey": &types.AttributeValueMemberS{Value: siteKey},
		},
		&site,
	)
	if err != nil {
		if isNotFound(err) {
			return model.SiteItem{}, ErrNotFound
		}
		return model.SiteItem{}, err
	}
	return site, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
