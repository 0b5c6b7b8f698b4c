package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/catalog-reviews/internal/domain"
)

// TitleRepo provides typed DynamoDB operations for the titles table.
type TitleRepo struct {
	client    API
	tableName string
}

func NewTitleRepo(client API, tableName string) *TitleRepo {
	return &TitleRepo{client: client, tableName: tableName}
}

func (r *TitleRepo) Create(ctx context.Context, t *domain.Title) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal title: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(title_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("title already exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *TitleRepo) Get(ctx context.Context, titleID string) (*domain.Title, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldTitleID, titleID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("title not found: %w", domain.ErrNotFound)
	}
	var t domain.Title
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List scans the whole table and returns titles ordered by name.
// The catalog is small enough that a full scan is acceptable.
func (r *TitleRepo) List(ctx context.Context) ([]domain.Title, error) {
	var titles []domain.Title
	input := &dynamodb.ScanInput{TableName: aws.String(r.tableName)}
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Title
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		titles = append(titles, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.Slice(titles, func(i, j int) bool { return titles[i].Name < titles[j].Name })
	return titles, nil
}

func (r *TitleRepo) Update(ctx context.Context, titleID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(withUpdatedAt(updates))
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldTitleID, titleID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(title_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("title not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *TitleRepo) Delete(ctx context.Context, titleID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldTitleID, titleID),
		ConditionExpression: aws.String("attribute_exists(title_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("title not found: %w", domain.ErrNotFound)
	}
	return err
}
