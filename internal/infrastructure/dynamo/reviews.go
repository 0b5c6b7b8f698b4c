package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/catalog-reviews/internal/domain"
)

// ReviewRepo stores reviews keyed by (title_id, author_id), so a second
// review by the same author on the same title collides on the primary key.
type ReviewRepo struct {
	client     API
	tableName  string
	titleTable string
}

func NewReviewRepo(client API, tableName, titleTable string) *ReviewRepo {
	return &ReviewRepo{client: client, tableName: tableName, titleTable: titleTable}
}

// Create inserts rv if its title exists and the author has not reviewed it yet.
// Both conditions are checked in one transaction: a missing title yields
// domain.ErrNotFound, an existing review domain.ErrConflict.
func (r *ReviewRepo) Create(ctx context.Context, rv *domain.Review) error {
	item, err := attributevalue.MarshalMap(rv)
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:           aws.String(r.titleTable),
				Key:                 strKey(fieldTitleID, rv.TitleID),
				ConditionExpression: aws.String("attribute_exists(title_id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(author_id)"),
			}},
		},
	})
	if failed := cancelledAt(err); failed != nil {
		if len(failed) > 0 && failed[0] {
			return fmt.Errorf("title not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("review already exists for this title: %w", domain.ErrConflict)
	}
	return err
}

// Get looks a review up by id through the review_id GSI.
func (r *ReviewRepo) Get(ctx context.Context, reviewID string) (*domain.Review, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexReviewID),
		KeyConditionExpression: aws.String("review_id = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: reviewID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	var rv domain.Review
	if err := attributevalue.UnmarshalMap(out.Items[0], &rv); err != nil {
		return nil, err
	}
	return &rv, nil
}

// ListByTitle returns every review of a title, newest first.
func (r *ReviewRepo) ListByTitle(ctx context.Context, titleID string) ([]domain.Review, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("title_id = :tid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: titleID},
		},
		ConsistentRead: aws.Bool(true),
	}
	var reviews []domain.Review
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Review
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		reviews = append(reviews, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].PubDate.After(reviews[j].PubDate) })
	return reviews, nil
}

func (r *ReviewRepo) Update(ctx context.Context, rv *domain.Review, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldTitleID, rv.TitleID, fieldAuthorID, rv.AuthorID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(review_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *ReviewRepo) Delete(ctx context.Context, rv *domain.Review) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(fieldTitleID, rv.TitleID, fieldAuthorID, rv.AuthorID),
		ConditionExpression: aws.String("attribute_exists(review_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	return err
}
