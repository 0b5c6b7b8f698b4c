package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/catalog-reviews/internal/domain"
)

// CommentRepo stores comments under their review (PK review_id, SK comment_id).
// comment_id is a ULID, so the sort key orders comments by creation time.
type CommentRepo struct {
	client      API
	tableName   string
	reviewTable string
}

func NewCommentRepo(client API, tableName, reviewTable string) *CommentRepo {
	return &CommentRepo{client: client, tableName: tableName, reviewTable: reviewTable}
}

// Create inserts c under parent, failing with domain.ErrNotFound if the
// review is deleted concurrently.
func (r *CommentRepo) Create(ctx context.Context, parent *domain.Review, c *domain.Comment) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:                aws.String(r.reviewTable),
				Key:                      compositeKey(fieldTitleID, parent.TitleID, fieldAuthorID, parent.AuthorID),
				ConditionExpression:      aws.String("#r = :rid"),
				ExpressionAttributeNames: map[string]string{"#r": fieldReviewID},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":rid": &types.AttributeValueMemberS{Value: parent.ReviewID},
				},
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(comment_id)"),
			}},
		},
	})
	if failed := cancelledAt(err); failed != nil {
		if len(failed) > 0 && failed[0] {
			return fmt.Errorf("review not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("comment already exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *CommentRepo) Get(ctx context.Context, reviewID, commentID string) (*domain.Comment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldReviewID, reviewID, fieldCommentID, commentID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("comment not found: %w", domain.ErrNotFound)
	}
	var c domain.Comment
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByReview returns the comments of a review, newest first.
func (r *CommentRepo) ListByReview(ctx context.Context, reviewID string) ([]domain.Comment, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("review_id = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: reviewID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	var comments []domain.Comment
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Comment
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		comments = append(comments, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return comments, nil
}

func (r *CommentRepo) Update(ctx context.Context, reviewID, commentID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldReviewID, reviewID, fieldCommentID, commentID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(comment_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("comment not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *CommentRepo) Delete(ctx context.Context, reviewID, commentID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(fieldReviewID, reviewID, fieldCommentID, commentID),
		ConditionExpression: aws.String("attribute_exists(comment_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("comment not found: %w", domain.ErrNotFound)
	}
	return err
}

// DeleteByReview removes every comment of a review. Comments already gone are skipped.
func (r *CommentRepo) DeleteByReview(ctx context.Context, reviewID string) error {
	comments, err := r.ListByReview(ctx, reviewID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       compositeKey(fieldReviewID, reviewID, fieldCommentID, c.CommentID),
		})
		if err != nil {
			return fmt.Errorf("delete comment %s: %w", c.CommentID, err)
		}
	}
	return nil
}
