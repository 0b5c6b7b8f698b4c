package dynamo

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/catalog-reviews/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
//
// Usernames and emails are kept unique with marker items in a second table
// ("username#<name>", "email#<address>") that are written in the same
// transaction as the user, each guarded by attribute_not_exists.
type UserRepo struct {
	client      API
	tableName   string
	uniqueTable string
}

func NewUserRepo(client API, tableName, uniqueTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, uniqueTable: uniqueTable}
}

type uniqueMarker struct {
	UniqueKey string `dynamodbav:"unique_key"`
	UserID    string `dynamodbav:"user_id"`
}

func usernameKey(username string) string { return "username#" + username }

func emailKey(email string) string { return "email#" + email }

// Create inserts u and its uniqueness markers atomically. A taken username
// or email fails the whole transaction with domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := marshalUser(u)
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(user_id)"),
		}},
	}
	names, err := r.markerPuts(u.UserID, usernameKey(u.Username), emailKey(u.Email))
	if err != nil {
		return err
	}
	items = append(items, names...)

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if failed := cancelledAt(err); failed != nil {
		return conflictFrom(failed, "", "username already taken", "email already registered")
	}
	return err
}

func marshalUser(u *domain.User) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	item[fieldUsernameSearch] = &types.AttributeValueMemberS{Value: strings.ToLower(u.Username)}
	return item, nil
}

// Replace overwrites prev with next, moving uniqueness markers when the
// username or email changed. The write fails with domain.ErrConflict if the
// stored user changed since prev was read or a new name is taken.
func (r *UserRepo) Replace(ctx context.Context, prev, next *domain.User) error {
	item, err := marshalUser(next)
	if err != nil {
		return err
	}
	stamp, err := attributevalue.Marshal(prev.UpdatedAt)
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:                 aws.String(r.tableName),
			Item:                      item,
			ConditionExpression:       aws.String("#u = :prev"),
			ExpressionAttributeNames:  map[string]string{"#u": fieldUpdatedAt},
			ExpressionAttributeValues: map[string]types.AttributeValue{":prev": stamp},
		}},
	}
	var added []string
	var removed []string
	if prev.Username != next.Username {
		added = append(added, usernameKey(next.Username))
		removed = append(removed, usernameKey(prev.Username))
	}
	if prev.Email != next.Email {
		added = append(added, emailKey(next.Email))
		removed = append(removed, emailKey(prev.Email))
	}
	puts, err := r.markerPuts(next.UserID, added...)
	if err != nil {
		return err
	}
	items = append(items, puts...)
	for _, k := range removed {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(r.uniqueTable),
			Key:       strKey(fieldUniqueKey, k),
		}})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if failed := cancelledAt(err); failed != nil {
		msgs := []string{"user was modified concurrently"}
		for _, k := range added {
			if strings.HasPrefix(k, "username#") {
				msgs = append(msgs, "username already taken")
			} else {
				msgs = append(msgs, "email already registered")
			}
		}
		return conflictFrom(failed, msgs...)
	}
	return err
}

func (r *UserRepo) markerPuts(userID string, keys ...string) ([]types.TransactWriteItem, error) {
	out := make([]types.TransactWriteItem, 0, len(keys))
	for _, k := range keys {
		item, err := attributevalue.MarshalMap(uniqueMarker{UniqueKey: k, UserID: userID})
		if err != nil {
			return nil, fmt.Errorf("marshal marker: %w", err)
		}
		out = append(out, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(r.uniqueTable),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(unique_key)"),
		}})
	}
	return out, nil
}

// conflictFrom maps the first failed transaction item to its message.
// An empty message means that item failing is unexpected.
func conflictFrom(failed []bool, msgs ...string) error {
	for i, f := range failed {
		if f && i < len(msgs) && msgs[i] != "" {
			return fmt.Errorf("%s: %w", msgs[i], domain.ErrConflict)
		}
	}
	return fmt.Errorf("transaction cancelled: %w", domain.ErrConflict)
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getByMarker(ctx, usernameKey(username))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getByMarker(ctx, emailKey(email))
}

func (r *UserRepo) getByMarker(ctx context.Context, key string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.uniqueTable),
		Key:            strKey(fieldUniqueKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var m uniqueMarker
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return r.Get(ctx, m.UserID)
}

// Update applies a partial update to fields that carry no uniqueness constraint.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(withUpdatedAt(updates))
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return err
}

// List returns up to limit users, optionally filtered by a case-insensitive
// username substring. cursor is a base64-encoded user_id used as
// ExclusiveStartKey. Pages follow table scan order and each page is sorted by
// username on its own, so the ordering is not global across pages.
//
// A filtered Scan can evaluate items without returning them, so List keeps
// scanning, asking only for the remaining count, until the page is full or the
// table is exhausted. The next cursor is empty only when nothing is left.
func (r *UserRepo) List(ctx context.Context, search string, limit int32, cursor string) ([]domain.User, string, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(r.tableName)}
	if search != "" {
		input.FilterExpression = aws.String("contains(#n, :s)")
		input.ExpressionAttributeNames = map[string]string{"#n": fieldUsernameSearch}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: strings.ToLower(search)},
		}
	}
	if cursor != "" {
		userID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrValidation)
		}
		input.ExclusiveStartKey = strKey(fieldUserID, userID)
	}

	users := []domain.User{}
	nextCursor := ""
	for int32(len(users)) < limit {
		input.Limit = aws.Int32(limit - int32(len(users)))
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, "", err
		}
		var page []domain.User
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, "", err
		}
		users = append(users, page...)

		v, ok := out.LastEvaluatedKey[fieldUserID].(*types.AttributeValueMemberS)
		if !ok {
			nextCursor = ""
			break
		}
		nextCursor = encodeCursor(v.Value)
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nextCursor, nil
}

func encodeCursor(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
