package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of *dynamodb.Client used here.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps keys in a table whose partition key is idempotency_key
// and whose TTL attribute is expires_at.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
}

// dynamoRecord represents the DynamoDB item structure
type dynamoRecord struct {
	Key       string `dynamodbav:"idempotency_key"`
	Status    string `dynamodbav:"status"`
	OrderID   string `dynamodbav:"order_id,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

func NewDynamoStore(client DynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, ttl: ttl}
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (s *DynamoStore) Claim(ctx context.Context, key string, at time.Time) error {
	item := dynamoRecord{
		Key:       key,
		Status:    string(StatusInProgress),
		CreatedAt: at.UTC().Format(time.RFC3339Nano),
		ExpiresAt: at.Add(s.ttl).Unix(),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	// Expired items may linger until DynamoDB's TTL sweep, so they count as free.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(idempotency_key) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(at.Unix(), 10)},
		},
	})
	if isConditionFailed(err) {
		return ErrKeyExists
	}
	if err != nil {
		return fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrKeyNotFound
	}

	var item dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	return &Record{
		Key:       item.Key,
		Status:    Status(item.Status),
		OrderID:   item.OrderID,
		CreatedAt: createdAt,
		ExpiresAt: time.Unix(item.ExpiresAt, 0).UTC(),
	}, nil
}

func (s *DynamoStore) Complete(ctx context.Context, key, orderID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 keyAttr(key),
		UpdateExpression:    aws.String("SET #status = :completed, order_id = :order"),
		ConditionExpression: aws.String("attribute_exists(idempotency_key)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: string(StatusCompleted)},
			":order":     &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if isConditionFailed(err) {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

func (s *DynamoStore) Release(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 keyAttr(key),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(StatusInProgress)},
		},
	})
	if isConditionFailed(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
