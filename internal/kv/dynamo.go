package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// dynamoItem is the table row layout: partition key "key", binary "value".
type dynamoItem struct {
	Key       string `dynamodbav:"key"`
	Value     []byte `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// Dynamo stores values in a single DynamoDB table keyed by "key".
type Dynamo struct {
	client    dynamoAPI
	tableName string
}

var _ Backend = (*Dynamo)(nil)

// NewDynamo builds a backend over the provided DynamoDB client.
func NewDynamo(client dynamoAPI, tableName string) *Dynamo {
	if client == nil {
		panic("kv: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("kv: table name cannot be empty")
	}
	return &Dynamo{client: client, tableName: tableName}
}

func (d *Dynamo) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("kv: dynamodb get %s: %w", key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("kv: dynamodb decode %s: %w", key, err)
	}
	return item.Value, nil
}

func (d *Dynamo) Set(ctx context.Context, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("kv: dynamodb encode %s: %w", key, err)
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("kv: dynamodb put %s: %w", key, err)
	}
	return nil
}
