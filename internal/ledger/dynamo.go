package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ignite/kitsync/internal/domain"
)

// DynamoAPI is the subset of the DynamoDB client the ledger uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Dynamo implements Ledger on a single DynamoDB table keyed by pk/sk.
// Sends live at (DOC#<id>, SEND); stats at (DOC#<id>, STATS#<unix nanos>).
type Dynamo struct {
	client DynamoAPI
	table  string
}

// NewDynamo creates a DynamoDB-backed ledger.
func NewDynamo(client DynamoAPI, table string) *Dynamo {
	return &Dynamo{client: client, table: table}
}

type sendItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	SendRecord
}

type statsItem struct {
	PK          string                 `dynamodbav:"pk"`
	SK          string                 `dynamodbav:"sk"`
	BroadcastID string                 `dynamodbav:"broadcast_id"`
	Stats       domain.NormalizedStats `dynamodbav:"stats"`
	RecordedAt  time.Time              `dynamodbav:"recorded_at"`
}

func docKey(documentID string) string { return "DOC#" + documentID }

func sendKey(documentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: docKey(documentID)},
		"sk": &types.AttributeValueMemberS{Value: "SEND"},
	}
}

func (d *Dynamo) LookupSend(ctx context.Context, documentID string) (*SendRecord, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            sendKey(documentID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("lookup send: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item sendItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode send record: %w", err)
	}
	return &item.SendRecord, nil
}

func (d *Dynamo) RecordSend(ctx context.Context, rec SendRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	av, err := attributevalue.MarshalMap(sendItem{PK: docKey(rec.DocumentID), SK: "SEND", SendRecord: rec})
	if err != nil {
		return fmt.Errorf("encode send record: %w", err)
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("record send: %w", err)
	}
	return nil
}

func (d *Dynamo) MarkReconciled(ctx context.Context, documentID string) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 sendKey(documentID),
		ConditionExpression: aws.String("attribute_exists(pk)"),
		UpdateExpression:    aws.String("SET reconciled = :t, reconciled_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("mark reconciled: %w", err)
	}
	return nil
}

func (d *Dynamo) RecordStats(ctx context.Context, documentID, broadcastID string, s domain.NormalizedStats) error {
	now := time.Now().UTC()
	av, err := attributevalue.MarshalMap(statsItem{
		PK:          docKey(documentID),
		SK:          fmt.Sprintf("STATS#%d", now.UnixNano()),
		BroadcastID: broadcastID,
		Stats:       s,
		RecordedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("encode stats record: %w", err)
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	return nil
}
