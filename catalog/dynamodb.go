package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore reads videos from a table keyed by the numeric attribute "id".
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoStore) FindVideo(ctx context.Context, id int64) (Video, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
		},
	})
	if err != nil {
		return Video{}, false, fmt.Errorf("get video %d: %w", id, err)
	}
	if out.Item == nil {
		return Video{}, false, nil
	}

	var v Video
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return Video{}, false, fmt.Errorf("unmarshal video %d: %w", id, err)
	}
	return v, true, nil
}

func (s *DynamoStore) SaveVideo(ctx context.Context, v Video) error {
	if err := v.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal video %d: %w", v.ID, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put video %d: %w", v.ID, err)
	}
	return nil
}
