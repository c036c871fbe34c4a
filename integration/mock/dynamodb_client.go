package mock

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBClient is a mock implementation of the awsclient.DynamoDBClient
// interface that records written items per table.
type DynamoDBClient struct {
	mu    sync.Mutex
	Items map[string][]map[string]types.AttributeValue
}

// NewDynamoDBClient creates an empty mock DynamoDB store.
func NewDynamoDBClient() *DynamoDBClient {
	return &DynamoDBClient{Items: make(map[string][]map[string]types.AttributeValue)}
}

// BatchWriteItem records every put request's item.
func (m *DynamoDBClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for table, requests := range params.RequestItems {
		for _, request := range requests {
			if request.PutRequest != nil {
				m.Items[table] = append(m.Items[table], request.PutRequest.Item)
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// ItemCount returns how many items were written to the table.
func (m *DynamoDBClient) ItemCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Items[table])
}
