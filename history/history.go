// Package history persists an audit trail of predictions to DynamoDB. It is
// optional: the request path never depends on it, and it is only wired when a
// history table is configured.
package history

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/stayml/cancelpredict/awsclient"
	"github.com/stayml/cancelpredict/predictor"
)

// maxBatchSize is the DynamoDB BatchWriteItem limit.
const maxBatchSize = 25

// Record is one audited prediction.
type Record struct {
	ID          string        `dynamodbav:"id"`
	Timestamp   time.Time     `dynamodbav:"ts"`
	Source      string        `dynamodbav:"source"` // "single" or "batch"
	Features    predictor.Row `dynamodbav:"features"`
	Label       int           `dynamodbav:"label"`
	Probability float64       `dynamodbav:"probability"`
}

// NewRecord builds a Record for one row/result pair.
func NewRecord(source string, row predictor.Row, result predictor.Result) Record {
	return Record{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Source:      source,
		Features:    row,
		Label:       result.Label,
		Probability: result.Probability,
	}
}

// Store persists prediction records.
type Store interface {
	Save(ctx context.Context, records []Record) error
}

// DynamoDBStore implements Store using DynamoDB batch writes.
type DynamoDBStore struct {
	client    awsclient.DynamoDBClient
	tableName string
}

// NewDynamoDBStore creates a DynamoDBStore writing to the given table.
func NewDynamoDBStore(client awsclient.DynamoDBClient, tableName string) *DynamoDBStore {
	return &DynamoDBStore{client: client, tableName: tableName}
}

// isThrottlingError returns true when DynamoDB reports a capacity constraint.
// These are recoverable by waiting; capacity refills over time.
func isThrottlingError(err error) bool {
	var throughputErr *types.ProvisionedThroughputExceededException
	var requestLimitErr *types.RequestLimitExceeded
	return errors.As(err, &throughputErr) || errors.As(err, &requestLimitErr)
}

// backoffWait sleeps for an exponentially increasing duration with jitter.
// Returns false if the context is cancelled during the wait.
func backoffWait(ctx context.Context, attempt int) bool {
	base := 100 * time.Millisecond
	maxDelay := 30 * time.Second

	delay := base * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	delay += time.Duration(rand.Int64N(int64(delay)))

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// Save writes records in chunks of at most 25 items. Throttling retries with
// backoff until the context is cancelled; other errors fail after a bounded
// number of attempts.
func (s *DynamoDBStore) Save(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for i := 0; i < len(records); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[i:end]

		requests := make([]types.WriteRequest, 0, len(chunk))
		for _, record := range chunk {
			item, err := attributevalue.MarshalMap(record)
			if err != nil {
				return fmt.Errorf("failed to encode history record: %w", err)
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		input := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: requests,
			},
		}

		const maxRetries = 5
		attempt := 0
		for {
			output, err := s.client.BatchWriteItem(ctx, input)
			if err != nil {
				if isThrottlingError(err) {
					if !backoffWait(ctx, attempt) {
						return ctx.Err()
					}
					attempt++
					continue
				}
				if attempt < maxRetries {
					if !backoffWait(ctx, attempt) {
						return ctx.Err()
					}
					attempt++
					continue
				}
				return fmt.Errorf("failed to save history after %d retries: %w", maxRetries, err)
			}

			// Unprocessed items indicate throttling.
			if len(output.UnprocessedItems) > 0 {
				input.RequestItems = output.UnprocessedItems
				if !backoffWait(ctx, attempt) {
					return ctx.Err()
				}
				attempt++
				continue
			}

			break
		}
	}

	return nil
}
