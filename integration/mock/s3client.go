package mock

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is a mock implementation of the awsclient.S3Client interface
// backed by an in-memory object map keyed by "bucket/key". It also implements
// the s3streamer.Streamer contract so it can serve as a batch row source.
type S3Client struct {
	mu      sync.RWMutex
	Objects map[string][]byte
}

// NewS3Client creates an empty mock S3 store.
func NewS3Client() *S3Client {
	return &S3Client{Objects: make(map[string][]byte)}
}

// Put seeds an object directly into the store.
func (m *S3Client) Put(bucket, key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[bucket+"/"+key] = content
}

// Get returns a stored object's content.
func (m *S3Client) Get(bucket, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.Objects[bucket+"/"+key]
	return content, ok
}

// GetObject implements the S3Client interface for reading objects.
func (m *S3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	content, ok := m.Get(*params.Bucket, *params.Key)
	if !ok {
		return nil, fmt.Errorf("mock s3: key not found: %s/%s", *params.Bucket, *params.Key)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(content))}, nil
}

// PutObject implements the S3Client interface for writing objects.
func (m *S3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	content, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.Put(*params.Bucket, *params.Key, content)
	return &s3.PutObjectOutput{}, nil
}

// Stream reads a stored object line by line, invoking fn for each line with
// its byte offset.
func (m *S3Client) Stream(ctx context.Context, bucket, key string, offset int64, fn func([]byte, int64) error) error {
	content, ok := m.Get(bucket, key)
	if !ok {
		return fmt.Errorf("mock s3: key not found: %s/%s", bucket, key)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	byteOffset := offset
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(scanner.Bytes(), byteOffset); err != nil {
			return err
		}
		byteOffset += int64(len(scanner.Bytes())) + 1
	}
	return scanner.Err()
}
