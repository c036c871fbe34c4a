package batch

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"

	"github.com/stayml/cancelpredict/awsclient"
)

// ReportUploader uploads batch summaries for later inspection.
type ReportUploader interface {
	UploadReport(ctx context.Context, uri string, summary Summary) error
}

// S3ReportUploader implements ReportUploader using AWS S3.
type S3ReportUploader struct {
	client awsclient.S3Client
}

// NewS3ReportUploader creates a new S3ReportUploader instance.
func NewS3ReportUploader(client awsclient.S3Client) *S3ReportUploader {
	return &S3ReportUploader{client: client}
}

// UploadReport writes the summary as JSON to the given s3://bucket/key URI.
func (u *S3ReportUploader) UploadReport(ctx context.Context, uri string, summary Summary) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid report S3 URI: %w", err)
	}
	if parsed.Scheme != "s3" {
		return fmt.Errorf("invalid report S3 URI scheme: %s", parsed.Scheme)
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awssdk.String(parsed.Host),
		Key:         awssdk.String(strings.TrimPrefix(parsed.Path, "/")),
		Body:        bytes.NewReader(data),
		ContentType: awssdk.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}

	return nil
}
