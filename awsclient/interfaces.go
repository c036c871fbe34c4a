// Package awsclient provides the AWS service abstractions used by the
// prediction service: typed interfaces over the SDK clients, and a manager
// that lazily constructs and caches one client per (service, region) pair.
package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SageMakerRuntimeClient defines the interface for invoking a hosted
// inference endpoint.
type SageMakerRuntimeClient interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// STSClient defines the interface for the account identity check used by the
// connectivity probe.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// S3Client defines the interface for S3 operations: reading batch input files
// and writing batch summary reports.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DynamoDBClient defines the interface for writing prediction history records.
type DynamoDBClient interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// IAMClient defines the interface for the invoke-permission preflight.
type IAMClient interface {
	SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error)
}

// Compile-time interface checks to ensure implementations satisfy interfaces
var (
	_ SageMakerRuntimeClient = (*SageMakerRuntimeClientImpl)(nil)
	_ STSClient              = (*STSClientImpl)(nil)
	_ S3Client               = (*S3ClientImpl)(nil)
	_ DynamoDBClient         = (*DynamoDBClientImpl)(nil)
	_ IAMClient              = (*IAMClientImpl)(nil)

	// AWS SDK interface checks to ensure SDK clients satisfy interfaces
	_ SageMakerRuntimeClient = (*sagemakerruntime.Client)(nil)
	_ STSClient              = (*sts.Client)(nil)
	_ S3Client               = (*s3.Client)(nil)
	_ DynamoDBClient         = (*dynamodb.Client)(nil)
	_ IAMClient              = (*iam.Client)(nil)
)
