// Package awsclient provides the AWS service abstractions used by the
// prediction service. This file contains the concrete implementations of the
// service interfaces, each a thin wrapper around the corresponding SDK client.
package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SageMakerRuntimeClientImpl implements SageMakerRuntimeClient using the AWS SDK.
type SageMakerRuntimeClientImpl struct {
	client *sagemakerruntime.Client
}

// NewSageMakerRuntimeClient creates a new SageMakerRuntimeClientImpl instance
func NewSageMakerRuntimeClient(client *sagemakerruntime.Client) *SageMakerRuntimeClientImpl {
	return &SageMakerRuntimeClientImpl{client: client}
}

// InvokeEndpoint implements the SageMakerRuntimeClient interface for endpoint invocation
func (c *SageMakerRuntimeClientImpl) InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	return c.client.InvokeEndpoint(ctx, params, optFns...)
}

// STSClientImpl implements STSClient using the AWS SDK.
type STSClientImpl struct {
	client *sts.Client
}

// NewSTSClient creates a new STSClientImpl instance
func NewSTSClient(client *sts.Client) *STSClientImpl {
	return &STSClientImpl{client: client}
}

// GetCallerIdentity implements the STSClient interface for the identity probe
func (c *STSClientImpl) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return c.client.GetCallerIdentity(ctx, params, optFns...)
}

// S3ClientImpl implements S3Client using the AWS SDK.
type S3ClientImpl struct {
	client *s3.Client
}

// NewS3Client creates a new S3ClientImpl instance
func NewS3Client(client *s3.Client) *S3ClientImpl {
	return &S3ClientImpl{client: client}
}

// GetObject implements the S3Client interface for reading objects
func (c *S3ClientImpl) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return c.client.GetObject(ctx, params, optFns...)
}

// PutObject implements the S3Client interface for writing objects
func (c *S3ClientImpl) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return c.client.PutObject(ctx, params, optFns...)
}

// DynamoDBClientImpl implements DynamoDBClient using the AWS SDK.
type DynamoDBClientImpl struct {
	client *dynamodb.Client
}

// NewDynamoDBClient creates a new DynamoDBClientImpl instance
func NewDynamoDBClient(client *dynamodb.Client) *DynamoDBClientImpl {
	return &DynamoDBClientImpl{client: client}
}

// BatchWriteItem implements the DynamoDBClient interface for batch writing items
func (c *DynamoDBClientImpl) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return c.client.BatchWriteItem(ctx, params, optFns...)
}

// IAMClientImpl implements IAMClient using the AWS SDK.
type IAMClientImpl struct {
	client *iam.Client
}

// NewIAMClient creates a new IAMClientImpl instance
func NewIAMClient(client *iam.Client) *IAMClientImpl {
	return &IAMClientImpl{client: client}
}

// SimulatePrincipalPolicy implements the IAMClient interface for permission simulation
func (c *IAMClientImpl) SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error) {
	return c.client.SimulatePrincipalPolicy(ctx, params, optFns...)
}
