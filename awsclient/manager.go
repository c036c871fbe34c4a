package awsclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/gurre/s3streamer"
	"go.uber.org/zap"

	"github.com/stayml/cancelpredict/config"
)

// ErrClientConstruction is returned when an AWS client could not be built.
// Failed constructions are never cached; the next call retries from scratch.
var ErrClientConstruction = errors.New("failed to construct aws client")

// invokeEndpointAction is the IAM action checked by the permission preflight.
const invokeEndpointAction = "sagemaker:InvokeEndpoint"

// clientKey identifies one cached client per (service, region) pair.
type clientKey struct {
	service string
	region  string
}

// Manager lazily constructs and caches AWS clients, one per (service, region)
// pair for the process lifetime. Credentials are validated before any
// construction attempt. Concurrent callers may race to build a client for the
// same key; the first successful insertion wins and redundant constructions
// are discarded.
type Manager struct {
	cfg    *config.Config
	logger *zap.Logger

	mu      sync.Mutex
	clients map[clientKey]any

	// Factory hooks, replaceable in tests.
	loadConfig          func(ctx context.Context, region string, creds config.Credentials) (awssdk.Config, error)
	newSageMakerRuntime func(awssdk.Config) SageMakerRuntimeClient
	newSTS              func(awssdk.Config) STSClient
	newS3               func(awssdk.Config) S3Client
	newDynamoDB         func(awssdk.Config) DynamoDBClient
	newIAM              func(awssdk.Config) IAMClient
}

// NewManager creates a Manager bound to the loaded configuration.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:        cfg,
		logger:     logger,
		clients:    make(map[clientKey]any),
		loadConfig: loadAWSConfig,
		newSageMakerRuntime: func(c awssdk.Config) SageMakerRuntimeClient {
			return sagemakerruntime.NewFromConfig(c)
		},
		newSTS:      func(c awssdk.Config) STSClient { return sts.NewFromConfig(c) },
		newS3:       func(c awssdk.Config) S3Client { return s3.NewFromConfig(c) },
		newDynamoDB: func(c awssdk.Config) DynamoDBClient { return dynamodb.NewFromConfig(c) },
		newIAM:      func(c awssdk.Config) IAMClient { return iam.NewFromConfig(c) },
	}
}

// loadAWSConfig builds an SDK config carrying the static credential triple.
func loadAWSConfig(ctx context.Context, region string, creds config.Credentials) (awssdk.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		),
	)
}

// resolveRegion resolves an explicit region or falls back to the configured default.
func (m *Manager) resolveRegion(region string) string {
	if region != "" {
		return region
	}
	return m.cfg.Region
}

// getClient returns the cached client for (service, region), constructing and
// inserting it on first demand. Construction happens outside the cache lock so
// a slow handshake never blocks unrelated keys.
func (m *Manager) getClient(ctx context.Context, service, region string, build func(awssdk.Config) any) (any, error) {
	if service == "" {
		return nil, fmt.Errorf("service name is required")
	}

	// Credentials are checked before any construction attempt so a
	// partially-initialized client is never cached.
	creds, err := m.cfg.Credentials()
	if err != nil {
		return nil, err
	}

	key := clientKey{service: service, region: m.resolveRegion(region)}

	m.mu.Lock()
	if client, ok := m.clients[key]; ok {
		m.mu.Unlock()
		return client, nil
	}
	m.mu.Unlock()

	awsCfg, err := m.loadConfig(ctx, key.region, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %v", ErrClientConstruction, service, key.region, err)
	}
	client := build(awsCfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.clients[key]; ok {
		// Lost the construction race; the cached client wins.
		return existing, nil
	}
	m.clients[key] = client
	m.logger.Info("created aws client",
		zap.String("service", service),
		zap.String("region", key.region))
	return client, nil
}

// SageMakerRuntime returns the cached SageMaker runtime client for the region.
func (m *Manager) SageMakerRuntime(ctx context.Context, region string) (SageMakerRuntimeClient, error) {
	c, err := m.getClient(ctx, "sagemaker-runtime", region, func(cfg awssdk.Config) any {
		return m.newSageMakerRuntime(cfg)
	})
	if err != nil {
		return nil, err
	}
	return c.(SageMakerRuntimeClient), nil
}

// STS returns the cached STS client for the region.
func (m *Manager) STS(ctx context.Context, region string) (STSClient, error) {
	c, err := m.getClient(ctx, "sts", region, func(cfg awssdk.Config) any {
		return m.newSTS(cfg)
	})
	if err != nil {
		return nil, err
	}
	return c.(STSClient), nil
}

// S3 returns the cached S3 client for the region.
func (m *Manager) S3(ctx context.Context, region string) (S3Client, error) {
	c, err := m.getClient(ctx, "s3", region, func(cfg awssdk.Config) any {
		return m.newS3(cfg)
	})
	if err != nil {
		return nil, err
	}
	return c.(S3Client), nil
}

// DynamoDB returns the cached DynamoDB client for the region.
func (m *Manager) DynamoDB(ctx context.Context, region string) (DynamoDBClient, error) {
	c, err := m.getClient(ctx, "dynamodb", region, func(cfg awssdk.Config) any {
		return m.newDynamoDB(cfg)
	})
	if err != nil {
		return nil, err
	}
	return c.(DynamoDBClient), nil
}

// IAM returns the cached IAM client for the region.
func (m *Manager) IAM(ctx context.Context, region string) (IAMClient, error) {
	c, err := m.getClient(ctx, "iam", region, func(cfg awssdk.Config) any {
		return m.newIAM(cfg)
	})
	if err != nil {
		return nil, err
	}
	return c.(IAMClient), nil
}

// S3Streamer returns a line streamer backed by the cached S3 client for the
// region. Only available when the cached client is a real SDK client.
func (m *Manager) S3Streamer(ctx context.Context, region string) (s3streamer.Streamer, error) {
	c, err := m.S3(ctx, region)
	if err != nil {
		return nil, err
	}
	raw, ok := c.(*s3.Client)
	if !ok {
		return nil, fmt.Errorf("s3 client does not support streaming")
	}
	return s3streamer.NewS3Streamer(raw), nil
}

// TestConnection probes the AWS account with an identity check. It is a
// diagnostic: errors are logged and swallowed, never propagated.
func (m *Manager) TestConnection(ctx context.Context) bool {
	stsClient, err := m.STS(ctx, "")
	if err != nil {
		m.logger.Error("failed to connect to aws", zap.Error(err))
		return false
	}

	ident, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		m.logger.Error("failed to connect to aws", zap.Error(err))
		return false
	}

	m.logger.Info("connected to aws",
		zap.String("account", awssdk.ToString(ident.Account)),
		zap.String("arn", awssdk.ToString(ident.Arn)))
	return true
}

// VerifyInvokeAccess checks that the caller is allowed to invoke the
// configured inference endpoint by simulating the IAM policy for
// sagemaker:InvokeEndpoint against the endpoint ARN.
func (m *Manager) VerifyInvokeAccess(ctx context.Context) error {
	if m.cfg.EndpointName == "" {
		return fmt.Errorf("no inference endpoint configured")
	}

	stsClient, err := m.STS(ctx, "")
	if err != nil {
		return err
	}
	ident, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("failed to resolve caller identity: %w", err)
	}

	iamClient, err := m.IAM(ctx, "")
	if err != nil {
		return err
	}

	endpointARN := fmt.Sprintf("arn:aws:sagemaker:%s:%s:endpoint/%s",
		m.resolveRegion(""), awssdk.ToString(ident.Account), m.cfg.EndpointName)

	out, err := iamClient.SimulatePrincipalPolicy(ctx, &iam.SimulatePrincipalPolicyInput{
		PolicySourceArn: ident.Arn,
		ActionNames:     []string{invokeEndpointAction},
		ResourceArns:    []string{endpointARN},
	})
	if err != nil {
		return fmt.Errorf("failed to simulate policy: %w", err)
	}

	for _, result := range out.EvaluationResults {
		if result.EvalDecision != iamtypes.PolicyEvaluationDecisionTypeAllowed {
			return fmt.Errorf("%s is %s for %s",
				awssdk.ToString(result.EvalActionName), result.EvalDecision, endpointARN)
		}
	}

	return nil
}
