// Package mock provides in-memory implementations of the awsclient interfaces
// for integration testing.
package mock

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

// SageMakerRuntimeClient is a mock implementation of the
// awsclient.SageMakerRuntimeClient interface. The Handler computes a response
// body from the invocation input, so tests can model the hosted endpoint's
// behavior per request.
type SageMakerRuntimeClient struct {
	mu          sync.Mutex
	Handler     func(input *sagemakerruntime.InvokeEndpointInput) ([]byte, error)
	Invocations []*sagemakerruntime.InvokeEndpointInput
}

// InvokeEndpoint records the invocation and delegates to the Handler.
func (m *SageMakerRuntimeClient) InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	m.mu.Lock()
	m.Invocations = append(m.Invocations, params)
	m.mu.Unlock()

	body, err := m.Handler(params)
	if err != nil {
		return nil, err
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: body}, nil
}

// InvocationCount returns how many times the endpoint was invoked.
func (m *SageMakerRuntimeClient) InvocationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Invocations)
}
