package predictor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	json "github.com/goccy/go-json"
)

// mockSageMakerRuntime implements awsclient.SageMakerRuntimeClient for testing
type mockSageMakerRuntime struct {
	response []byte
	err      error
	inputs   []*sagemakerruntime.InvokeEndpointInput
}

func (m *mockSageMakerRuntime) InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: m.response}, nil
}

func TestPredictOneUnconfiguredEndpoint(t *testing.T) {
	d := NewDispatcher(nil, "", 0, nil)
	_, err := d.PredictOne(context.Background(), Row{"hotel": "Resort Hotel"})
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("expected ErrEndpointNotConfigured, got: %v", err)
	}
}

func TestPredictOneSuccess(t *testing.T) {
	mock := &mockSageMakerRuntime{
		response: []byte(`{"predictions": [1], "probabilities": [0.85]}`),
	}
	d := NewDispatcher(mock, "booking-cancellation", 0, nil)

	result, err := d.PredictOne(context.Background(), Row{"hotel": "Resort Hotel", "lead_time": 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != 1 {
		t.Errorf("expected label 1, got %d", result.Label)
	}
	if result.Probability != 0.85 {
		t.Errorf("expected probability 0.85, got %v", result.Probability)
	}
}

func TestPredictManySingleRoundTrip(t *testing.T) {
	mock := &mockSageMakerRuntime{
		response: []byte(`{"predictions": [1, 0], "probabilities": [0.91, 0.15]}`),
	}
	d := NewDispatcher(mock, "booking-cancellation", 0, nil)

	rows := []Row{
		{"hotel": "Resort Hotel", "lead_time": 30},
		{"hotel": "City Hotel", "lead_time": 2},
	}
	results, err := d.PredictMany(context.Background(), rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.inputs) != 1 {
		t.Fatalf("expected exactly one endpoint invocation, got %d", len(mock.inputs))
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Label != 1 || results[0].Probability != 0.91 {
		t.Errorf("unexpected result for row 0: %+v", results[0])
	}
	if results[1].Label != 0 || results[1].Probability != 0.15 {
		t.Errorf("unexpected result for row 1: %+v", results[1])
	}
}

func TestPredictManyPayloadShape(t *testing.T) {
	mock := &mockSageMakerRuntime{
		response: []byte(`{"predictions": [0], "probabilities": [0.1]}`),
	}
	d := NewDispatcher(mock, "booking-cancellation", 0, nil)

	_, err := d.PredictMany(context.Background(), []Row{{"hotel": "Resort Hotel", "adr": 100.5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := mock.inputs[0]
	if got := *input.EndpointName; got != "booking-cancellation" {
		t.Errorf("expected endpoint name 'booking-cancellation', got %q", got)
	}
	if got := *input.ContentType; got != "application/json" {
		t.Errorf("expected content type 'application/json', got %q", got)
	}

	var payload struct {
		Instances []map[string]any `json:"instances"`
	}
	if err := json.Unmarshal(input.Body, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if len(payload.Instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(payload.Instances))
	}
	if payload.Instances[0]["hotel"] != "Resort Hotel" {
		t.Errorf("unexpected instance: %v", payload.Instances[0])
	}
}

func TestPredictManyEmptyBatch(t *testing.T) {
	d := NewDispatcher(&mockSageMakerRuntime{}, "booking-cancellation", 0, nil)
	if _, err := d.PredictMany(context.Background(), nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestPredictManyInvocationError(t *testing.T) {
	mock := &mockSageMakerRuntime{err: errors.New("model server returned 503")}
	d := NewDispatcher(mock, "booking-cancellation", 0, nil)

	_, err := d.PredictMany(context.Background(), []Row{{"hotel": "Resort Hotel"}})
	if !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference, got: %v", err)
	}
	if !strings.Contains(err.Error(), "model server returned 503") {
		t.Errorf("expected underlying cause in message, got: %v", err)
	}
}

func TestPredictManyUnparsableResponse(t *testing.T) {
	mock := &mockSageMakerRuntime{response: []byte(`<html>bad gateway</html>`)}
	d := NewDispatcher(mock, "booking-cancellation", 0, nil)

	_, err := d.PredictMany(context.Background(), []Row{{"hotel": "Resort Hotel"}})
	if !errors.Is(err, ErrInference) {
		t.Errorf("expected ErrInference for unparsable body, got: %v", err)
	}
}

func TestPredictManyMalformedResponses(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"short labels", `{"predictions": [1], "probabilities": [0.9, 0.1]}`},
		{"short probabilities", `{"predictions": [1, 0], "probabilities": [0.9]}`},
		{"both short", `{"predictions": [1], "probabilities": [0.9]}`},
		{"missing arrays", `{}`},
		{"label out of domain", `{"predictions": [2, 0], "probabilities": [0.9, 0.1]}`},
		{"probability above one", `{"predictions": [1, 0], "probabilities": [1.5, 0.1]}`},
		{"negative probability", `{"predictions": [1, 0], "probabilities": [0.9, -0.1]}`},
	}

	rows := []Row{
		{"hotel": "Resort Hotel"},
		{"hotel": "City Hotel"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockSageMakerRuntime{response: []byte(tc.body)}
			d := NewDispatcher(mock, "booking-cancellation", 0, nil)

			_, err := d.PredictMany(context.Background(), rows)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got: %v", err)
			}
		})
	}
}

func TestPredictManyFloatLabels(t *testing.T) {
	// Serving containers commonly emit 1.0 and 0.0 for integer labels.
	mock := &mockSageMakerRuntime{
		response: []byte(`{"predictions": [1.0, 0.0], "probabilities": [0.7, 0.2]}`),
	}
	d := NewDispatcher(mock, "booking-cancellation", 0, nil)

	results, err := d.PredictMany(context.Background(), []Row{
		{"hotel": "Resort Hotel"},
		{"hotel": "City Hotel"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Label != 1 || results[1].Label != 0 {
		t.Errorf("unexpected labels: %+v", results)
	}
}
