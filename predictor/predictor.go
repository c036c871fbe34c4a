// Package predictor implements the prediction dispatch layer. It normalizes
// single-record and batch requests into one inference call contract against a
// hosted SageMaker endpoint and maps endpoint failures into distinguishable
// error classes.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/stayml/cancelpredict/awsclient"
)

var (
	// ErrEndpointNotConfigured is returned when no inference endpoint is
	// configured. This is a server misconfiguration, not a model failure.
	ErrEndpointNotConfigured = errors.New("no inference endpoint configured")

	// ErrMalformedResponse is returned when the endpoint response violates
	// the length or shape contract. Always fatal to the request.
	ErrMalformedResponse = errors.New("malformed endpoint response")

	// ErrInference wraps any failure during serialization, invocation, or
	// response parsing, carrying the underlying cause's text. Never retried.
	ErrInference = errors.New("inference failed")
)

// Row is a single booking record: named feature values as they arrive from a
// JSON request body or one row of an uploaded table. No schema is enforced
// here; unexpected or missing fields are the model endpoint's concern.
type Row map[string]any

// Result is the prediction for one row. Label 1 denotes predicted cancellation.
type Result struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

// invocationRequest is the payload shape the endpoint expects: one named-field
// record per input row.
type invocationRequest struct {
	Instances []Row `json:"instances"`
}

// invocationResponse is the endpoint's response: labels and probabilities
// aligned by position to the input rows. Labels decode as floats because
// serving containers commonly emit 1.0 for 1.
type invocationResponse struct {
	Predictions   []float64 `json:"predictions"`
	Probabilities []float64 `json:"probabilities"`
}

// Dispatcher turns normalized rows into inference calls. It is safe for
// concurrent use; every call is blocking and synchronous, one network round
// trip per batch.
type Dispatcher struct {
	client       awsclient.SageMakerRuntimeClient
	endpointName string
	timeout      time.Duration
	logger       *zap.Logger
}

// NewDispatcher creates a Dispatcher for the named endpoint. A zero timeout
// leaves the round trip bounded only by the caller's context.
func NewDispatcher(client awsclient.SageMakerRuntimeClient, endpointName string, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		client:       client,
		endpointName: endpointName,
		timeout:      timeout,
		logger:       logger,
	}
}

// PredictOne predicts a single booking record by wrapping it into a
// one-element batch.
func (d *Dispatcher) PredictOne(ctx context.Context, row Row) (Result, error) {
	results, err := d.PredictMany(ctx, []Row{row})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// PredictMany predicts a batch of booking records in a single endpoint
// invocation. Result order matches input row order. Any endpoint or transport
// failure propagates; no local fallback prediction is ever substituted.
func (d *Dispatcher) PredictMany(ctx context.Context, rows []Row) ([]Result, error) {
	if d == nil || d.client == nil || d.endpointName == "" {
		return nil, ErrEndpointNotConfigured
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("prediction batch is empty")
	}

	body, err := json.Marshal(invocationRequest{Instances: rows})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := d.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: awssdk.String(d.endpointName),
		Body:         body,
		ContentType:  awssdk.String("application/json"),
		Accept:       awssdk.String("application/json"),
	})
	if err != nil {
		d.logger.Error("endpoint invocation failed",
			zap.String("endpoint", d.endpointName),
			zap.Int("rows", len(rows)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	var resp invocationResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	results, err := normalize(resp, len(rows))
	if err != nil {
		return nil, err
	}

	d.logger.Info("invoked endpoint",
		zap.String("endpoint", d.endpointName),
		zap.Int("rows", len(rows)),
		zap.Duration("took", time.Since(start)))
	return results, nil
}

// normalize enforces the response contract: labels and probabilities must both
// have exactly one entry per input row, labels must be 0 or 1, and
// probabilities must lie in [0,1]. Mismatched lengths are never truncated or
// zipped.
func normalize(resp invocationResponse, want int) ([]Result, error) {
	if len(resp.Predictions) != want || len(resp.Probabilities) != want {
		return nil, fmt.Errorf("%w: got %d labels and %d probabilities for %d rows",
			ErrMalformedResponse, len(resp.Predictions), len(resp.Probabilities), want)
	}

	results := make([]Result, want)
	for i := 0; i < want; i++ {
		label := resp.Predictions[i]
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("%w: label %v at row %d is not 0 or 1",
				ErrMalformedResponse, label, i)
		}
		p := resp.Probabilities[i]
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: probability %v at row %d is outside [0,1]",
				ErrMalformedResponse, p, i)
		}
		results[i] = Result{Label: int(label), Probability: p}
	}
	return results, nil
}
