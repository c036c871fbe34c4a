// Package batch drives a full set of booking records through the prediction
// dispatcher and computes summary statistics over the results.
package batch

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/stayml/cancelpredict/predictor"
)

// Predictor is the slice of the dispatcher the aggregator needs.
type Predictor interface {
	PredictMany(ctx context.Context, rows []predictor.Row) ([]predictor.Result, error)
}

// RowResult pairs one input row with its prediction, aligned by position.
type RowResult struct {
	Row    predictor.Row    `json:"row"`
	Result predictor.Result `json:"result"`
}

// Summary holds per-batch statistics. It is derived per request and never
// persisted across requests.
type Summary struct {
	StartTime              time.Time     `json:"startTime"`
	EndTime                time.Time     `json:"endTime"`
	Duration               time.Duration `json:"duration"`
	Total                  int           `json:"total"`
	PredictedCancellations int           `json:"predictedCancellations"`
	Rows                   []RowResult   `json:"rows"`
}

// MarshalJSON formats the summary for report output with a human-readable
// duration.
func (s Summary) MarshalJSON() ([]byte, error) {
	type Alias Summary
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(s),
		Duration: s.Duration.String(),
	})
}

// String returns a human-readable representation for console output.
func (s Summary) String() string {
	return fmt.Sprintf(
		"Batch completed in %s\n"+
			"Total bookings: %d\n"+
			"Predicted cancellations: %d",
		s.Duration,
		s.Total,
		s.PredictedCancellations,
	)
}

// Runner aggregates batch predictions over a dispatcher.
type Runner struct {
	predictor Predictor
}

// NewRunner creates a Runner over the given dispatcher.
func NewRunner(p Predictor) *Runner {
	return &Runner{predictor: p}
}

// Run predicts all rows in one dispatcher call and aggregates the results.
// Either the whole batch succeeds and a complete summary is returned, or the
// dispatcher's error propagates and nothing is aggregated.
func (r *Runner) Run(ctx context.Context, rows []predictor.Row) (Summary, error) {
	start := time.Now()

	results, err := r.predictor.PredictMany(ctx, rows)
	if err != nil {
		return Summary{}, err
	}

	paired := make([]RowResult, len(rows))
	cancellations := 0
	for i, result := range results {
		paired[i] = RowResult{Row: rows[i], Result: result}
		if result.Label == 1 {
			cancellations++
		}
	}

	end := time.Now()
	return Summary{
		StartTime:              start,
		EndTime:                end,
		Duration:               end.Sub(start),
		Total:                  len(rows),
		PredictedCancellations: cancellations,
		Rows:                   paired,
	}, nil
}
