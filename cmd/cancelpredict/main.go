// Package main implements the cancelpredict command line interface. It wires
// configuration, the AWS client manager, and the prediction dispatcher, and
// runs single or batch cancellation predictions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/stayml/cancelpredict/awsclient"
	"github.com/stayml/cancelpredict/batch"
	"github.com/stayml/cancelpredict/config"
	"github.com/stayml/cancelpredict/history"
	"github.com/stayml/cancelpredict/predictor"
	"github.com/stayml/cancelpredict/rowsource"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("cancelpredict", flag.ExitOnError)

	predictJSON := fs.String("predict", "", "Single booking record as a JSON object")
	batchInput := fs.String("batch", "", "Batch input: local JSONL file or s3://bucket/key")
	endpoint := fs.String("endpoint", "", "SageMaker endpoint name (defaults to SAGEMAKER_ENDPOINT_NAME)")
	region := fs.String("region", "", "AWS region (defaults to AWS_DEFAULT_REGION)")
	check := fs.Bool("check", false, "Test the AWS connection and exit")
	verifyAccess := fs.Bool("verify-access", false, "Verify invoke permission on the endpoint and exit")
	reportURI := fs.String("report", "", "S3 URI for the batch summary report")
	historyTable := fs.String("history-table", "", "DynamoDB table for prediction history (defaults to PREDICTION_HISTORY_TABLE)")
	timeout := fs.Duration("timeout", 0, "Inference invocation timeout (defaults to SAGEMAKER_INVOKE_TIMEOUT)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg := config.Load()
	if *endpoint != "" {
		cfg.EndpointName = *endpoint
	}
	if *historyTable != "" {
		cfg.HistoryTable = *historyTable
	}
	if *timeout > 0 {
		cfg.InvokeTimeout = *timeout
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	manager := awsclient.NewManager(cfg, logger)

	if *check {
		if !manager.TestConnection(ctx) {
			return fmt.Errorf("aws connection test failed")
		}
		fmt.Println("AWS connection successful")
		return nil
	}

	if *verifyAccess {
		if err := manager.VerifyInvokeAccess(ctx); err != nil {
			return fmt.Errorf("invoke access check failed: %w", err)
		}
		fmt.Printf("Invoke access verified for endpoint %s\n", cfg.EndpointName)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	smClient, err := manager.SageMakerRuntime(ctx, *region)
	if err != nil {
		return err
	}
	dispatcher := predictor.NewDispatcher(smClient, cfg.EndpointName, cfg.InvokeTimeout, logger)

	var store history.Store
	if cfg.HistoryTable != "" {
		ddbClient, err := manager.DynamoDB(ctx, *region)
		if err != nil {
			return err
		}
		store = history.NewDynamoDBStore(ddbClient, cfg.HistoryTable)
	}

	switch {
	case *predictJSON != "":
		return runSingle(ctx, dispatcher, store, *predictJSON)
	case *batchInput != "":
		return runBatch(ctx, manager, dispatcher, store, *batchInput, *reportURI, *region)
	default:
		return fmt.Errorf("either -predict or -batch is required")
	}
}

// runSingle predicts one booking record given as inline JSON.
func runSingle(ctx context.Context, dispatcher *predictor.Dispatcher, store history.Store, record string) error {
	var row predictor.Row
	if err := json.Unmarshal([]byte(record), &row); err != nil {
		return fmt.Errorf("invalid booking record: %w", err)
	}

	result, err := dispatcher.PredictOne(ctx, row)
	if err != nil {
		return err
	}

	outcome := "likely to be honoured"
	if result.Label == 1 {
		outcome = "likely to be cancelled"
	}
	fmt.Printf("Booking is %s (cancellation probability %.2f)\n", outcome, result.Probability)

	if store != nil {
		records := []history.Record{history.NewRecord("single", row, result)}
		if err := store.Save(ctx, records); err != nil {
			return fmt.Errorf("failed to record prediction history: %w", err)
		}
	}
	return nil
}

// runBatch predicts all rows from a local JSONL file or an S3 object.
func runBatch(ctx context.Context, manager *awsclient.Manager, dispatcher *predictor.Dispatcher, store history.Store, input, reportURI, region string) error {
	var rows []predictor.Row
	var err error
	if strings.HasPrefix(input, "s3://") {
		streamer, serr := manager.S3Streamer(ctx, region)
		if serr != nil {
			return serr
		}
		rows, err = rowsource.NewS3Source(streamer).Rows(ctx, input)
	} else {
		rows, err = rowsource.FileRows(input)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Predicting %d bookings against the inference endpoint\n", len(rows))
	start := time.Now()

	summary, err := batch.NewRunner(dispatcher).Run(ctx, rows)
	if err != nil {
		return fmt.Errorf("batch prediction failed: %w", err)
	}

	fmt.Println(summary)
	fmt.Printf("Elapsed: %s\n", time.Since(start))

	if reportURI != "" {
		s3Client, err := manager.S3(ctx, region)
		if err != nil {
			return err
		}
		uploader := batch.NewS3ReportUploader(s3Client)
		if err := uploader.UploadReport(ctx, reportURI, summary); err != nil {
			return err
		}
		fmt.Printf("Report uploaded to %s\n", reportURI)
	}

	if store != nil {
		records := make([]history.Record, 0, len(summary.Rows))
		for _, rr := range summary.Rows {
			records = append(records, history.NewRecord("batch", rr.Row, rr.Result))
		}
		if err := store.Save(ctx, records); err != nil {
			return fmt.Errorf("failed to record prediction history: %w", err)
		}
	}

	return nil
}
