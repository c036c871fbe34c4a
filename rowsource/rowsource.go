// Package rowsource decodes JSON-lines batch input into prediction rows and
// provides file and S3 backed sources for batch runs. The upstream collaborator
// owns upload handling; this package owns only the row shape contract.
package rowsource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gurre/s3streamer"

	"github.com/stayml/cancelpredict/predictor"
)

// ErrCorruptRow is returned when a line cannot be decoded into a row of
// named scalar feature values.
var ErrCorruptRow = fmt.Errorf("corrupt row")

// Decoder decodes one JSONL line into a prediction row.
type Decoder interface {
	Decode(line []byte) (predictor.Row, error)
}

// JSONDecoder implements Decoder for JSON-lines input. Each line must be a
// non-empty object whose values are scalars (string, number, or boolean);
// nested structures have no feature encoding the endpoint understands.
type JSONDecoder struct{}

// NewJSONDecoder creates a new JSONDecoder instance
func NewJSONDecoder() *JSONDecoder {
	return &JSONDecoder{}
}

// Decode parses a single line into a prediction row.
func (d *JSONDecoder) Decode(line []byte) (predictor.Row, error) {
	var row predictor.Row
	if err := json.Unmarshal(line, &row); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}
	if len(row) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrCorruptRow)
	}

	for name, value := range row {
		switch value.(type) {
		case string, bool, float64:
		default:
			return nil, fmt.Errorf("%w: field %q is not a scalar", ErrCorruptRow, name)
		}
	}

	return row, nil
}

// S3Source reads batch rows from a JSONL object in S3, streaming lines rather
// than buffering the whole object.
type S3Source struct {
	streamer s3streamer.Streamer
	decoder  Decoder
}

// NewS3Source creates an S3Source over the given streamer.
func NewS3Source(streamer s3streamer.Streamer) *S3Source {
	return &S3Source{
		streamer: streamer,
		decoder:  NewJSONDecoder(),
	}
}

// Rows loads all rows from an s3://bucket/key JSONL object. Any corrupt line
// fails the whole load; batches are all-or-nothing.
func (s *S3Source) Rows(ctx context.Context, uri string) ([]predictor.Row, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid batch S3 URI: %w", err)
	}
	if parsed.Scheme != "s3" {
		return nil, fmt.Errorf("invalid batch S3 URI scheme: %s", parsed.Scheme)
	}
	bucket := parsed.Host
	key := strings.TrimPrefix(parsed.Path, "/")

	var rows []predictor.Row
	err = s.streamer.Stream(ctx, bucket, key, 0, func(line []byte, byteOffset int64) error {
		if len(bytes.TrimSpace(line)) == 0 {
			return nil
		}
		row, err := s.decoder.Decode(line)
		if err != nil {
			return fmt.Errorf("line at offset %d: %w", byteOffset, err)
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read batch input from %s: %w", uri, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("batch input %s contains no rows", uri)
	}
	return rows, nil
}

// FileRows loads all rows from a local JSONL file. Intended for CLI batch runs
// that do not stage input in S3.
func FileRows(path string) ([]predictor.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch input: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := NewJSONDecoder()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var rows []predictor.Row
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		row, err := decoder.Decode(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNum, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch input: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("batch input %s contains no rows", path)
	}
	return rows, nil
}
