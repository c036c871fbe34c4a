package rowsource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeValidRow(t *testing.T) {
	decoder := NewJSONDecoder()
	row, err := decoder.Decode([]byte(`{"hotel": "Resort Hotel", "lead_time": 30, "repeated_guest": true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row["hotel"] != "Resort Hotel" {
		t.Errorf("expected hotel 'Resort Hotel', got %v", row["hotel"])
	}
	if row["lead_time"] != float64(30) {
		t.Errorf("expected lead_time 30, got %v", row["lead_time"])
	}
	if row["repeated_guest"] != true {
		t.Errorf("expected repeated_guest true, got %v", row["repeated_guest"])
	}
}

func TestDecodeCorruptRows(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{"not json", `hotel,lead_time`},
		{"json array", `[1, 2, 3]`},
		{"empty object", `{}`},
		{"nested object", `{"hotel": {"name": "Resort Hotel"}}`},
		{"array value", `{"stays": [1, 2]}`},
		{"null value", `{"hotel": null}`},
	}

	decoder := NewJSONDecoder()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decoder.Decode([]byte(tc.line))
			if !errors.Is(err, ErrCorruptRow) {
				t.Errorf("expected ErrCorruptRow, got: %v", err)
			}
		})
	}
}

// mockStreamer implements s3streamer.Streamer over in-memory content
type mockStreamer struct {
	content map[string][]byte
	err     error
}

func (m *mockStreamer) Stream(ctx context.Context, bucket, key string, offset int64, fn func([]byte, int64) error) error {
	if m.err != nil {
		return m.err
	}
	content, ok := m.content[bucket+"/"+key]
	if !ok {
		return errors.New("no such key")
	}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	var off int64
	for scanner.Scan() {
		if err := fn(scanner.Bytes(), off); err != nil {
			return err
		}
		off += int64(len(scanner.Bytes())) + 1
	}
	return scanner.Err()
}

func TestS3SourceRows(t *testing.T) {
	streamer := &mockStreamer{content: map[string][]byte{
		"uploads/batch.jsonl": []byte(
			`{"hotel": "Resort Hotel", "lead_time": 30}` + "\n" +
				"\n" +
				`{"hotel": "City Hotel", "lead_time": 2}` + "\n"),
	}}
	source := NewS3Source(streamer)

	rows, err := source.Rows(context.Background(), "s3://uploads/batch.jsonl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["hotel"] != "Resort Hotel" || rows[1]["hotel"] != "City Hotel" {
		t.Errorf("rows out of order: %v", rows)
	}
}

func TestS3SourceCorruptLineFailsWholeLoad(t *testing.T) {
	streamer := &mockStreamer{content: map[string][]byte{
		"uploads/batch.jsonl": []byte(
			`{"hotel": "Resort Hotel"}` + "\n" +
				`not json` + "\n"),
	}}
	source := NewS3Source(streamer)

	_, err := source.Rows(context.Background(), "s3://uploads/batch.jsonl")
	if !errors.Is(err, ErrCorruptRow) {
		t.Errorf("expected ErrCorruptRow, got: %v", err)
	}
}

func TestS3SourceInvalidURI(t *testing.T) {
	source := NewS3Source(&mockStreamer{})
	testCases := []string{"http://bucket/key", "bucket/key"}
	for _, uri := range testCases {
		t.Run(uri, func(t *testing.T) {
			if _, err := source.Rows(context.Background(), uri); err == nil {
				t.Errorf("expected error for invalid URI: %s", uri)
			}
		})
	}
}

func TestS3SourceEmptyInput(t *testing.T) {
	streamer := &mockStreamer{content: map[string][]byte{
		"uploads/empty.jsonl": []byte("\n\n"),
	}}
	source := NewS3Source(streamer)

	if _, err := source.Rows(context.Background(), "s3://uploads/empty.jsonl"); err == nil {
		t.Error("expected error for input with no rows")
	}
}

func TestFileRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.jsonl")
	content := `{"hotel": "Resort Hotel", "adr": 100.5}` + "\n" +
		`{"hotel": "City Hotel", "adr": 80.0}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	rows, err := FileRows(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1]["adr"] != float64(80) {
		t.Errorf("expected adr 80, got %v", rows[1]["adr"])
	}
}

func TestFileRowsMissingFile(t *testing.T) {
	if _, err := FileRows(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileRowsCorruptLineReportsLineNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.jsonl")
	content := `{"hotel": "Resort Hotel"}` + "\n" + `{broken` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := FileRows(path)
	if !errors.Is(err, ErrCorruptRow) {
		t.Fatalf("expected ErrCorruptRow, got: %v", err)
	}
}
