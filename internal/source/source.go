// Package source reads raw labeled records from JSONL or CSV files.
// Records are returned as-is; field validation happens in the dataset
// builder so that malformed rows are handled by its policy.
package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abelbrown/moodcheck/internal/logging"
	"github.com/abelbrown/moodcheck/internal/model"
)

// ErrUnsupportedFormat is returned by Load for unknown file extensions.
var ErrUnsupportedFormat = errors.New("source: unsupported format")

const maxLine = 1 << 20

// ReadJSONL reads one JSON object per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]model.RawRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []model.RawRecord
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec model.RawRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("source: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return out, nil
}

// ReadCSV reads a CSV file with a header row. The label column is parsed as
// a number when possible; every other column is kept as a string.
func ReadCSV(r io.Reader) ([]model.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source: header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var out []model.RawRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		rec := make(model.RawRecord, len(header))
		for i, col := range header {
			if i >= len(row) {
				break
			}
			rec[col] = row[i]
		}
		if s, ok := rec[model.FieldLabel].(string); ok {
			if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				rec[model.FieldLabel] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Load reads path, choosing the reader by extension (.jsonl, .ndjson,
// .json or .csv).
func Load(path string) ([]model.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	defer f.Close()

	var recs []model.RawRecord
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson", ".json":
		recs, err = ReadJSONL(f)
	case ".csv":
		recs, err = ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	logging.Info("Loaded records", "path", path, "records", len(recs))
	return recs, nil
}
