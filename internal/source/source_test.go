package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abelbrown/moodcheck/internal/model"
)

func TestReadJSONL(t *testing.T) {
	in := `{"label": 1, "text": "I love this", "id": "a1"}

{"label": 0, "text": "I hate this"}
{"text": "no label"}
`
	recs, err := ReadJSONL(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	lt, err := model.ExtractLabeledText(0, recs[0])
	if err != nil {
		t.Fatal(err)
	}
	if lt.Label != model.LabelHappy || lt.ID != "a1" {
		t.Errorf("unexpected first record: %+v", lt)
	}
	if _, err := model.ExtractLabeledText(2, recs[2]); !errors.Is(err, model.ErrMissingField) {
		t.Errorf("expected missing label, got %v", err)
	}
}

func TestReadJSONLSyntaxError(t *testing.T) {
	_, err := ReadJSONL(strings.NewReader("{\"label\": 1}\n{oops\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 error, got %v", err)
	}
}

func TestReadCSV(t *testing.T) {
	in := "Label,Text\n1,great day\n0,\"bad, bad day\"\nx,weird\n"
	recs, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0][model.FieldLabel] != 1.0 {
		t.Errorf("label not parsed: %#v", recs[0][model.FieldLabel])
	}
	if recs[1][model.FieldText] != "bad, bad day" {
		t.Errorf("quoted text = %#v", recs[1][model.FieldText])
	}
	// Non-numeric labels stay strings and fail extraction later.
	if _, err := model.ExtractLabeledText(2, recs[2]); !errors.Is(err, model.ErrMissingField) {
		t.Errorf("expected mistyped label error, got %v", err)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(""))
	if err != nil || recs != nil {
		t.Errorf("empty input = (%v, %v)", recs, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	jsonl := filepath.Join(dir, "tweets.jsonl")
	os.WriteFile(jsonl, []byte(`{"label":1,"text":"yay"}`+"\n"), 0o644)
	csvPath := filepath.Join(dir, "tweets.csv")
	os.WriteFile(csvPath, []byte("label,text\n0,boo\n"), 0o644)
	other := filepath.Join(dir, "tweets.parquet")
	os.WriteFile(other, []byte("x"), 0o644)

	for _, p := range []string{jsonl, csvPath} {
		recs, err := Load(p)
		if err != nil || len(recs) != 1 {
			t.Errorf("Load(%s) = (%d records, %v)", filepath.Base(p), len(recs), err)
		}
	}
	if _, err := Load(other); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
