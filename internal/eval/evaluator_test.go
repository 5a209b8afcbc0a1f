package eval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/moodcheck/internal/accuracy"
	"github.com/abelbrown/moodcheck/internal/classify"
	"github.com/abelbrown/moodcheck/internal/model"
	"github.com/abelbrown/moodcheck/internal/normalize"
	"github.com/abelbrown/moodcheck/internal/otel"
)

var validation = []model.LabeledText{
	{Label: model.LabelHappy, Text: "I love this"},
	{Label: model.LabelSad, Text: "I hate this"},
	{Label: model.LabelHappy, Text: "great day"},
	{Label: model.LabelSad, Text: "bad day"},
}

// lookup answers from a fixed table and fails for anything else.
func lookup(answers map[string]model.Label) classify.Func {
	return func(_ context.Context, _ string, text string) (model.Label, error) {
		if l, ok := answers[text]; ok {
			return l, nil
		}
		return "", classify.ErrServiceUnavailable
	}
}

var perfect = map[string]model.Label{
	"I love this": model.LabelHappy,
	"I hate this": model.LabelSad,
	"great day":   model.LabelHappy,
	"bad day":     model.LabelSad,
}

func evaluate(t *testing.T, ev *Evaluator, recs []model.LabeledText) Result {
	t.Helper()
	res, err := ev.Evaluate(context.Background(), recs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return res
}

func evaluateCorrections(t *testing.T, ev *Evaluator, recs []model.LabeledText, n normalize.Normalizer) CorrectionResult {
	t.Helper()
	res, err := ev.EvaluateCorrections(context.Background(), recs, n)
	if err != nil {
		t.Fatalf("EvaluateCorrections: %v", err)
	}
	return res
}

func TestCompare(t *testing.T) {
	rec, err := Compare(context.Background(), validation[0], lookup(perfect), "m")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Actual != model.LabelHappy || rec.Predicted != model.LabelHappy || rec.Text != "I love this" {
		t.Errorf("unexpected record: %+v", rec)
	}

	_, err = Compare(context.Background(), model.LabeledText{Label: model.LabelSad, Text: "unknown"}, lookup(perfect), "m")
	if !errors.Is(err, classify.ErrServiceUnavailable) {
		t.Errorf("expected classifier error to pass through, got %v", err)
	}
}

func TestEvaluatePerfectScenario(t *testing.T) {
	ev := NewEvaluator(lookup(perfect), Options{ModelID: "m", Workers: 4})
	res := evaluate(t, ev, validation)

	if len(res.Records) != 4 || res.Dropped != 0 {
		t.Fatalf("records=%d dropped=%d, want 4/0", len(res.Records), res.Dropped)
	}
	sum, err := res.Summarize(context.Background(), "m", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := accuracy.Tally{HappyCorrect: 2, HappyTotal: 2, SadCorrect: 2, SadTotal: 2}
	if sum.Tally != want {
		t.Errorf("tally = %+v, want %+v", sum.Tally, want)
	}
	if sum.Tally.TestError() != 0 {
		t.Errorf("test error = %v, want 0", sum.Tally.TestError())
	}
}

func TestEvaluateTimeoutIsDropped(t *testing.T) {
	c := classify.Func(func(ctx context.Context, modelID, text string) (model.Label, error) {
		if text == "great day" {
			return "", classify.ErrTimeout
		}
		return perfect[text], nil
	})

	var buf bytes.Buffer
	events := otel.NewLogger(&buf, "run")
	ev := NewEvaluator(c, Options{ModelID: "m", Workers: 2, Events: events})
	res := evaluate(t, ev, validation)
	events.Close()

	if len(res.Records) != 3 || res.Dropped != 1 {
		t.Fatalf("records=%d dropped=%d, want 3/1", len(res.Records), res.Dropped)
	}
	sum, err := res.Summarize(context.Background(), "m", 1)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Evaluated != 3 || sum.Dropped != 1 || sum.Attempted() != 4 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Tally.HappyTotal != 1 || sum.Tally.SadTotal != 2 {
		t.Errorf("tally = %+v", sum.Tally)
	}
	if !strings.Contains(buf.String(), `"kind":"classify.error"`) {
		t.Errorf("expected classify.error event, got %s", buf.String())
	}
}

func TestEvaluateCountIncorrectPolicy(t *testing.T) {
	c := classify.Func(func(_ context.Context, _ string, text string) (model.Label, error) {
		if text == "bad day" {
			return "", errors.New("connection reset")
		}
		return perfect[text], nil
	})
	ev := NewEvaluator(c, Options{ModelID: "m", Policy: FailCountIncorrect})
	res := evaluate(t, ev, validation)

	if len(res.Records) != 4 || res.Dropped != 0 || res.Failed != 1 {
		t.Fatalf("records=%d dropped=%d failed=%d", len(res.Records), res.Dropped, res.Failed)
	}
	failed := res.Records[3]
	if !failed.Failed || failed.Correct() {
		t.Errorf("failed record should be flagged incorrect: %+v", failed)
	}
	sum, _ := res.Summarize(context.Background(), "m", 1)
	if sum.Tally.SadCorrect != 1 || sum.Tally.SadTotal != 2 {
		t.Errorf("tally = %+v", sum.Tally)
	}
}

func TestEvaluatePreservesOrder(t *testing.T) {
	ev := NewEvaluator(lookup(perfect), Options{ModelID: "m", Workers: 8})
	res := evaluate(t, ev, validation)
	for i, r := range res.Records {
		if r.Text != validation[i].Text {
			t.Errorf("record %d text = %q, want %q", i, r.Text, validation[i].Text)
		}
	}
}

func TestUnknownPredictionAbortsSummary(t *testing.T) {
	c := classify.Func(func(context.Context, string, string) (model.Label, error) {
		return "NEUTRAL", nil
	})
	res := evaluate(t, NewEvaluator(c, Options{ModelID: "m"}), validation)
	_, err := res.Summarize(context.Background(), "m", 2)
	var ule *accuracy.UnknownLabelError
	if !errors.As(err, &ule) {
		t.Fatalf("expected UnknownLabelError, got %v", err)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{"": FailDrop, "drop": FailDrop, "count-incorrect": FailCountIncorrect} {
		got, err := ParseFailurePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseFailurePolicy(%q) = (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := ParseFailurePolicy("retry"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestIdentityNormalizerKeepsLabels(t *testing.T) {
	var calls atomic.Int64
	c := classify.Func(func(_ context.Context, _ string, text string) (model.Label, error) {
		calls.Add(1)
		// Deliberately wrong on some texts; before and after must still agree.
		if strings.Contains(text, "day") {
			return model.LabelSad, nil
		}
		return model.LabelHappy, nil
	})

	ev := NewEvaluator(c, Options{ModelID: "m", Workers: 3})
	res := evaluateCorrections(t, ev, validation, normalize.Identity)

	if len(res.Records) != len(validation) || res.Dropped != 0 {
		t.Fatalf("records=%d dropped=%d", len(res.Records), res.Dropped)
	}
	for i, r := range res.Records {
		if r.Before != r.After {
			t.Errorf("record %d: before %s != after %s", i, r.Before, r.After)
		}
		if r.BeforeText != r.AfterText {
			t.Errorf("record %d: identity changed text %q -> %q", i, r.BeforeText, r.AfterText)
		}
	}
	// Two classify calls per record, even though the texts are equal.
	if calls.Load() != int64(2*len(validation)) {
		t.Errorf("classify calls = %d, want %d", calls.Load(), 2*len(validation))
	}
}

func TestEvaluateWithCorrection(t *testing.T) {
	answers := map[string]model.Label{
		"gr8 day":   model.LabelSad,
		"great day": model.LabelHappy,
	}
	fix := normalize.Func(func(s string) string { return strings.ReplaceAll(s, "gr8", "great") })

	rec, err := EvaluateWithCorrection(context.Background(),
		model.LabeledText{Label: model.LabelHappy, Text: "gr8 day"}, lookup(answers), fix, "m")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Before != model.LabelSad || rec.After != model.LabelHappy || !rec.Fixed() {
		t.Errorf("unexpected comparison: %+v", rec)
	}
	if rec.AfterText != "great day" {
		t.Errorf("after text = %q", rec.AfterText)
	}
}

func TestCorrectionFailureDropsWholeRecord(t *testing.T) {
	// The normalized branch fails for "bad day".
	c := classify.Func(func(_ context.Context, _ string, text string) (model.Label, error) {
		if text == "BAD DAY" {
			return "", classify.ErrTimeout
		}
		return model.LabelSad, nil
	})
	upper := normalize.Func(strings.ToUpper)

	res := evaluateCorrections(t, NewEvaluator(c, Options{ModelID: "m"}), validation, upper)
	if len(res.Records) != 3 || res.Dropped != 1 {
		t.Fatalf("records=%d dropped=%d, want 3/1", len(res.Records), res.Dropped)
	}
	for _, r := range res.Records {
		if r.BeforeText == "bad day" {
			t.Error("partially failed record should not be emitted")
		}
	}

	cs, err := res.Summarize("m")
	if err != nil {
		t.Fatal(err)
	}
	if cs.Dropped != 1 || cs.Before.Total() != 3 {
		t.Errorf("unexpected correction summary: %+v", cs)
	}
}

type failingNormalizer struct{}

func (failingNormalizer) Normalize(context.Context, string) (string, error) {
	return "", errors.New("speller offline")
}

func TestNormalizerFailure(t *testing.T) {
	var buf bytes.Buffer
	events := otel.NewLogger(&buf, "run")
	ev := NewEvaluator(lookup(perfect), Options{ModelID: "m", Policy: FailCountIncorrect, Events: events})
	res := evaluateCorrections(t, ev, validation[:1], failingNormalizer{})
	events.Close()

	if res.Failed != 1 || len(res.Records) != 1 || !res.Records[0].Failed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Records[0].Before != model.LabelSad {
		t.Errorf("failed record should carry the wrong label, got %s", res.Records[0].Before)
	}
	if !strings.Contains(buf.String(), `"kind":"normalize.error"`) {
		t.Errorf("expected normalize.error event, got %s", buf.String())
	}
}

func TestNormalizerOutageIsTransient(t *testing.T) {
	var buf bytes.Buffer
	events := otel.NewLogger(&buf, "run")
	n := normalizeFunc(func(context.Context, string) (string, error) {
		return "", fmt.Errorf("%w: status 503", normalize.ErrServiceUnavailable)
	})
	ev := NewEvaluator(lookup(perfect), Options{ModelID: "m", Events: events})
	res := evaluateCorrections(t, ev, validation[:1], n)
	events.Close()

	if res.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", res.Dropped)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn","kind":"normalize.error"`) {
		t.Errorf("expected warn-level normalize.error event, got %s", out)
	}
}

type normalizeFunc func(context.Context, string) (string, error)

func (f normalizeFunc) Normalize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	c := classify.Func(func(ctx context.Context, _ string, text string) (model.Label, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return perfect[text], nil
	})

	var buf bytes.Buffer
	events := otel.NewLogger(&buf, "run")
	ev := NewEvaluator(c, Options{ModelID: "m", Workers: 1, Events: events})
	res, err := ev.Evaluate(ctx, validation)
	events.Close()

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Dropped != 0 || len(res.Records) != 0 {
		t.Errorf("cancelled pass should return no result, got %+v", res)
	}
	if calls.Load() != 1 {
		t.Errorf("classify calls = %d, want 1 (remaining records not started)", calls.Load())
	}
	if strings.Contains(buf.String(), "classify.error") {
		t.Errorf("cancellation reported as classify failure: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"kind":"pass.cancelled"`) {
		t.Errorf("expected pass.cancelled event, got %s", buf.String())
	}
}

func TestEvaluateCorrectionsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEvaluator(lookup(perfect), Options{ModelID: "m"}).EvaluateCorrections(ctx, validation, normalize.Identity)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHTTPOutOfSetLabelAbortsSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"label":"NEUTRAL"}`))
	}))
	defer server.Close()

	c := classify.NewHTTPClient(server.URL, time.Second, 0)
	res := evaluate(t, NewEvaluator(c, Options{ModelID: "m", Workers: 2}), validation)
	if res.Dropped != 0 || len(res.Records) != len(validation) {
		t.Fatalf("records=%d dropped=%d, want %d/0", len(res.Records), res.Dropped, len(validation))
	}

	_, err := res.Summarize(context.Background(), "m", 2)
	var ule *accuracy.UnknownLabelError
	if !errors.As(err, &ule) {
		t.Fatalf("expected UnknownLabelError, got %v", err)
	}
	if ule.Label != "NEUTRAL" {
		t.Errorf("unknown label = %q, want NEUTRAL", ule.Label)
	}
}
