package accuracy

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/abelbrown/moodcheck/internal/model"
)

const (
	happy = model.LabelHappy
	sad   = model.LabelSad
)

func rec(actual, predicted model.Label) model.EvaluatedRecord {
	return model.EvaluatedRecord{Actual: actual, Predicted: predicted}
}

func randomRecords(n int, seed uint64) []model.EvaluatedRecord {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	labels := []model.Label{happy, sad}
	out := make([]model.EvaluatedRecord, n)
	for i := range out {
		out[i] = rec(labels[r.IntN(2)], labels[r.IntN(2)])
	}
	return out
}

func TestAggregateEmpty(t *testing.T) {
	got, err := Aggregate(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (Tally{}) {
		t.Errorf("empty aggregate = %+v, want zero tally", got)
	}
	if !math.IsNaN(got.HappyAccuracy()) || !math.IsNaN(got.SadAccuracy()) || !math.IsNaN(got.TestError()) {
		t.Error("ratios of an empty tally should be NaN")
	}
}

func TestAggregatePerfectScenario(t *testing.T) {
	records := []model.EvaluatedRecord{
		{Actual: happy, Predicted: happy, Text: "I love this"},
		{Actual: sad, Predicted: sad, Text: "I hate this"},
		{Actual: happy, Predicted: happy, Text: "great day"},
		{Actual: sad, Predicted: sad, Text: "bad day"},
	}
	got, err := Aggregate(records)
	if err != nil {
		t.Fatal(err)
	}
	want := Tally{HappyCorrect: 2, HappyTotal: 2, SadCorrect: 2, SadTotal: 2}
	if got != want {
		t.Errorf("tally = %+v, want %+v", got, want)
	}
	if got.TestError() != 0 {
		t.Errorf("test error = %v, want 0", got.TestError())
	}
	if got.HappyAccuracy() != 1 || got.SadAccuracy() != 1 {
		t.Errorf("accuracies = %v/%v, want 1/1", got.HappyAccuracy(), got.SadAccuracy())
	}
}

func TestAggregateMixed(t *testing.T) {
	records := []model.EvaluatedRecord{
		rec(happy, happy), rec(happy, sad), rec(happy, happy),
		rec(sad, happy),
	}
	got, _ := Aggregate(records)
	want := Tally{HappyCorrect: 2, HappyTotal: 3, SadCorrect: 0, SadTotal: 1}
	if got != want {
		t.Fatalf("tally = %+v, want %+v", got, want)
	}
	if got.TestError() != 0.5 {
		t.Errorf("test error = %v, want 0.5", got.TestError())
	}
	if got.SadAccuracy() != 0 {
		t.Errorf("sad accuracy = %v, want 0", got.SadAccuracy())
	}
}

func TestAbsentClassIsUndefined(t *testing.T) {
	got, _ := Aggregate([]model.EvaluatedRecord{rec(happy, happy)})
	if !math.IsNaN(got.SadAccuracy()) {
		t.Errorf("sad accuracy = %v, want NaN", got.SadAccuracy())
	}
	if FormatRatio(got.SadAccuracy()) != "undefined" {
		t.Errorf("FormatRatio(NaN) = %q", FormatRatio(got.SadAccuracy()))
	}
	if FormatRatio(got.HappyAccuracy()) != "100.00%" {
		t.Errorf("FormatRatio(1) = %q", FormatRatio(got.HappyAccuracy()))
	}
}

func TestUnknownLabelAbortsPass(t *testing.T) {
	records := []model.EvaluatedRecord{
		rec(happy, happy),
		rec(sad, "NEUTRAL"),
		rec(happy, sad),
	}

	for name, run := range map[string]func() (Tally, error){
		"sequential": func() (Tally, error) { return Aggregate(records) },
		"parallel":   func() (Tally, error) { return AggregateParallel(context.Background(), records, 2) },
	} {
		t.Run(name, func(t *testing.T) {
			got, err := run()
			var ule *UnknownLabelError
			if !errors.As(err, &ule) {
				t.Fatalf("expected UnknownLabelError, got %v", err)
			}
			if ule.Position != 1 || ule.Field != "predicted" || ule.Label != "NEUTRAL" {
				t.Errorf("unexpected error detail: %+v", ule)
			}
			if got != (Tally{}) {
				t.Errorf("aborted pass should not return a partial tally, got %+v", got)
			}
		})
	}

	_, err := Aggregate([]model.EvaluatedRecord{rec("", happy)})
	var ule *UnknownLabelError
	if !errors.As(err, &ule) || ule.Field != "actual" {
		t.Errorf("empty actual label should be rejected, got %v", err)
	}
}

func TestCombineAssociativeCommutative(t *testing.T) {
	a := Tally{1, 2, 3, 4}
	b := Tally{5, 6, 7, 8}
	c := Tally{0, 9, 1, 1}

	if Combine(a, b) != Combine(b, a) {
		t.Error("combine is not commutative")
	}
	if Combine(Combine(a, b), c) != Combine(a, Combine(b, c)) {
		t.Error("combine is not associative")
	}
	if Combine(a, Tally{}) != a {
		t.Error("zero tally is not the identity")
	}
}

func TestAggregateSplitsCombine(t *testing.T) {
	records := randomRecords(500, 1)
	whole, err := Aggregate(records)
	if err != nil {
		t.Fatal(err)
	}

	for _, cut := range []int{0, 1, 137, 250, 499, 500} {
		left, _ := Aggregate(records[:cut])
		right, _ := Aggregate(records[cut:])
		if Combine(left, right) != whole {
			t.Errorf("cut %d: combine(%+v, %+v) != %+v", cut, left, right, whole)
		}
	}
}

func TestAggregateParallelMatchesSequential(t *testing.T) {
	records := randomRecords(2000, 7)
	want, _ := Aggregate(records)

	for _, workers := range []int{1, 2, 5, 16} {
		got, err := AggregateParallel(context.Background(), records, workers)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if got != want {
			t.Errorf("workers=%d: %+v, want %+v", workers, got, want)
		}
	}
}

func TestSummarizeCorrections(t *testing.T) {
	records := []model.CorrectionComparisonRecord{
		{Actual: happy, Before: sad, After: happy},   // fixed
		{Actual: sad, Before: sad, After: happy},     // regressed
		{Actual: happy, Before: happy, After: happy}, // unchanged
	}
	cs, err := SummarizeCorrections("m1", records, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Changed != 2 || cs.Fixed != 1 || cs.Regressed != 1 || cs.Dropped != 2 {
		t.Errorf("unexpected summary: %+v", cs)
	}
	if cs.Before.Correct() != 2 || cs.After.Correct() != 2 {
		t.Errorf("before/after correct = %d/%d, want 2/2", cs.Before.Correct(), cs.After.Correct())
	}

	_, err = SummarizeCorrections("m1", []model.CorrectionComparisonRecord{{Actual: happy, Before: happy, After: "?"}}, 0, 0)
	var ule *UnknownLabelError
	if !errors.As(err, &ule) {
		t.Errorf("expected UnknownLabelError, got %v", err)
	}
}

func TestSummaryAttempted(t *testing.T) {
	s := NewSummary("m", Tally{HappyCorrect: 1, HappyTotal: 2, SadCorrect: 1, SadTotal: 1}, 1, 0)
	if s.Evaluated != 3 || s.Attempted() != 4 {
		t.Errorf("evaluated=%d attempted=%d, want 3/4", s.Evaluated, s.Attempted())
	}
}
