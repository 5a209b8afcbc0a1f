// Package accuracy reduces evaluated records into per-class correct/total
// counts and derives the accuracy figures reported for a run.
package accuracy

import (
	"context"
	"fmt"
	"math"

	"github.com/abelbrown/moodcheck/internal/model"
	"github.com/abelbrown/moodcheck/internal/work"
)

// Tally is the 2x2 confusion summary restricted to HAPPY and SAD.
// The zero value is the identity for Combine.
type Tally struct {
	HappyCorrect int
	HappyTotal   int
	SadCorrect   int
	SadTotal     int
}

// UnknownLabelError aborts an aggregation pass when a record carries a
// label outside {HAPPY, SAD}.
type UnknownLabelError struct {
	Position int // index of the offending record in the pass input
	Field    string
	Label    model.Label
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("accuracy: record %d has unknown %s label %s", e.Position, e.Field, e.Label)
}

// Combine returns the pointwise sum of two tallies.
func Combine(a, b Tally) Tally {
	return Tally{
		HappyCorrect: a.HappyCorrect + b.HappyCorrect,
		HappyTotal:   a.HappyTotal + b.HappyTotal,
		SadCorrect:   a.SadCorrect + b.SadCorrect,
		SadTotal:     a.SadTotal + b.SadTotal,
	}
}

// Add counts one (actual, predicted) pair.
func (t Tally) Add(actual, predicted model.Label) (Tally, error) {
	if !actual.Valid() {
		return t, &UnknownLabelError{Field: "actual", Label: actual}
	}
	if !predicted.Valid() {
		return t, &UnknownLabelError{Field: "predicted", Label: predicted}
	}
	hit := actual == predicted
	switch actual {
	case model.LabelHappy:
		t.HappyTotal++
		if hit {
			t.HappyCorrect++
		}
	case model.LabelSad:
		t.SadTotal++
		if hit {
			t.SadCorrect++
		}
	}
	return t, nil
}

// Total returns the number of counted records.
func (t Tally) Total() int {
	return t.HappyTotal + t.SadTotal
}

// Correct returns the number of matching predictions.
func (t Tally) Correct() int {
	return t.HappyCorrect + t.SadCorrect
}

// HappyAccuracy is HappyCorrect/HappyTotal, NaN when no HAPPY records were seen.
func (t Tally) HappyAccuracy() float64 {
	return ratio(t.HappyCorrect, t.HappyTotal)
}

// SadAccuracy is SadCorrect/SadTotal, NaN when no SAD records were seen.
func (t Tally) SadAccuracy() float64 {
	return ratio(t.SadCorrect, t.SadTotal)
}

// TestError is the share of mismatched predictions, NaN for an empty tally.
func (t Tally) TestError() float64 {
	return ratio(t.Total()-t.Correct(), t.Total())
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}

// Aggregate tallies records in a single sequential pass.
func Aggregate(records []model.EvaluatedRecord) (Tally, error) {
	return foldRecords(Tally{}, 0, records)
}

// AggregateParallel splits records into chunks, tallies them concurrently
// and combines the partials.
func AggregateParallel(ctx context.Context, records []model.EvaluatedRecord, workers int) (Tally, error) {
	return work.Reduce(ctx, work.TypeAggregate, records, workers, Tally{}, foldRecords, Combine)
}

func foldRecords(t Tally, offset int, records []model.EvaluatedRecord) (Tally, error) {
	for i, r := range records {
		next, err := t.Add(r.Actual, r.Predicted)
		if err != nil {
			return Tally{}, withPosition(err, offset+i)
		}
		t = next
	}
	return t, nil
}
