// Package eval runs validation records through the external classifier:
// a plain prediction pass, and a correction-impact pass that classifies
// both the raw and the normalized text of every record.
package eval

import (
	"context"
	"fmt"

	"github.com/abelbrown/moodcheck/internal/classify"
	"github.com/abelbrown/moodcheck/internal/model"
	"github.com/abelbrown/moodcheck/internal/normalize"
)

// FailurePolicy decides what happens to a record whose external call failed.
type FailurePolicy string

const (
	// FailDrop excludes the record from the result set (fail-open).
	FailDrop FailurePolicy = "drop"
	// FailCountIncorrect keeps the record with the wrong label predicted.
	FailCountIncorrect FailurePolicy = "count-incorrect"
)

// ParseFailurePolicy maps a config value to a FailurePolicy. Empty means FailDrop.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailDrop:
		return FailDrop, nil
	case FailCountIncorrect:
		return FailCountIncorrect, nil
	default:
		return "", fmt.Errorf("eval: unknown failure policy %q", s)
	}
}

// NormalizeError marks a correction record that failed in the normalizer
// rather than the classifier.
type NormalizeError struct {
	Err error
}

func (e *NormalizeError) Error() string { return "normalize: " + e.Err.Error() }

func (e *NormalizeError) Unwrap() error { return e.Err }

// Compare classifies one validation record. The classifier's error is
// returned unchanged; no retry is attempted.
func Compare(ctx context.Context, rec model.LabeledText, c classify.Classifier, modelID string) (model.EvaluatedRecord, error) {
	predicted, err := c.Classify(ctx, modelID, rec.Text)
	if err != nil {
		return model.EvaluatedRecord{}, err
	}
	return model.EvaluatedRecord{
		Actual:    rec.Label,
		Predicted: predicted,
		Text:      rec.Text,
	}, nil
}

// EvaluateWithCorrection classifies the raw text and the normalized text
// with two independent calls, even when normalization left the text
// unchanged. A failure on either side fails the whole record.
func EvaluateWithCorrection(ctx context.Context, rec model.LabeledText, c classify.Classifier, n normalize.Normalizer, modelID string) (model.CorrectionComparisonRecord, error) {
	before, err := c.Classify(ctx, modelID, rec.Text)
	if err != nil {
		return model.CorrectionComparisonRecord{}, fmt.Errorf("raw text: %w", err)
	}

	normalized, err := n.Normalize(ctx, rec.Text)
	if err != nil {
		return model.CorrectionComparisonRecord{}, &NormalizeError{Err: err}
	}

	after, err := c.Classify(ctx, modelID, normalized)
	if err != nil {
		return model.CorrectionComparisonRecord{}, fmt.Errorf("normalized text: %w", err)
	}

	return model.CorrectionComparisonRecord{
		Actual:     rec.Label,
		Before:     before,
		After:      after,
		BeforeText: rec.Text,
		AfterText:  normalized,
	}, nil
}
