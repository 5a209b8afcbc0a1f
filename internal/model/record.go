package model

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
)

// Field names every raw source record must carry.
const (
	FieldLabel = "label"
	FieldText  = "text"
	FieldID    = "id"
)

// RawRecord is one record as delivered by the source-data collaborator.
// Values are whatever the decoder produced (float64 for JSON numbers).
type RawRecord map[string]any

// ErrMissingField is matched by every MissingFieldError via errors.Is.
var ErrMissingField = errors.New("missing or mistyped field")

// MissingFieldError reports a raw record whose label or text is absent or
// has the wrong type.
type MissingFieldError struct {
	Index  int    // position in the input batch
	Field  string // "label" or "text"
	Reason string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("record %d: field %q: %s", e.Index, e.Field, e.Reason)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// LabeledText is a validated (label, text) pair extracted from a raw record.
type LabeledText struct {
	ID    string
	Label Label
	Text  string
}

// Key returns a stable identifier for the record: its ID when the source
// supplied one, otherwise a hash of label and text.
func (t LabeledText) Key() string {
	if t.ID != "" {
		return t.ID
	}
	h := fnv.New64a()
	h.Write([]byte(t.Label))
	h.Write([]byte{0})
	h.Write([]byte(t.Text))
	return strconv.FormatUint(h.Sum64(), 16)
}

// ExtractLabeledText validates a raw record. index is only used for error
// reporting.
func ExtractLabeledText(index int, rec RawRecord) (LabeledText, error) {
	rawLabel, ok := rec[FieldLabel]
	if !ok || rawLabel == nil {
		return LabeledText{}, &MissingFieldError{Index: index, Field: FieldLabel, Reason: "absent"}
	}
	var value float64
	switch v := rawLabel.(type) {
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	default:
		return LabeledText{}, &MissingFieldError{Index: index, Field: FieldLabel, Reason: fmt.Sprintf("expected number, got %T", rawLabel)}
	}
	label, err := LabelFromNumeric(value)
	if err != nil {
		return LabeledText{}, &MissingFieldError{Index: index, Field: FieldLabel, Reason: err.Error()}
	}

	rawText, ok := rec[FieldText]
	if !ok || rawText == nil {
		return LabeledText{}, &MissingFieldError{Index: index, Field: FieldText, Reason: "absent"}
	}
	text, ok := rawText.(string)
	if !ok {
		return LabeledText{}, &MissingFieldError{Index: index, Field: FieldText, Reason: fmt.Sprintf("expected string, got %T", rawText)}
	}

	var id string
	switch v := rec[FieldID].(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	}

	return LabeledText{ID: id, Label: label, Text: text}, nil
}

// EvaluatedRecord pairs a ground-truth label with the classifier's answer.
// Failed is set only under the count-incorrect failure policy, when the
// classify call errored and Predicted was forced to the wrong class.
type EvaluatedRecord struct {
	Actual    Label
	Predicted Label
	Text      string
	Failed    bool
}

// Correct reports whether the prediction matched the ground truth.
func (r EvaluatedRecord) Correct() bool {
	return r.Actual == r.Predicted
}

// CorrectionComparisonRecord holds the raw and normalized predictions for
// one validation record.
type CorrectionComparisonRecord struct {
	Actual     Label
	Before     Label
	After      Label
	BeforeText string
	AfterText  string
	Failed     bool
}

// Changed reports whether normalization changed the prediction.
func (r CorrectionComparisonRecord) Changed() bool {
	return r.Before != r.After
}

// Fixed reports a wrong raw prediction that became right after normalization.
func (r CorrectionComparisonRecord) Fixed() bool {
	return r.Before != r.Actual && r.After == r.Actual
}

// Regressed reports a right raw prediction that became wrong after normalization.
func (r CorrectionComparisonRecord) Regressed() bool {
	return r.Before == r.Actual && r.After != r.Actual
}
