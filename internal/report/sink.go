// Package report hands run results to sinks and renders them for the
// terminal.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/abelbrown/moodcheck/internal/accuracy"
	"github.com/abelbrown/moodcheck/internal/model"
	"github.com/abelbrown/moodcheck/internal/store"
)

// Sink accepts the results of a run. Implementations decide how and where
// they are kept.
type Sink interface {
	WriteEvaluation(runID string, s accuracy.Summary, recs []model.EvaluatedRecord) error
	WriteCorrection(runID string, s accuracy.CorrectionSummary, recs []model.CorrectionComparisonRecord) error
}

// Multi fans results out to every sink. All sinks are attempted; their
// errors are joined.
type Multi []Sink

func (m Multi) WriteEvaluation(runID string, s accuracy.Summary, recs []model.EvaluatedRecord) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.WriteEvaluation(runID, s, recs))
	}
	return errors.Join(errs...)
}

func (m Multi) WriteCorrection(runID string, s accuracy.CorrectionSummary, recs []model.CorrectionComparisonRecord) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.WriteCorrection(runID, s, recs))
	}
	return errors.Join(errs...)
}

// StoreSink persists runs to SQLite.
type StoreSink struct {
	Store *store.Store
	Now   func() time.Time // nil = time.Now
}

func (s *StoreSink) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *StoreSink) WriteEvaluation(runID string, sum accuracy.Summary, recs []model.EvaluatedRecord) error {
	run := store.Run{ID: runID, Model: sum.Model, CreatedAt: s.now(), Dropped: sum.Dropped, Failed: sum.Failed, Malformed: sum.Malformed}
	if err := s.Store.SaveEvaluationRun(run, sum.Tally, recs); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

func (s *StoreSink) WriteCorrection(runID string, sum accuracy.CorrectionSummary, recs []model.CorrectionComparisonRecord) error {
	run := store.Run{ID: runID, Model: sum.Model, CreatedAt: s.now(), Dropped: sum.Dropped, Failed: sum.Failed, Malformed: sum.Malformed}
	if err := s.Store.SaveCorrectionRun(run, sum.Before, sum.After, recs); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// JSONLSink writes one JSON object per line: a header line describing the
// run followed by one line per record.
type JSONLSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLSink writes to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

type tallyLine struct {
	HappyCorrect  int      `json:"happy_correct"`
	HappyTotal    int      `json:"happy_total"`
	SadCorrect    int      `json:"sad_correct"`
	SadTotal      int      `json:"sad_total"`
	HappyAccuracy *float64 `json:"happy_accuracy"` // null when undefined
	SadAccuracy   *float64 `json:"sad_accuracy"`
	TestError     *float64 `json:"test_error"`
}

func newTallyLine(t accuracy.Tally) tallyLine {
	return tallyLine{
		HappyCorrect:  t.HappyCorrect,
		HappyTotal:    t.HappyTotal,
		SadCorrect:    t.SadCorrect,
		SadTotal:      t.SadTotal,
		HappyAccuracy: defined(t.HappyAccuracy()),
		SadAccuracy:   defined(t.SadAccuracy()),
		TestError:     defined(t.TestError()),
	}
}

func defined(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

type summaryLine struct {
	Type      string     `json:"type"`
	RunID     string     `json:"run_id"`
	Model     string     `json:"model"`
	Evaluated int        `json:"evaluated,omitempty"`
	Dropped   int        `json:"dropped"`
	Failed    int        `json:"failed"`
	Malformed int        `json:"malformed"`
	Tally     *tallyLine `json:"tally,omitempty"`
	Before    *tallyLine `json:"before,omitempty"`
	After     *tallyLine `json:"after,omitempty"`
	Changed   int        `json:"changed,omitempty"`
	Fixed     int        `json:"fixed,omitempty"`
	Regressed int        `json:"regressed,omitempty"`
}

type evaluationLine struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Actual    string `json:"actual"`
	Predicted string `json:"predicted"`
	Text      string `json:"text"`
	Failed    bool   `json:"failed,omitempty"`
}

type correctionLine struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	Actual     string `json:"actual"`
	Before     string `json:"before"`
	After      string `json:"after"`
	BeforeText string `json:"before_text"`
	AfterText  string `json:"after_text"`
	Failed     bool   `json:"failed,omitempty"`
}

func (j *JSONLSink) WriteEvaluation(runID string, s accuracy.Summary, recs []model.EvaluatedRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tl := newTallyLine(s.Tally)
	if err := j.enc.Encode(summaryLine{
		Type: "summary", RunID: runID, Model: s.Model,
		Evaluated: s.Evaluated, Dropped: s.Dropped, Failed: s.Failed, Malformed: s.Malformed, Tally: &tl,
	}); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	for _, r := range recs {
		if err := j.enc.Encode(evaluationLine{
			Type: "evaluation", RunID: runID,
			Actual: string(r.Actual), Predicted: string(r.Predicted), Text: r.Text, Failed: r.Failed,
		}); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	return nil
}

func (j *JSONLSink) WriteCorrection(runID string, s accuracy.CorrectionSummary, recs []model.CorrectionComparisonRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	before, after := newTallyLine(s.Before), newTallyLine(s.After)
	if err := j.enc.Encode(summaryLine{
		Type: "correction_summary", RunID: runID, Model: s.Model,
		Dropped: s.Dropped, Failed: s.Failed, Malformed: s.Malformed, Before: &before, After: &after,
		Changed: s.Changed, Fixed: s.Fixed, Regressed: s.Regressed,
	}); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	for _, r := range recs {
		if err := j.enc.Encode(correctionLine{
			Type: "correction", RunID: runID,
			Actual: string(r.Actual), Before: string(r.Before), After: string(r.After),
			BeforeText: r.BeforeText, AfterText: r.AfterText, Failed: r.Failed,
		}); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	return nil
}
