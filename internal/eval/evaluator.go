package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/moodcheck/internal/accuracy"
	"github.com/abelbrown/moodcheck/internal/classify"
	"github.com/abelbrown/moodcheck/internal/logging"
	"github.com/abelbrown/moodcheck/internal/model"
	"github.com/abelbrown/moodcheck/internal/normalize"
	"github.com/abelbrown/moodcheck/internal/otel"
	"github.com/abelbrown/moodcheck/internal/work"
)

// Options configures an Evaluator.
type Options struct {
	ModelID string
	Workers int           // <= 0 uses runtime.NumCPU()
	Policy  FailurePolicy // empty means FailDrop
	Events  *otel.Logger  // optional
}

// Evaluator runs batch passes over validation records. Each record is an
// independent unit of work; a failure affects only that record.
type Evaluator struct {
	classifier classify.Classifier
	opts       Options
}

// NewEvaluator creates an Evaluator for the given classifier.
func NewEvaluator(c classify.Classifier, opts Options) *Evaluator {
	if opts.Policy == "" {
		opts.Policy = FailDrop
	}
	return &Evaluator{classifier: c, opts: opts}
}

// Result is the outcome of a prediction pass.
type Result struct {
	Records []model.EvaluatedRecord
	Dropped int // records excluded after a failed call (FailDrop)
	Failed  int // records kept as incorrect after a failed call (FailCountIncorrect)
	Stats   work.Stats
}

// Evaluate classifies every record. Records come back in input order,
// minus the dropped ones. If ctx is cancelled the pass is abandoned and
// the error wraps ctx.Err(); no partial Result is returned.
func (e *Evaluator) Evaluate(ctx context.Context, records []model.LabeledText) (Result, error) {
	results, stats := work.Map(ctx, work.TypeClassify, records, e.opts.Workers,
		func(ctx context.Context, rec model.LabeledText) (model.EvaluatedRecord, error) {
			return Compare(ctx, rec, e.classifier, e.opts.ModelID)
		})
	if err := e.cancelled(ctx, "evaluate", stats); err != nil {
		return Result{}, err
	}

	res := Result{Records: make([]model.EvaluatedRecord, 0, len(records)), Stats: stats}
	for i, r := range results {
		if r.Err == nil {
			res.Records = append(res.Records, r.Value)
			continue
		}
		e.reportFailure(otel.KindClassifyError, i, r.Err)
		if e.opts.Policy == FailCountIncorrect {
			res.Records = append(res.Records, model.EvaluatedRecord{
				Actual:    records[i].Label,
				Predicted: records[i].Label.Opposite(),
				Text:      records[i].Text,
				Failed:    true,
			})
			res.Failed++
			continue
		}
		res.Dropped++
	}

	e.opts.Events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindEvalComplete,
		Comp:    "eval",
		Model:   e.opts.ModelID,
		Count:   len(res.Records),
		Dropped: res.Dropped,
		Dur:     stats.Duration,
	})
	logging.Info("Evaluation complete",
		"model", e.opts.ModelID,
		"evaluated", len(res.Records),
		"dropped", res.Dropped,
		"failed", res.Failed)
	return res, nil
}

// Summarize tallies the pass. An unknown label aborts with an
// *accuracy.UnknownLabelError.
func (r Result) Summarize(ctx context.Context, modelID string, workers int) (accuracy.Summary, error) {
	t, err := accuracy.AggregateParallel(ctx, r.Records, workers)
	if err != nil {
		return accuracy.Summary{}, err
	}
	return accuracy.NewSummary(modelID, t, r.Dropped, r.Failed), nil
}

// CorrectionResult is the outcome of a correction-impact pass.
type CorrectionResult struct {
	Records []model.CorrectionComparisonRecord
	Dropped int
	Failed  int
	Stats   work.Stats
}

// EvaluateCorrections runs EvaluateWithCorrection for every record.
// Cancellation is handled as in Evaluate.
func (e *Evaluator) EvaluateCorrections(ctx context.Context, records []model.LabeledText, n normalize.Normalizer) (CorrectionResult, error) {
	start := time.Now()
	results, stats := work.Map(ctx, work.TypeCorrect, records, e.opts.Workers,
		func(ctx context.Context, rec model.LabeledText) (model.CorrectionComparisonRecord, error) {
			return EvaluateWithCorrection(ctx, rec, e.classifier, n, e.opts.ModelID)
		})
	if err := e.cancelled(ctx, "correction", stats); err != nil {
		return CorrectionResult{}, err
	}

	res := CorrectionResult{Records: make([]model.CorrectionComparisonRecord, 0, len(records)), Stats: stats}
	for i, r := range results {
		if r.Err == nil {
			res.Records = append(res.Records, r.Value)
			continue
		}
		kind := otel.KindClassifyError
		var ne *NormalizeError
		if errors.As(r.Err, &ne) {
			kind = otel.KindNormalizeError
		}
		e.reportFailure(kind, i, r.Err)
		if e.opts.Policy == FailCountIncorrect {
			wrong := records[i].Label.Opposite()
			res.Records = append(res.Records, model.CorrectionComparisonRecord{
				Actual:     records[i].Label,
				Before:     wrong,
				After:      wrong,
				BeforeText: records[i].Text,
				AfterText:  records[i].Text,
				Failed:     true,
			})
			res.Failed++
			continue
		}
		res.Dropped++
	}

	e.opts.Events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindCorrectionComplete,
		Comp:    "eval",
		Model:   e.opts.ModelID,
		Count:   len(res.Records),
		Dropped: res.Dropped,
		Dur:     time.Since(start),
	})
	logging.Info("Correction evaluation complete",
		"model", e.opts.ModelID,
		"compared", len(res.Records),
		"dropped", res.Dropped,
		"failed", res.Failed)
	return res, nil
}

// Summarize tallies raw and normalized predictions.
func (r CorrectionResult) Summarize(modelID string) (accuracy.CorrectionSummary, error) {
	return accuracy.SummarizeCorrections(modelID, r.Records, r.Dropped, r.Failed)
}

// cancelled reports whether the caller gave up on the pass. Records that
// failed because of it are neither dropped nor counted.
func (e *Evaluator) cancelled(ctx context.Context, pass string, stats work.Stats) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	e.opts.Events.Warn(otel.KindPassCancelled, "eval", pass+" pass cancelled")
	logging.Warn("Pass cancelled",
		"pass", pass,
		"model", e.opts.ModelID,
		"completed", stats.Completed,
		"total", stats.Total)
	return fmt.Errorf("eval: %s pass cancelled: %w", pass, err)
}

// transient reports whether err came from a timeout or an unavailable
// service on either external call.
func transient(err error) bool {
	return classify.IsTransient(err) || normalize.IsTransient(err)
}

func (e *Evaluator) reportFailure(kind otel.EventKind, index int, err error) {
	level := otel.LevelWarn
	if !transient(err) {
		level = otel.LevelError
	}
	e.opts.Events.Emit(otel.Event{
		Level: level,
		Kind:  kind,
		Comp:  "eval",
		Model: e.opts.ModelID,
		Index: otel.At(index),
		Err:   err.Error(),
	})
	logging.Warn("External call failed",
		"model", e.opts.ModelID,
		"index", index,
		"policy", e.opts.Policy,
		"transient", transient(err),
		"error", err)
}
