package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abelbrown/moodcheck/internal/dataset"
	"github.com/abelbrown/moodcheck/internal/logging"
	"github.com/abelbrown/moodcheck/internal/otel"
	"github.com/abelbrown/moodcheck/internal/report"
)

var (
	evalNoStore bool
	evalJSONL   string
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the classifier on the validation set",
		Args:  cobra.NoArgs,
		RunE:  runEvaluateCmd,
	}
	cmd.Flags().BoolVar(&evalNoStore, "no-store", false, "do not persist the run")
	cmd.Flags().StringVar(&evalJSONL, "jsonl", "", "also write the run as JSONL to this file")
	return cmd
}

func runEvaluateCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sets, _, err := current.buildSets(ctx)
	if err != nil {
		return err
	}
	ev, err := current.evaluator()
	if err != nil {
		return err
	}

	res, err := ev.Evaluate(ctx, dataset.Texts(sets.Validation))
	if err != nil {
		return err
	}
	summary, err := res.Summarize(ctx, current.cfg.Classifier.Model, current.cfg.Eval.Workers)
	if err != nil {
		current.events.Error(otel.KindAggregateAbort, "main", err)
		return fmt.Errorf("aggregate: %w", err)
	}
	summary.Malformed = sets.Dropped
	current.events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindAggregateComplete,
		Comp:    "main",
		Model:   summary.Model,
		Count:   summary.Evaluated,
		Dropped: summary.Dropped,
	})

	sink, cleanup, err := current.sinks(!evalNoStore, evalJSONL)
	defer cleanup()
	if err != nil {
		return err
	}
	if err := sink.WriteEvaluation(current.runID, summary, res.Records); err != nil {
		current.events.Error(otel.KindSinkError, "report", err)
		logging.Error("Failed to write run", "run", current.runID, "error", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.RenderSummary(summary))
	return nil
}
