package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abelbrown/moodcheck/internal/dataset"
	"github.com/abelbrown/moodcheck/internal/logging"
	"github.com/abelbrown/moodcheck/internal/normalize"
	"github.com/abelbrown/moodcheck/internal/otel"
	"github.com/abelbrown/moodcheck/internal/report"
)

var (
	corrNoStore bool
	corrJSONL   string
)

func newCorrectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correction",
		Short: "Compare predictions on raw and normalized validation text",
		Args:  cobra.NoArgs,
		RunE:  runCorrectionCmd,
	}
	cmd.Flags().BoolVar(&corrNoStore, "no-store", false, "do not persist the run")
	cmd.Flags().StringVar(&corrJSONL, "jsonl", "", "also write the run as JSONL to this file")
	return cmd
}

func runCorrectionCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sets, _, err := current.buildSets(ctx)
	if err != nil {
		return err
	}
	ev, err := current.evaluator()
	if err != nil {
		return err
	}

	n := normalize.Identity
	if nc := current.cfg.Normalizer; nc.Endpoint != "" {
		n = normalize.NewHTTPClient(nc.Endpoint, nc.Timeout(), nc.RPS)
	} else {
		logging.Warn("No normalizer endpoint configured; raw and normalized text will be identical")
	}

	res, err := ev.EvaluateCorrections(ctx, dataset.Texts(sets.Validation), n)
	if err != nil {
		return err
	}
	summary, err := res.Summarize(current.cfg.Classifier.Model)
	if err != nil {
		current.events.Error(otel.KindAggregateAbort, "main", err)
		return fmt.Errorf("aggregate: %w", err)
	}
	summary.Malformed = sets.Dropped

	sink, cleanup, err := current.sinks(!corrNoStore, corrJSONL)
	defer cleanup()
	if err != nil {
		return err
	}
	if err := sink.WriteCorrection(current.runID, summary, res.Records); err != nil {
		current.events.Error(otel.KindSinkError, "report", err)
		logging.Error("Failed to write run", "run", current.runID, "error", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.RenderCorrection(summary))
	return nil
}
