package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abelbrown/moodcheck/internal/accuracy"
	"github.com/abelbrown/moodcheck/internal/report"
	"github.com/abelbrown/moodcheck/internal/store"
)

var showJSONL string

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a persisted run; a unique id prefix is enough",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
	cmd.Flags().StringVar(&showJSONL, "jsonl", "", "export the run's records as JSONL to this file")
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	st, err := current.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.FindRun(args[0])
	if err != nil {
		return err
	}

	var export report.Sink = report.Multi{}
	if showJSONL != "" {
		f, err := os.Create(showJSONL)
		if err != nil {
			return err
		}
		defer f.Close()
		export = report.NewJSONLSink(f)
	}

	if run.Kind == store.KindCorrection {
		recs, err := st.Corrections(run.ID)
		if err != nil {
			return err
		}
		summary, err := accuracy.SummarizeCorrections(run.Model, recs, run.Dropped, run.Failed)
		if err != nil {
			return err
		}
		summary.Malformed = run.Malformed
		if err := export.WriteCorrection(run.ID, summary, recs); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.RenderCorrection(summary))
		return nil
	}

	t, err := st.Tally(run.ID, store.PhaseResult)
	if err != nil {
		return err
	}
	summary := accuracy.NewSummary(run.Model, t, run.Dropped, run.Failed)
	summary.Malformed = run.Malformed
	if showJSONL != "" {
		recs, err := st.Evaluations(run.ID)
		if err != nil {
			return err
		}
		if err := export.WriteEvaluation(run.ID, summary, recs); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.RenderSummary(summary))
	return nil
}
