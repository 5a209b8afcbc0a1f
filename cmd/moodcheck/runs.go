package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/moodcheck/internal/report"
)

var runsLimit int

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted evaluation runs",
		Args:  cobra.NoArgs,
		RunE:  runRunsCmd,
	}
	cmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	st, err := current.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.RenderRuns(runs, time.Now()))
	return nil
}
