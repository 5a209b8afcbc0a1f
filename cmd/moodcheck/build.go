package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abelbrown/moodcheck/internal/dataset"
	"github.com/abelbrown/moodcheck/internal/report"
)

var buildOut string

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Hash source records into LIBSVM training and validation files",
		Args:  cobra.NoArgs,
		RunE:  runBuildCmd,
	}
	cmd.Flags().StringVarP(&buildOut, "out", "o", ".", "output directory for train.svm and validation.svm")
	return cmd
}

func runBuildCmd(cmd *cobra.Command, _ []string) error {
	sets, hasher, err := current.buildSets(cmd.Context())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(buildOut, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := dataset.WriteLibSVMFile(filepath.Join(buildOut, "train.svm"), sets.Training); err != nil {
		return err
	}
	if err := dataset.WriteLibSVMFile(filepath.Join(buildOut, "validation.svm"), sets.Validation); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.RenderBuild(len(sets.Training), len(sets.Validation), sets.Dropped, hasher.Dimension()))
	return nil
}
