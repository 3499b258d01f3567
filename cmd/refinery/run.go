package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/refinery/internal/batch"
	"github.com/alexisbeaulieu97/refinery/internal/sequencer"
)

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := projectOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Refine one dataset through the configured steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.load()
			if err != nil {
				return err
			}
			if st.cfg.DataFilePath == "" {
				return fmt.Errorf("data is required (set it in the project file or with --data)")
			}
			return execute(cmd, root, st, filepath.Base(st.cfg.DataFilePath), func(ctx context.Context, s *session) error {
				return runSingle(ctx, s, st)
			})
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Data, "data", "", "Dataset (.dat) to refine")

	return cmd
}

func runSingle(ctx context.Context, s *session, st *setup) error {
	seq, err := sequencer.New(st.cfg, st.lib, st.steps, s.sequencerOptions(st))
	if err != nil {
		return err
	}

	start := time.Now()
	results, runErr := seq.Run(ctx)

	report := batch.Report{
		RunID:    s.runID,
		Strategy: batch.StrategySingle,
		Dataset:  st.cfg.DataFilePath,
		Template: st.cfg.BaseTemplatePath,
		Results:  results,
		Elapsed:  time.Since(start),
	}
	path, err := report.Write(st.cfg.WorkDir)
	if err != nil {
		s.log.Error(err, "could not write report")
	} else {
		s.log.Info("report written to " + path)
	}

	return runErr
}
