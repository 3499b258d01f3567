package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/refinery/internal/batch"
	"github.com/alexisbeaulieu97/refinery/internal/config"
	"github.com/alexisbeaulieu97/refinery/internal/model"
	"github.com/alexisbeaulieu97/refinery/internal/sequencer"
)

func newBatchCmd(root *rootFlags) *cobra.Command {
	opts := projectOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Refine every dataset of a directory",
		Long: `Refine every .dat file of the data directory in name order. Each dataset gets
its own sub-directory and step overview report. With the recursive strategy each
dataset starts from the last successful control file of the previous one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.load()
			if err != nil {
				return err
			}
			if st.dataDir == "" {
				return fmt.Errorf("data directory is required (set data_dir in the project file or use --data-dir)")
			}
			return execute(cmd, root, st, st.dataDir, func(ctx context.Context, s *session) error {
				return runBatch(ctx, s, st)
			})
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Directory holding the .dat files")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "Template strategy: fixed or recursive")

	return cmd
}

func runBatch(ctx context.Context, s *session, st *setup) error {
	run := func(ctx context.Context, cfg config.RunConfig) ([]model.StepResult, error) {
		// A skip aimed at the previous dataset's last step must not leak into this one.
		s.signals.ConsumeSkip()

		seq, err := sequencer.New(cfg, st.lib, st.steps, s.sequencerOptions(st))
		if err != nil {
			return nil, err
		}
		return seq.Run(ctx)
	}

	driver := batch.New(st.cfg, st.dataDir, run, batch.Options{
		Strategy:  st.strategy,
		RunID:     s.runID,
		Logger:    s.log,
		OnDataset: s.datasetStarted,
		Stopped:   s.signals.Stopped,
	})

	outcomes, err := driver.Run(ctx)
	for _, o := range outcomes {
		summary := model.Summarize(o.Results)
		fmt.Fprintf(s.out, "%s: %d succeeded, %d failed, %d skipped (%s)\n",
			o.Dataset.Name, summary.Succeeded, summary.Failed, summary.Skipped, o.Report)
	}
	return err
}
