package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/refinery/internal/sequencer"
	"github.com/alexisbeaulieu97/refinery/internal/template"
	"github.com/alexisbeaulieu97/refinery/pkg/diff"
)

type renderOptions struct {
	projectOptions
	Step   int
	Output string
	Quiet  bool
}

func newRenderCmd() *cobra.Command {
	opts := renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Preview the control file of one step without running the engine",
		Long: `Render the control file a step would hand to the engine, starting from the base
template, and print its difference from the template. With --output the rendered
file is also written to disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Data, "data", "", "Dataset the control file should reference")
	cmd.Flags().IntVar(&opts.Step, "step", 1, "1-based step number to render")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the rendered control file to this path")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Only print the changed line counts")

	return cmd
}

func runRender(cmd *cobra.Command, opts renderOptions) error {
	st, err := opts.load()
	if err != nil {
		return err
	}
	if opts.Step < 1 || opts.Step > len(st.steps) {
		return fmt.Errorf("step %d does not exist (%d steps configured)", opts.Step, len(st.steps))
	}
	step := st.steps[opts.Step-1]

	baseName := sequencer.BaseName(opts.Step, step.Name)
	req := template.Request{
		BasePath:   st.cfg.BaseTemplatePath,
		OutputPath: opts.Output,
		Placements: st.lib.Placements(),
		Values:     step.Values(),
		Encodings:  st.cfg.Encodings,
	}
	if st.cfg.DataFilePath != "" {
		req.DataFile = filepath.Base(st.cfg.DataFilePath)
	} else {
		req.DataFile = baseName + ".dat"
	}

	rendered, err := template.Render(req)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(st.cfg.BaseTemplatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	original, _, err := template.Decode(raw, st.cfg.Encodings)
	if err != nil {
		return fmt.Errorf("decode template: %w", err)
	}

	out := cmd.OutOrStdout()
	label := baseName + filepath.Ext(st.cfg.BaseTemplatePath)
	stats := diff.Count([]byte(original), rendered)
	if !opts.Quiet {
		fmt.Fprint(out, diff.Unified([]byte(original), rendered, filepath.Base(st.cfg.BaseTemplatePath), label))
	}
	fmt.Fprintf(out, "%s: %d lines changed (+%d -%d)\n", label, max(stats.Added, stats.Removed), stats.Added, stats.Removed)

	if opts.Output != "" {
		if err := template.RenderFile(req); err != nil {
			return err
		}
		fmt.Fprintf(out, "written to %s\n", opts.Output)
	}
	return nil
}
