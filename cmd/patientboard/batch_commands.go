package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"patientboard/internal/batch"
)

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assemble [folders...]",
		Short: "Build templates for complete patient folders",
		Long:  "Build templates for every complete patient folder under the photo root, or only for the folders given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runBatch(cmd, stages{assemble: true}, func(r *batch.Runner) (batch.Result, error) {
				return r.AssembleAll(cmd.Context(), absPaths(args)...)
			})
		},
	}
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload [folders...]",
		Short: "Upload templates that have not been sent yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runBatch(cmd, stages{upload: true}, func(r *batch.Runner) (batch.Result, error) {
				return r.UploadAll(cmd.Context(), absPaths(args)...)
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Assemble then upload everything under the photo root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runBatch(cmd, stages{assemble: true, upload: true}, func(r *batch.Runner) (batch.Result, error) {
				return r.Run(cmd.Context())
			})
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Repeat run every poll interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.openPipeline(cmd.Context(), stages{assemble: true, upload: true})
			if err != nil {
				return err
			}
			defer p.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s every %ds (Ctrl+C to stop)\n", p.cfg.Paths.PhotoRoot, p.cfg.Workflow.PollInterval)
			return p.runner.Watch(cmd.Context())
		},
	}
}

func (c *commandContext) runBatch(cmd *cobra.Command, want stages, fn func(*batch.Runner) (batch.Result, error)) error {
	p, err := c.openPipeline(cmd.Context(), want)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := fn(p.runner)
	printResult(cmd.OutOrStdout(), result)
	return err
}

func printResult(out io.Writer, result batch.Result) {
	fmt.Fprintf(out, "Assembled: %d  Uploaded: %d  Failed: %d  Skipped: %d  (%s)\n",
		result.Assembled, result.Uploaded, result.Failed, result.Skipped, result.Duration.Round(time.Millisecond))
	if result.Failed > 0 {
		fmt.Fprintln(out, "Some folders failed; see `patientboard errors` for details.")
	}
}

func absPaths(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if abs, err := filepath.Abs(arg); err == nil {
			out = append(out, abs)
		} else {
			out = append(out, arg)
		}
	}
	return out
}
