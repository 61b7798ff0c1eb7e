package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"patientboard/internal/bgremove"
	"patientboard/internal/logging"
	"patientboard/internal/preflight"
)

func newRmbgCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "rmbg [photos...]",
		Short: "Remove backgrounds from extra-oral photos",
		Long: "Runs rembg on the given .jpg photos, or with --all on every slot 1-3 photo under the photo root " +
			"that has no _NO_BG version yet. Results are saved beside the source as <name>_NO_BG.jpg.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass photo paths or --all, not both")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if st := preflight.CheckSystemDeps(cfg)[0]; !st.Available {
				return fmt.Errorf("%s: %s; install rembg or set bgremove.command", st.Name, st.Detail)
			}
			logger, closer, err := ctx.logger(true)
			if err != nil {
				return err
			}
			defer closer.Close()

			remover := bgremove.New(cfg, logger)
			out := cmd.OutOrStdout()
			if all {
				result, err := remover.RemoveAll(cmd.Context(), cfg.Paths.PhotoRoot)
				fmt.Fprintf(out, "Processed: %d  Failed: %d\n", result.Processed, result.Failed)
				return err
			}

			failed := 0
			for _, path := range absPaths(args) {
				target, err := remover.Remove(cmd.Context(), path)
				if err != nil {
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					failed++
					logging.ErrorWithContext(logger, "background removal failed", "background_remove_failed",
						logging.String("input", path), logging.Error(err))
					continue
				}
				fmt.Fprintln(out, target)
			}
			if failed > 0 {
				return fmt.Errorf("%d photo(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Process every patient folder under the photo root")
	return cmd
}
