package main

import (
	"fmt"
	"strings"

	"video-rag-be/internal/bootstrap"

	"github.com/spf13/cobra"
)

func newThresholdsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds <label>",
		Short: "Show the validation band chosen for a visual label",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := strings.Join(args, " ")
			th := bootstrap.Thresholds(ctx.config())
			if err := th.Validate(); err != nil {
				return err
			}

			kind := "photographic"
			if th.IsAbstract(label) {
				kind = "abstract"
			}
			band := th.For(label)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "label:  %s\n", label)
			fmt.Fprintf(out, "kind:   %s\n", kind)
			fmt.Fprintf(out, "upper:  %.2f\n", band.Upper)
			fmt.Fprintf(out, "lower:  %.2f\n", band.Lower)
			return nil
		},
	}
}
