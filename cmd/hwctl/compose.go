package main

import (
	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

func newComposeCmd(opts *globalOptions) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a greeting and print it",
		Long: `Compose a greeting synchronously.

Without request flags the server's default request is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()

			var (
				result *types.CompositeResult
				err    error
			)
			if !flags.changed(cmd) {
				result, err = c.ComposeDefault(cmd.Context())
			} else {
				result, err = c.Compose(cmd.Context(), flags.request(cmd))
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result, opts.json)
		},
	}
	flags.register(cmd)
	return cmd
}
