package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/resilience"
)

func newAsyncCmd(opts *globalOptions) *cobra.Command {
	flags := &requestFlags{}
	var (
		noWait   bool
		interval time.Duration
		attempts int
	)

	cmd := &cobra.Command{
		Use:   "async",
		Short: "Submit an async composition and wait for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()

			accepted, err := c.Submit(cmd.Context(), flags.request(cmd))
			if err != nil {
				return err
			}
			if noWait {
				if opts.json {
					return printJSON(cmd.OutOrStdout(), accepted)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s (%s)\n", accepted.RequestID, accepted.StatusCheckURL)
				return nil
			}

			retry := resilience.DefaultRetryConfig()
			retry.MaxAttempts = attempts
			retry.InitialDelay = interval
			retry.MaxDelay = interval * 8
			retry.BackoffMultiplier = 1.5

			result, err := c.Await(cmd.Context(), accepted.RequestID, retry)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result, opts.json)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Print the request id and exit")
	cmd.Flags().DurationVar(&interval, "poll-interval", 100*time.Millisecond, "Initial delay between polls")
	cmd.Flags().IntVar(&attempts, "poll-attempts", 30, "Maximum number of polls")
	return cmd
}
