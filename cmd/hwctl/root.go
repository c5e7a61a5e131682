package main

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/client"
)

// globalOptions are the flags shared by every command
type globalOptions struct {
	server  string
	timeout time.Duration
	json    bool
}

func (o *globalOptions) client() *client.Client {
	return client.New(client.Config{BaseURL: o.server, Timeout: o.timeout})
}

func defaultServer() string {
	if s := os.Getenv("HWCTL_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// newRootCmd builds the command tree writing to out
func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "hwctl",
		Short: "Command line client for the hello-world aggregator",
		Long: `hwctl talks to a running hello-world aggregator.

It composes greetings synchronously, submits and waits for async
compositions, and fetches earlier results by id.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", defaultServer(), "Aggregator base URL (env HWCTL_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON")

	rootCmd.AddCommand(newComposeCmd(opts))
	rootCmd.AddCommand(newAsyncCmd(opts))
	rootCmd.AddCommand(newGetCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
