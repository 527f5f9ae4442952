package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/grove/internal/cli"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run batches of session operations",
}

var batchRunCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Run a YAML plan of create/message/delete items concurrently",
	Long: `Executes every item in the plan concurrently, bounded by --concurrency
and retried per the retry flags. One item's failure never stops the others;
the exit code is non-zero when any item failed.

Plan format:

  items:
    - op: create
      key: alice
      agent_id: support-bot
      state:
        user_name: Alice
    - op: message
      session_id: abc-123
      text: "Hello!"
    - op: delete
      session_id: abc-123`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		items, err := cli.LoadPlan(args[0])
		if err != nil {
			fail("Error: %v", err)
		}

		_, logger, client, err := wire()
		if err != nil {
			fail("Error: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("running batch", "plan", args[0], "items", len(items))
		outcomes := client.NewOrchestrator().Run(ctx, items)

		summary := cli.PrintOutcomes(os.Stdout, outcomes)
		if summary.Failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchRunCmd)
}
