package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/pool"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage warm session pools",
}

var poolWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Pre-create a pool of sessions and hold them until interrupted",
	Long: `Creates --capacity sessions for --agent concurrently, reports how many
came up, then holds them until SIGINT/SIGTERM and deletes them on the way
out. Useful for keeping a warm set of sessions behind another process that
finds them through a shared --redis registry.`,
	Run: func(cmd *cobra.Command, args []string) {
		agentID, _ := cmd.Flags().GetString("agent")
		capacity, _ := cmd.Flags().GetInt("capacity")
		rawState, _ := cmd.Flags().GetString("state")
		maxWait, _ := cmd.Flags().GetDuration("max-wait")

		var state domain.StateMap
		if rawState != "" {
			var err error
			state, err = domain.ParseStateJSON([]byte(rawState))
			if err != nil {
				fail("Invalid --state: %v", err)
			}
		}

		_, logger, client, err := wire()
		if err != nil {
			fail("Error: %v", err)
		}

		p := client.NewPool(pool.Config{
			Capacity:     capacity,
			AgentID:      agentID,
			InitialState: state,
			MaxWait:      maxWait,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := p.Initialize(ctx)
		if err != nil {
			fail("Error initializing pool: %v", err)
		}
		fmt.Printf("Pool warm: %d/%d sessions ready\n", report.Created, report.Requested)
		for _, ferr := range report.Failures {
			fmt.Fprintf(os.Stderr, "  slot failed: %v\n", ferr)
		}
		if report.Created == 0 {
			fail("No sessions could be created")
		}

		<-ctx.Done()
		logger.Info("draining pool")

		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := p.Drain(drainCtx); err != nil {
			fail("Error draining pool: %v", err)
		}
		fmt.Println("Pool drained.")
	},
}

func init() {
	rootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolWarmCmd)

	poolWarmCmd.Flags().String("agent", "", "Agent to create pooled sessions for (required)")
	poolWarmCmd.Flags().Int("capacity", pool.DefaultCapacity, "Number of sessions to keep warm")
	poolWarmCmd.Flags().String("state", "", "Initial state for every pooled session, as JSON")
	poolWarmCmd.Flags().Duration("max-wait", 0, "Acquire wait bound (0 blocks)")
	_ = poolWarmCmd.MarkFlagRequired("agent")
}
