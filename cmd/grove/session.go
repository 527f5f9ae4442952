package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/grove/internal/cli"
	"github.com/aretw0/grove/pkg/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage backend sessions",
	Long:  `Create, list, inspect, and remove sessions on the backend.`,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session for an agent",
	Run: func(cmd *cobra.Command, args []string) {
		agentID, _ := cmd.Flags().GetString("agent")
		rawState, _ := cmd.Flags().GetString("state")
		interactive, _ := cmd.Flags().GetBool("interactive")

		var state domain.StateMap
		switch {
		case rawState != "":
			var err error
			state, err = domain.ParseStateJSON([]byte(rawState))
			if err != nil {
				fail("Invalid --state: %v", err)
			}
		case interactive:
			if !cli.IsInteractive() {
				fail("--interactive requires a terminal")
			}
			var err error
			state, err = cli.PromptState(os.Stdin, os.Stdout)
			if err != nil {
				fail("Prompt failed: %v", err)
			}
		}

		_, _, client, err := wire()
		if err != nil {
			fail("Error: %v", err)
		}

		sess, err := client.CreateSession(cmd.Context(), agentID, state)
		if err != nil {
			fail("Error creating session: %v", err)
		}
		fmt.Println(sess.ID)
	},
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions on the backend",
	Run: func(cmd *cobra.Command, args []string) {
		agentID, _ := cmd.Flags().GetString("agent")

		_, _, client, err := wire()
		if err != nil {
			fail("Error: %v", err)
		}

		sessions, err := client.ListSessions(cmd.Context(), agentID)
		if err != nil {
			fail("Error listing sessions: %v", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return
		}
		for _, s := range sessions {
			if s.AgentID != "" {
				fmt.Printf("%s\t%s\n", s.ID, s.AgentID)
			} else {
				fmt.Println(s.ID)
			}
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Show a session's metadata and state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, _, client, err := wire()
		if err != nil {
			fail("Error: %v", err)
		}

		sess, err := client.GetSession(cmd.Context(), args[0])
		if err != nil {
			fail("Error loading session '%s': %v", args[0], err)
		}

		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			fail("Error marshaling session: %v", err)
		}
		fmt.Println(string(data))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, _, client, err := wire()
		if err != nil {
			fail("Error: %v", err)
		}

		hasError := false
		for _, sessionID := range args {
			if err := client.DeleteSession(cmd.Context(), sessionID); err != nil {
				fmt.Fprintf(os.Stderr, "Error removing '%s': %v\n", sessionID, err)
				hasError = true
			} else {
				fmt.Printf("Removed session '%s'\n", sessionID)
			}
		}
		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionCreateCmd.Flags().String("agent", "", "Agent to create the session for (required)")
	sessionCreateCmd.Flags().String("state", "", "Initial state as a JSON object")
	sessionCreateCmd.Flags().BoolP("interactive", "i", false, "Prompt for initial state key=value pairs")
	_ = sessionCreateCmd.MarkFlagRequired("agent")

	sessionLsCmd.Flags().String("agent", "", "Only list sessions for this agent")
}
