package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <session-id>",
	Short: "Chat interactively with a session",
	Long: `Opens an interactive loop against an existing session. Agent replies are
rendered as markdown. Type 'exit' or 'quit' (or send EOF) to leave.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID := args[0]

		_, _, client, err := wire()
		if err != nil {
			fail("Error: %v", err)
		}

		render := newMarkdownRenderer()
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Chatting with session %s (exit/quit to leave)\n", sessionID)

		for {
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				fmt.Println()
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "exit" || text == "quit" {
				fmt.Println("Bye!")
				return
			}

			reply, err := client.SendMessage(cmd.Context(), sessionID, text)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Print(render(reply))
		}
	},
}

// newMarkdownRenderer falls back to plain text when glamour cannot set up,
// e.g. on dumb terminals.
func newMarkdownRenderer() func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return func(s string) string { return s + "\n" }
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s + "\n"
		}
		return out
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
