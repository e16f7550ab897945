// ABOUTME: Interactive chat command running the full memory pipeline per turn
// ABOUTME: Failures never lose a user turn; the user is told to retry
package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat through the memory pipeline",
		Long: `Chat with memory-backed context assembly.

With a message argument, processes one turn and prints the reply. Without
arguments, starts an interactive loop. Type /reset to pause the active topic
and /quit to exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if len(args) == 1 {
		return processOne(cmd, rt, args[0])
	}

	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), "HMLR chat. /reset pauses the active topic, /quit exits.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			rt.engine.Scribe().Wait()
			return nil
		case "/reset":
			if err := rt.engine.ResetSession(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "reset failed: %v\n", err)
			} else if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "Session reset.")
			}
			continue
		}

		if err := processOne(cmd, rt, line); err != nil {
			// The turn was not committed; ask the user to retry.
			fmt.Fprintln(cmd.OutOrStdout(), "Sorry, something went wrong on my end. Please try that again.")
			if debug {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			}
		}
	}

	rt.engine.Scribe().Wait()
	return scanner.Err()
}

func processOne(cmd *cobra.Command, rt *runtime, message string) error {
	reply, err := rt.engine.ProcessUserMessage(cmd.Context(), message)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}
