// ABOUTME: One-shot voice query: record from the microphone, transcribe, and search.
// ABOUTME: Recognition failures print a notice instead of failing the command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389-research/propsearch/internal/voice"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Speak a query and print the top matches",
	Long:  "Record one spoken query until you pause, transcribe it, and search for it.",
	Args:  cobra.NoArgs,
	RunE:  runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().BoolVar(&speakFlag, "speak", false, "Read the matches aloud")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Build the index first so the pause after speaking is only the query embedding.
	if err := globalSession.Ready(ctx); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Listening...")
	heard, err := globalSession.Listen(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), voice.Notice(err))
		return nil
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "You said: %s\n\n", heard)
	return searchAndPrint(ctx, out, heard)
}
