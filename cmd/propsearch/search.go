// ABOUTME: One-shot search command that prints the closest listings.
// ABOUTME: With --speak the results are read aloud before the command exits.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389-research/propsearch/internal/models"
)

var speakFlag bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search listings and print the top matches",
	Long:  "Embed the query, rank every listing by cosine similarity, and print the five best matches.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolVar(&speakFlag, "speak", false, "Read the matches aloud")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	query := strings.Join(args, " ")
	return searchAndPrint(ctx, cmd.OutOrStdout(), query)
}

func searchAndPrint(ctx context.Context, out io.Writer, query string) error {
	var (
		results []models.SearchResult
		err     error
	)
	if speakFlag {
		results, err = globalSession.SearchAndSpeak(ctx, query)
	} else {
		results, err = globalSession.Search(ctx, query)
	}
	if err != nil {
		return err
	}

	printResults(out, results)
	if speakFlag {
		waitForNarration(ctx)
	}
	return nil
}

func printResults(out io.Writer, results []models.SearchResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "No matches.")
		return
	}
	for i, r := range results {
		_, _ = fmt.Fprintf(out, "%d. %s\n   Similarity Score: %s\n", i+1, r.Listing.CombinedProperty, r.FormattedScore())
	}
}

// waitForNarration blocks until speech finishes; an interrupt stops it early.
func waitForNarration(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			globalSession.StopSpeaking()
		case <-done:
		}
	}()
	globalSession.WaitSpeaking()
	close(done)
}
