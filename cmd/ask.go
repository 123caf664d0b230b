package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"commercial-rag/internal/helper"
)

var flagAskJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question must not be empty")
		}

		a := newApp(cmd.Context(), cfg)
		defer a.Close()

		outcome, err := a.engine().Ask(cmd.Context(), question, nil)
		if err != nil {
			return err
		}
		if outcome.Err != nil {
			log.Error().Err(outcome.Err).Msg("Answer generation failed")
		}
		if flagAskJSON {
			helper.PrettyPrint(os.Stdout, outcome)
			return nil
		}

		fmt.Fprintf(os.Stdout, "%s\n\n", outcome.Answer)
		if len(outcome.Sources) > 0 {
			fmt.Fprintf(os.Stdout, "Sources: %s\n", strings.Join(outcome.Sources, ", "))
		}
		fmt.Fprintf(os.Stdout, "Tokens: %d in / %d out, cost $%.6f, %.2fs\n",
			outcome.TokensInput, outcome.TokensOutput, outcome.CostUSD, outcome.ElapsedSeconds())
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&flagAskJSON, "json", false, "print the full outcome as JSON")
	rootCmd.AddCommand(askCmd)
}
