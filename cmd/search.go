package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"commercial-rag/internal/helper"
)

var flagTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the chunks most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd.Context(), cfg)
		defer a.Close()

		topK := flagTopK
		if topK <= 0 {
			topK = cfg.RAG.TopK
		}
		results := a.retriever.Search(cmd.Context(), strings.Join(args, " "), topK)
		helper.PrettyPrint(os.Stdout, results)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagTopK, "top-k", 0, "number of results (default from config)")
	rootCmd.AddCommand(searchCmd)
}
