package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"commercial-rag/internal/models"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [folder]",
	Short: "Rebuild the vector index from every document in a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := cfg.RAG.DocumentsDir
		if len(args) == 1 {
			folder = args[0]
		}

		a := newApp(cmd.Context(), cfg)
		defer a.Close()

		stats := a.retriever.ReindexAll(cmd.Context(), folder)
		fmt.Fprintf(os.Stdout, "Status:     %s\n", stats.Status)
		fmt.Fprintf(os.Stdout, "Documents:  %d\n", stats.DocumentsFound)
		fmt.Fprintf(os.Stdout, "Chunks:     %d\n", stats.ChunksIndexed)
		fmt.Fprintf(os.Stdout, "Time:       %.2fs\n", stats.ElapsedSeconds())
		if stats.Status != models.StatusSuccess {
			return errors.New(stats.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
