package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every chunk from the vector index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd.Context(), cfg)
		defer a.Close()

		if err := a.retriever.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Index reset")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
