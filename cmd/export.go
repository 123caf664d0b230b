package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagExportKey string

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the live collection to a file (chromem backend only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd.Context(), cfg)
		defer a.Close()

		if a.chromem == nil {
			return errors.New("export is only supported by the chromem backend")
		}
		key := flagExportKey
		if key == "" {
			key = os.Getenv("EXPORT_ENCRYPTION_KEY")
		}
		if err := a.chromem.Export(cmd.Context(), args[0], key); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Exported %d chunks to %s\n", a.chromem.Count(cmd.Context()), args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&flagExportKey, "key", "", "32-byte AES key to encrypt the export (default EXPORT_ENCRYPTION_KEY)")
	rootCmd.AddCommand(exportCmd)
}
